package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv tries to load env vars from .env.local and .env, starting in the
// working directory and walking up from the caller's source directory so that
// running from a subdir during development still finds the repo root files.
// It only sets vars that are not already set, matching godotenv's behavior.
// Set MEW_DOTENV=0 to disable.
func LoadDotEnv(logPrefix string) {
	if IsDotEnvDisabled() {
		return
	}

	paths := []string{".env.local", ".env"} // cwd

	if _, file, _, ok := runtime.Caller(1); ok {
		dir := filepath.Dir(file)
		for d := dir; ; {
			paths = append(paths, filepath.Join(d, ".env.local"), filepath.Join(d, ".env"))
			parent := filepath.Dir(d)
			if parent == d {
				break
			}
			d = parent
		}
	}

	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}

		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Fatalf("%s failed to load %s: %v", logPrefix, p, err)
		} else {
			log.Printf("%s loaded env from %s", logPrefix, p)
		}
	}
}

func IsDotEnvDisabled() bool {
	v := strings.TrimSpace(os.Getenv("MEW_DOTENV"))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "0", "false", "off", "no":
		return true
	default:
		return false
	}
}
