package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"mew/plugins/brightwheel-agent/internal/brightwheel"
)

// Config carries everything the plugin reads from the environment.
type Config struct {
	// Brightwheel side.
	Email          string
	Password       string
	MaxRecordCount int
	BaseURL        string
	CardOutput     bool
	Proxy          string

	// Mew side.
	MewURL   string
	APIBase  string
	BotToken string
	MewProxy string
}

// Load reads and validates the environment. Call LoadDotEnv beforehand when
// `.env` files should be honored.
func Load() (Config, error) {
	cfg := Config{
		Email:          strings.TrimSpace(os.Getenv("BRIGHTWHEEL_EMAIL")),
		Password:       strings.TrimSpace(os.Getenv("BRIGHTWHEEL_PASSWORD")),
		MaxRecordCount: brightwheel.DefaultMaxRecords,
		BaseURL:        strings.TrimSpace(os.Getenv("BRIGHTWHEEL_BASE_URL")),
		CardOutput:     boolFromEnv("BRIGHTWHEEL_CARD_OUTPUT"),
		Proxy:          strings.TrimSpace(os.Getenv("BRIGHTWHEEL_PROXY")),
		BotToken:       strings.TrimSpace(os.Getenv("MEW_BOT_TOKEN")),
		MewProxy:       strings.TrimSpace(os.Getenv("MEW_API_PROXY")),
	}

	if cfg.Email == "" {
		return Config{}, fmt.Errorf("BRIGHTWHEEL_EMAIL is required")
	}
	if cfg.Password == "" {
		return Config{}, fmt.Errorf("BRIGHTWHEEL_PASSWORD is required")
	}
	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("MEW_BOT_TOKEN is required")
	}

	if raw := strings.TrimSpace(os.Getenv("BRIGHTWHEEL_MAX_COUNT")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid BRIGHTWHEEL_MAX_COUNT: %q", raw)
		}
		cfg.MaxRecordCount = n
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = brightwheel.DefaultBaseURL
	}

	cfg.MewURL = strings.TrimRight(strings.TrimSpace(os.Getenv("MEW_URL")), "/")
	cfg.APIBase = strings.TrimRight(strings.TrimSpace(os.Getenv("MEW_API_BASE")), "/")
	if cfg.APIBase == "" {
		mewURL := cfg.MewURL
		if mewURL == "" {
			mewURL = "http://localhost:3000"
		}
		cfg.APIBase = mewURL + "/api"
	}
	if cfg.MewURL == "" {
		// Best-effort fallback when only MEW_API_BASE is customized.
		cfg.MewURL = strings.TrimRight(strings.TrimSuffix(cfg.APIBase, "/api"), "/")
	}

	return cfg, nil
}

func boolFromEnv(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
