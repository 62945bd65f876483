package brightwheel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// AuthError reports a rejected or malformed login response.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("brightwheel login failed: status=%d body=%s", e.StatusCode, e.Body)
}

// FetchError reports a transport-level failure on a data call. Body keeps the
// raw response so FormatAPIError can interpret it later.
type FetchError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("brightwheel %s failed: status=%d body=%s", e.Endpoint, e.StatusCode, e.Body)
}

// FormatAPIError turns a client failure into the single line shown in chat.
// API error bodies look like
//
//	{"_errors": [{"title": ..., "message": ..., "code": ...}, ...]}
//
// and each entry becomes "title: message [code]", joined with "; ". Bodies
// that are not a valid envelope fall back to the raw body text, and errors
// without a body fall back to their Error() string.
func FormatAPIError(err error) string {
	if err == nil {
		return ""
	}

	var body string
	var authErr *AuthError
	var fetchErr *FetchError
	switch {
	case errors.As(err, &authErr):
		body = authErr.Body
	case errors.As(err, &fetchErr):
		body = fetchErr.Body
	default:
		return err.Error()
	}
	if strings.TrimSpace(body) == "" {
		return err.Error()
	}

	if !gjson.Valid(body) {
		return body
	}
	entries := gjson.Get(body, "_errors")
	if !entries.IsArray() {
		return body
	}

	var lines []string
	entries.ForEach(func(_, entry gjson.Result) bool {
		lines = append(lines, fmt.Sprintf("%s: %s [%s]",
			entry.Get("title").String(),
			entry.Get("message").String(),
			entry.Get("code").String(),
		))
		return true
	})
	if len(lines) == 0 {
		return body
	}
	return strings.Join(lines, "; ")
}
