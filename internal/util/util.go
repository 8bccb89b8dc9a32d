// Package util holds small helpers shared by logging and request handling.
package util

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// WritablePath returns the directory named by WRITABLE_PATH, or "" when unset.
// Relative log files are placed under it.
func WritablePath() string {
	value := strings.TrimSpace(os.Getenv("WRITABLE_PATH"))
	if value == "" {
		return ""
	}
	return filepath.Clean(value)
}

// HideAPIKey keeps a short prefix and suffix of a credential for log lines.
func HideAPIKey(apiKey string) string {
	n := len(apiKey)
	keep := 0
	switch {
	case n > 8:
		keep = 4
	case n > 4:
		keep = 2
	case n > 2:
		keep = 1
	default:
		return apiKey
	}
	return apiKey[:keep] + "..." + apiKey[n-keep:]
}

// sensitiveQueryKeys are matched as substrings of lowercased parameter names.
var sensitiveQueryKeys = []string{"password", "token", "secret", "api_key", "apikey", "api-key", "session"}

// MaskSensitiveQuery hides credential values in a raw query string while
// keeping parameter order and every other value intact.
func MaskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	pairs := strings.Split(raw, "&")
	for i, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found || !isSensitiveParam(name) {
			continue
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		pairs[i] = name + "=" + url.QueryEscape(HideAPIKey(strings.TrimSpace(value)))
	}
	return strings.Join(pairs, "&")
}

func isSensitiveParam(name string) bool {
	if decoded, err := url.QueryUnescape(name); err == nil {
		name = decoded
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "key" {
		return true
	}
	for _, k := range sensitiveQueryKeys {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}
