package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func applyEnvOverrides(cfg *Config, environ []string) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	values := envMap(environ)

	if v, ok := values["FORMGATE_ADDR"]; ok {
		cfg.Server.Addr = v
	}
	if v, ok := values["FORMGATE_DATABASE_DSN"]; ok {
		cfg.Database.DSN = v
	}
	if v, ok := values["FORMGATE_REDIS_ENABLED"]; ok {
		parsed, err := parseBoolEnv("FORMGATE_REDIS_ENABLED", v)
		if err != nil {
			return err
		}
		cfg.Redis.Enabled = parsed
	}
	if v, ok := values["FORMGATE_REDIS_ADDR"]; ok {
		cfg.Redis.Addr = v
	}
	if v, ok := values["FORMGATE_REDIS_PASSWORD"]; ok {
		cfg.Redis.Password = v
	}
	if v, ok := values["FORMGATE_REDIS_DB"]; ok {
		parsed, err := parseIntEnv("FORMGATE_REDIS_DB", v)
		if err != nil {
			return err
		}
		cfg.Redis.DB = parsed
	}
	if v, ok := values["FORMGATE_COUNTERS_BACKEND"]; ok {
		cfg.Counters.Backend = v
	}
	if v, ok := values["FORMGATE_JWT_SECRET"]; ok {
		cfg.JWT.Secret = v
	}
	if v, ok := values["FORMGATE_LOG_LEVEL"]; ok {
		cfg.Logging.Level = v
	}
	if v, ok := values["FORMGATE_LOG_FILE"]; ok {
		cfg.Logging.File = v
	}
	if v, ok := values["FORMGATE_SMTP_HOST"]; ok {
		cfg.SMTP.Host = v
	}
	if v, ok := values["FORMGATE_SMTP_PASSWORD"]; ok {
		cfg.SMTP.Password = v
	}
	if v, ok := values["FORMGATE_BASE_URL"]; ok {
		cfg.App.BaseURL = v
	}
	if v, ok := values["FORMGATE_FINGERPRINT_KEY"]; ok {
		cfg.Duplicate.FingerprintKey = v
	}
	if v, ok := values["FORMGATE_WEBHOOK_TIMEOUT"]; ok {
		parsed, err := parseDurationEnv("FORMGATE_WEBHOOK_TIMEOUT", v)
		if err != nil {
			return err
		}
		cfg.Fanout.WebhookTimeout = parsed
	}
	return nil
}

func envMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "FORMGATE_") {
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

func parseBoolEnv(key, value string) (bool, error) {
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("config: %s: invalid bool %q", key, value)
	}
	return parsed, nil
}

func parseIntEnv(key, value string) (int, error) {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid int %q", key, value)
	}
	return parsed, nil
}

func parseDurationEnv(key, value string) (time.Duration, error) {
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: %s: invalid duration %q", key, value)
	}
	return parsed, nil
}
