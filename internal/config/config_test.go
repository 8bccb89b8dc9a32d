package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("FORMGATE_DATABASE_DSN", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatalf("expected validation error for empty dsn override, got %+v", cfg.Database)
	}

	os.Unsetenv("FORMGATE_DATABASE_DSN")
	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Fanout.Workers != 4 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
server:
  addr: ":9000"
database:
  dsn: "postgres://forms:secret@db:5432/forms"
redis:
  enabled: true
  addr: "redis:6379"
fanout:
  webhook_timeout: 2s
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" || !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if cfg.Fanout.WebhookTimeout != 2*time.Second {
		t.Fatalf("webhook timeout = %s", cfg.Fanout.WebhookTimeout)
	}
	if cfg.Fanout.QueueSize != 256 {
		t.Fatalf("unset fanout leaf lost default: %d", cfg.Fanout.QueueSize)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	environ := []string{
		"FORMGATE_ADDR=:7000",
		"FORMGATE_REDIS_ENABLED=true",
		"FORMGATE_REDIS_DB=3",
		"FORMGATE_WEBHOOK_TIMEOUT=500ms",
		"UNRELATED=1",
	}
	if err := applyEnvOverrides(&cfg, environ); err != nil {
		t.Fatalf("applyEnvOverrides: %v", err)
	}
	if cfg.Server.Addr != ":7000" || !cfg.Redis.Enabled || cfg.Redis.DB != 3 || cfg.Fanout.WebhookTimeout != 500*time.Millisecond {
		t.Fatalf("overrides not applied: %+v", cfg)
	}

	if err := applyEnvOverrides(&cfg, []string{"FORMGATE_REDIS_ENABLED=maybe"}); err == nil {
		t.Fatalf("expected invalid bool error")
	}
}

func TestValidateRequiresSMTPFrom(t *testing.T) {
	cfg := Default()
	cfg.SMTP.Host = "smtp.example.com"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected smtp.from error")
	}
}

func TestCounterBackend(t *testing.T) {
	cfg := Default()
	if got := cfg.CounterBackend(); got != CounterBackendDatabase {
		t.Fatalf("default backend = %q", got)
	}
	cfg.Redis.Enabled = true
	if got := cfg.CounterBackend(); got != CounterBackendRedis {
		t.Fatalf("redis enabled backend = %q", got)
	}
	cfg.Counters.Backend = " Memory "
	if got := cfg.CounterBackend(); got != CounterBackendMemory {
		t.Fatalf("explicit backend = %q", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory backend should validate: %v", err)
	}

	cfg = Default()
	cfg.Counters.Backend = CounterBackendRedis
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected redis backend to require redis.enabled")
	}
	cfg.Counters.Backend = "etcd"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestResolveConfigPath(t *testing.T) {
	if got := ResolveConfigPath("  "); got != DefaultConfigPath {
		t.Fatalf("ResolveConfigPath(blank) = %q", got)
	}
	if got := ResolveConfigPath("./conf/../app.yaml"); got != "app.yaml" {
		t.Fatalf("ResolveConfigPath = %q", got)
	}
}
