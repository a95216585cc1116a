package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Audit.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", cfg.Audit.MaxConcurrent)
	}
	if cfg.Audit.Timeout != 300*time.Second {
		t.Errorf("Timeout = %v, want 5m", cfg.Audit.Timeout)
	}
	if cfg.Audit.Retention != 72*time.Hour {
		t.Errorf("Retention = %v, want 72h", cfg.Audit.Retention)
	}
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  listen_addr: ":9090"
audit:
  max_concurrent: 3
  timeout: 60s
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("MAX_CONCURRENT_AUDITS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090 from yaml", cfg.Server.ListenAddr)
	}
	// Env beats yaml.
	if cfg.Audit.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want env override 5", cfg.Audit.MaxConcurrent)
	}
	if cfg.Audit.Timeout != time.Minute {
		t.Errorf("Timeout = %v, want 1m from yaml", cfg.Audit.Timeout)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestValidate_Rejects(t *testing.T) {
	cfg := &Config{}
	cfg.Audit.MaxConcurrent = 0
	cfg.Audit.Timeout = time.Minute
	cfg.Audit.Retention = time.Hour
	cfg.Audit.SweepInterval = time.Hour
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max_concurrent=0")
	}
	cfg.Audit.MaxConcurrent = 1
	cfg.Audit.Timeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for timeout=0")
	}
}
