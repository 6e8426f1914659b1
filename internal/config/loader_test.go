package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Auth.SessionTTL != 12*time.Hour {
		t.Fatalf("expected default session ttl, got %s", cfg.Auth.SessionTTL)
	}
	if !cfg.Migrations.Auto {
		t.Fatalf("expected migrations.auto to default to true")
	}
}

func TestLoadReadsFileAndEnvOverrides(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	dir := t.TempDir()
	yaml := []byte(`
database:
  host: db.internal
  dbname: audits
server:
  port: 9090
  allowed_origins:
    - https://a.example
logging:
  level: debug
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AUDITDESK_SERVER_PORT", "9191")
	t.Setenv("AUDITDESK_AUTH_SESSION_TTL", "30m")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Host != "db.internal" || cfg.Database.DBName != "audits" {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Server.Port != 9191 {
		t.Fatalf("expected env to override port, got %d", cfg.Server.Port)
	}
	if cfg.Auth.SessionTTL != 30*time.Minute {
		t.Fatalf("expected env session ttl, got %s", cfg.Auth.SessionTTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "https://a.example" {
		t.Fatalf("unexpected origins: %v", cfg.Server.AllowedOrigins)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"
	cfg.Auth.BcryptCost = 2

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSplitListAcceptsCommaSeparated(t *testing.T) {
	got := splitList([]string{"https://a.example, https://b.example", ""})
	if len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("unexpected split: %v", got)
	}
}
