package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write app.yaml: %v", err)
	}
}

func TestLoadDefaultsWithoutConfigFile(t *testing.T) {
	resetViper(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected defaults without a config file, got %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected default driver postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Import.BatchSize != 500 || cfg.Import.MaxRows != 10000 {
		t.Errorf("unexpected import defaults: %+v", cfg.Import)
	}
	if cfg.Import.DedupPolicy != "last" {
		t.Errorf("expected default dedup policy last, got %q", cfg.Import.DedupPolicy)
	}
	if cfg.Import.JobRetention != 24*time.Hour {
		t.Errorf("expected 24h job retention, got %s", cfg.Import.JobRetention)
	}
	if cfg.Webhook.MaxAttempts != 5 || cfg.Webhook.BackoffBase != time.Second {
		t.Errorf("unexpected webhook defaults: %+v", cfg.Webhook)
	}
}

func TestLoadReadsConfigFile(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	writeConfig(t, dir, "server:\n  port: 9090\nimport:\n  batch_size: 25\n")
	t.Chdir(dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090 from file, got %d", cfg.Server.Port)
	}
	if cfg.Import.BatchSize != 25 {
		t.Errorf("expected batch size 25 from file, got %d", cfg.Import.BatchSize)
	}
	// Keys the file does not mention keep their defaults
	if cfg.Import.MaxRows != 10000 {
		t.Errorf("expected default max rows, got %d", cfg.Import.MaxRows)
	}
}

func TestLoadMalformedConfigFile(t *testing.T) {
	resetViper(t)
	dir := t.TempDir()
	writeConfig(t, dir, "server: [unclosed\n")
	t.Chdir(dir)

	if _, err := Load(); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestDSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "catalog"}
	if got := pg.DSN(); got != "postgres://u:p@db:5432/catalog?sslmode=disable" {
		t.Errorf("unexpected postgres dsn: %s", got)
	}
	if pg.IsSQLite() {
		t.Error("postgres config must not report sqlite")
	}

	lite := DatabaseConfig{Driver: "sqlite", Path: "./data", Name: "catalog"}
	if got := lite.DSN(); got != "./data/catalog.db" {
		t.Errorf("unexpected sqlite dsn: %s", got)
	}
	if !lite.IsSQLite() {
		t.Error("sqlite config must report sqlite")
	}
}
