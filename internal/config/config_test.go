package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"ENVIRONMENT", "TABLE_PREFIX", "SUPABASE_URL", "SUPABASE_DB_URL", "STORE_BACKEND", "SWEEP_INTERVAL"} {
		t.Setenv(k, "")
	}
	os.Unsetenv("TABLE_PREFIX")

	cfg := Load()
	if cfg.Environment != "dev" || cfg.TablePrefix != "dev_" {
		t.Errorf("env/prefix = %q/%q", cfg.Environment, cfg.TablePrefix)
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("backend = %q, want memory without a database URL", cfg.StoreBackend)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("sweep interval = %v", cfg.SweepInterval)
	}
	if cfg.SupabaseJWKSURL != "" {
		t.Errorf("jwks url = %q, want empty", cfg.SupabaseJWKSURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("SUPABASE_URL", "https://abc.supabase.co")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("SWEEP_MIN_GAP", "not-a-duration")
	t.Setenv("TABLE_PREFIX", "")

	cfg := Load()
	if cfg.TablePrefix != "" {
		t.Errorf("explicit empty prefix ignored: %q", cfg.TablePrefix)
	}
	if cfg.StoreBackend != "postgres" {
		t.Errorf("backend = %q", cfg.StoreBackend)
	}
	if cfg.SupabaseJWKSURL != "https://abc.supabase.co/auth/v1/.well-known/jwks.json" {
		t.Errorf("jwks url = %q", cfg.SupabaseJWKSURL)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("sweep interval = %v", cfg.SweepInterval)
	}
	if cfg.SweepMinGap != time.Second {
		t.Errorf("bad duration should fall back, got %v", cfg.SweepMinGap)
	}
}

func TestSetupLogFilePrunes(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"postflow-2024-01-01T00-00-00.log", "postflow-2024-01-02T00-00-00.log", "other.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	f, err := SetupLogFile(dir, 2)
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	logs, _ := filepath.Glob(filepath.Join(dir, "postflow-*.log"))
	if len(logs) != 2 {
		t.Fatalf("kept %d logs, want 2: %v", len(logs), logs)
	}
	if filepath.Base(logs[0]) != "postflow-2024-01-02T00-00-00.log" {
		t.Errorf("oldest log not pruned: %v", logs)
	}
	if _, err := os.Stat(filepath.Join(dir, "other.log")); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}
