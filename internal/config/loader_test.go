package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kestrel-run/orchestra/internal/config"
)

func TestLoadFromEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := config.LoadFrom("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Orchestrator.Workers != 16 {
		t.Fatalf("Workers = %d, want default 16", cfg.Orchestrator.Workers)
	}
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestra.yaml")
	yaml := "orchestrator:\n  workers: 8\n  max_retries: 5\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write yaml fixture: %v", err)
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Orchestrator.Workers != 8 {
		t.Fatalf("Workers = %d, want 8", cfg.Orchestrator.Workers)
	}
	if cfg.Orchestrator.MaxRetries != 5 {
		t.Fatalf("MaxRetries = %d, want 5", cfg.Orchestrator.MaxRetries)
	}
	// Untouched fields keep their defaults.
	if cfg.Bus.HistorySize != 1000 {
		t.Fatalf("HistorySize = %d, want default 1000", cfg.Bus.HistorySize)
	}
}

func TestLoadFromMissingYAMLReturnsError(t *testing.T) {
	_, err := config.LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing yaml file")
	}
}

func TestEnvOverridesLayerAboveDefaults(t *testing.T) {
	t.Setenv("ORCHESTRA_WORKERS", "32")
	t.Setenv("ORCHESTRA_ERROR_THRESHOLD", "0.75")

	cfg, err := config.LoadFrom("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Orchestrator.Workers != 32 {
		t.Fatalf("Workers = %d, want 32", cfg.Orchestrator.Workers)
	}
	if cfg.Orchestrator.ErrorThreshold != 0.75 {
		t.Fatalf("ErrorThreshold = %f, want 0.75", cfg.Orchestrator.ErrorThreshold)
	}
}

func TestEnvDurationOverride(t *testing.T) {
	t.Setenv("ORCHESTRA_BACKOFF_BASE", "500ms")

	cfg, err := config.LoadFrom("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Orchestrator.BackoffBase != 500*time.Millisecond {
		t.Fatalf("BackoffBase = %s, want 500ms", cfg.Orchestrator.BackoffBase)
	}
}

func TestValidateRejectsNonPositiveWorkers(t *testing.T) {
	t.Setenv("ORCHESTRA_WORKERS", "0")
	if _, err := config.LoadFrom(""); err == nil {
		t.Fatal("expected validation error for zero workers")
	}
}

func TestValidateRejectsPostgresEnabledWithoutDSN(t *testing.T) {
	t.Setenv("ORCHESTRA_POSTGRES_ENABLED", "true")
	if _, err := config.LoadFrom(""); err == nil {
		t.Fatal("expected validation error for postgres enabled without a dsn")
	}
}

func TestValidateRejectsErrorThresholdOutOfRange(t *testing.T) {
	t.Setenv("ORCHESTRA_ERROR_THRESHOLD", "1.5")
	if _, err := config.LoadFrom(""); err == nil {
		t.Fatal("expected validation error for an out-of-range error threshold")
	}
}
