package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Server.Address != ":8085" {
		t.Fatalf("unexpected server address %q", cfg.Server.Address)
	}
	if cfg.Detector.SignificanceThreshold != 0.1 {
		t.Fatalf("unexpected significance threshold %f", cfg.Detector.SignificanceThreshold)
	}
	if cfg.Detector.Policy != "min-count" || cfg.Detector.MinDriftedFeatures != 1 {
		t.Fatalf("unexpected detector defaults: %+v", cfg.Detector)
	}
	if cfg.Trigger.HysteresisWindow != 1 || cfg.Trigger.HysteresisRequiredHits != 1 {
		t.Fatalf("unexpected trigger defaults: %+v", cfg.Trigger)
	}
	if cfg.Baseline.WindowSpan != 24*time.Hour {
		t.Fatalf("unexpected window span %v", cfg.Baseline.WindowSpan)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driftwatch.yaml")
	content := `
server:
  address: ":9090"
detector:
  significanceThreshold: 0.05
  policy: majority
trigger:
  hysteresisWindow: 5
  hysteresisRequiredHits: 3
clients:
  features:
    baseURL: "http://features.internal:9085"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Fatalf("file value not applied: %q", cfg.Server.Address)
	}
	if cfg.Detector.SignificanceThreshold != 0.05 || cfg.Detector.Policy != "majority" {
		t.Fatalf("detector overrides not applied: %+v", cfg.Detector)
	}
	if cfg.Trigger.HysteresisWindow != 5 || cfg.Trigger.HysteresisRequiredHits != 3 {
		t.Fatalf("trigger overrides not applied: %+v", cfg.Trigger)
	}
	if cfg.Clients.Features.BaseURL != "http://features.internal:9085" {
		t.Fatalf("client override not applied: %q", cfg.Clients.Features.BaseURL)
	}
	// Untouched sections keep defaults.
	if cfg.Server.MetricsAddress != ":2112" {
		t.Fatalf("default metrics address lost: %q", cfg.Server.MetricsAddress)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DRIFTWATCH_SIGNIFICANCE_THRESHOLD", "0.02")
	t.Setenv("DRIFTWATCH_HYSTERESIS_WINDOW", "4")
	t.Setenv("DRIFTWATCH_BASELINE_VERSION", "baseline-v7")
	t.Setenv("DRIFTWATCH_LOG_FORMAT", "json")
	t.Setenv("DRIFTWATCH_CACHE_ENABLED", "true")
	t.Setenv("DRIFTWATCH_CACHE_ADDR", "localhost:6379")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Detector.SignificanceThreshold != 0.02 {
		t.Fatalf("threshold override not applied: %f", cfg.Detector.SignificanceThreshold)
	}
	if cfg.Trigger.HysteresisWindow != 4 {
		t.Fatalf("window override not applied: %d", cfg.Trigger.HysteresisWindow)
	}
	if cfg.Baseline.Version != "baseline-v7" {
		t.Fatalf("version override not applied: %q", cfg.Baseline.Version)
	}
	if !cfg.Logging.JSON {
		t.Fatal("log format override not applied")
	}
	if !cfg.Cache.Enabled || cfg.Cache.Addr != "localhost:6379" {
		t.Fatalf("cache overrides not applied: %+v", cfg.Cache)
	}
}
