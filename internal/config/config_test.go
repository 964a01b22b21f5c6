// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvOutput, EnvLogLevel, EnvMetricsAddr, EnvPoolSize, EnvRateLimitWindow, EnvTraceEndpoint} {
		t.Setenv(k, "")
	}
}

func newTestLoader(t *testing.T, name string) *Loader {
	t.Helper()
	return NewLoader(filepath.Join("testdata", name), filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoad_Valid(t *testing.T) {
	clearEnv(t)

	cfg, err := newTestLoader(t, "valid.yaml").Load()
	if err != nil {
		t.Fatalf("expected valid config, got error: %v", err)
	}
	if cfg.Output != "/srv/out" {
		t.Errorf("expected Output=/srv/out, got %s", cfg.Output)
	}
	if cfg.Upload.PoolSize != 8 {
		t.Errorf("expected pool_size=8, got %d", cfg.Upload.PoolSize)
	}
	if cfg.Upload.RateLimitWindow != 3*time.Second {
		t.Errorf("expected rate_limit_window=3s, got %s", cfg.Upload.RateLimitWindow)
	}
	if cfg.Process.PoliteWait != time.Minute {
		t.Errorf("expected polite_wait=1m, got %s", cfg.Process.PoliteWait)
	}
	if cfg.DASHOutput != DefaultDASHOutput || cfg.HLSOutput != DefaultHLSOutput {
		t.Errorf("expected default manifest names, got %s and %s", cfg.DASHOutput, cfg.HLSOutput)
	}
	if len(cfg.Periods) != 1 || len(cfg.Periods[0].Streams) != 1 {
		t.Fatalf("expected one period with one stream, got %+v", cfg.Periods)
	}
	if got := cfg.Periods[0].Streams[0].Resolution; got != (Resolution{Name: "720p", Width: 1280, Height: 720}) {
		t.Errorf("unexpected resolution %+v", got)
	}
	if !cfg.IsVOD() {
		t.Error("expected VOD mode")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvOutput, "gs://bucket/live")
	t.Setenv(EnvPoolSize, "2")
	t.Setenv(EnvRateLimitWindow, "500ms")

	cfg, err := newTestLoader(t, "valid.yaml").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Output != "gs://bucket/live" {
		t.Errorf("expected env output, got %s", cfg.Output)
	}
	if cfg.Upload.PoolSize != 2 {
		t.Errorf("expected pool size 2, got %d", cfg.Upload.PoolSize)
	}
	if cfg.Upload.RateLimitWindow != 500*time.Millisecond {
		t.Errorf("expected 500ms window, got %s", cfg.Upload.RateLimitWindow)
	}
}

func TestLoad_TraceEndpointEnablesTracing(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTraceEndpoint, "collector:4317")

	cfg, err := newTestLoader(t, "valid.yaml").Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Tracing.Enabled || cfg.Tracing.Endpoint != "collector:4317" {
		t.Errorf("expected tracing enabled for collector:4317, got %+v", cfg.Tracing)
	}
}

func TestLoad_InvalidEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPoolSize, "lots")

	_, err := newTestLoader(t, "valid.yaml").Load()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if !strings.Contains(err.Error(), EnvPoolSize) {
		t.Errorf("expected error to name %s, got %v", EnvPoolSize, err)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv only fills variables that are not set at all.
	_ = os.Unsetenv(EnvMetricsAddr)

	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte(EnvMetricsAddr+"=127.0.0.1:9100\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv(EnvMetricsAddr) })

	cfg, err := NewLoader(filepath.Join("testdata", "valid.yaml"), envFile).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MetricsAddr != "127.0.0.1:9100" {
		t.Errorf("expected metrics addr from env file, got %q", cfg.MetricsAddr)
	}
}

func TestLoad_UnknownKeyFails(t *testing.T) {
	clearEnv(t)
	_, err := newTestLoader(t, "unknown-key.yaml").Load()
	if !errors.Is(err, ErrUnknownConfigField) {
		t.Fatalf("expected ErrUnknownConfigField, got: %v", err)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got: %v", err)
	}
	if !strings.Contains(err.Error(), "outptu_dir") {
		t.Errorf("expected error to name the unknown key, got: %v", err)
	}
}

func TestLoad_InvalidTypeFails(t *testing.T) {
	clearEnv(t)
	_, err := newTestLoader(t, "invalid-type.yaml").Load()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got: %v", err)
	}
	if errors.Is(err, ErrUnknownConfigField) {
		t.Errorf("type mismatch must not be reported as unknown field: %v", err)
	}
}

func TestLoad_MultipleDocumentsFail(t *testing.T) {
	clearEnv(t)
	_, err := newTestLoader(t, "multi-doc.yaml").Load()
	if err == nil || !strings.Contains(err.Error(), "multiple documents") {
		t.Fatalf("expected multiple documents error, got: %v", err)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	clearEnv(t)
	_, err := NewLoader("config.json", filepath.Join(t.TempDir(), "none.env")).Load()
	if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), "only YAML") {
		t.Fatalf("expected unsupported format error, got: %v", err)
	}
}
