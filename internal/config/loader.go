// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
)

// Environment overrides.
const (
	EnvOutput          = "STREAMER_OUTPUT"
	EnvLogLevel        = "STREAMER_LOG_LEVEL"
	EnvMetricsAddr     = "STREAMER_METRICS_ADDR"
	EnvPoolSize        = "STREAMER_UPLOAD_POOL_SIZE"
	EnvRateLimitWindow = "STREAMER_RATE_LIMIT_WINDOW"
	EnvTraceEndpoint   = "STREAMER_TRACE_ENDPOINT"
)

// Loader handles configuration loading with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	envFiles   []string
}

// NewLoader creates a loader for the YAML file at configPath. envFiles are
// dotenv files loaded into the environment first; missing ones are skipped.
// Without envFiles ".env" is tried.
func NewLoader(configPath string, envFiles ...string) *Loader {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	return &Loader{configPath: configPath, envFiles: envFiles}
}

// Load parses the file strictly, applies environment overrides and
// validates the result. Every failure wraps ErrInvalidConfig.
func (l *Loader) Load() (Config, error) {
	if err := l.loadEnvFiles(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := Defaults()
	if l.configPath != "" {
		if err := loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: load config file: %w", ErrInvalidConfig, err)
		}
	}

	if err := mergeEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (l *Loader) loadEnvFiles() error {
	logger := log.WithComponent("config")
	for _, f := range l.envFiles {
		// godotenv never overrides variables that are already set.
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
		logger.Debug().Str(log.FieldPath, f).Msg("loaded env file")
	}
	return nil
}

// loadFile decodes a YAML file onto cfg with STRICT parsing.
// Unknown fields are fatal to prevent silent misconfiguration.
func loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if err == io.EOF {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func mergeEnv(cfg *Config) error {
	cfg.Output = ParseString(EnvOutput, cfg.Output)
	cfg.LogLevel = ParseString(EnvLogLevel, cfg.LogLevel)
	cfg.MetricsAddr = ParseString(EnvMetricsAddr, cfg.MetricsAddr)
	if ep := ParseString(EnvTraceEndpoint, ""); ep != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Endpoint = ep
	}

	var err error
	if cfg.Upload.PoolSize, err = ParseInt(EnvPoolSize, cfg.Upload.PoolSize); err != nil {
		return err
	}
	if cfg.Upload.RateLimitWindow, err = ParseDuration(EnvRateLimitWindow, cfg.Upload.RateLimitWindow); err != nil {
		return err
	}
	return nil
}
