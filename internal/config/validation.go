// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/text/language"
)

var streamTypes = []string{"audio", "video", "text"}

// Validate checks a loaded configuration. All problems are reported at once.
func Validate(cfg Config) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Output == "" {
		add("output is required")
	}
	if cfg.StreamingMode != ModeVOD && cfg.StreamingMode != ModeLive {
		add("streaming_mode must be %q or %q, got %q", ModeVOD, ModeLive, cfg.StreamingMode)
	}
	if len(cfg.ManifestFormat) == 0 {
		add("manifest_format must list at least one format")
	}
	for _, f := range cfg.ManifestFormat {
		if f != FormatDASH && f != FormatHLS {
			add("manifest_format: unknown format %q", f)
		}
	}
	if cfg.Upload.PoolSize < 1 {
		add("upload.pool_size must be at least 1, got %d", cfg.Upload.PoolSize)
	}
	if cfg.Upload.RateLimitWindow <= 0 {
		add("upload.rate_limit_window must be positive")
	}
	if cfg.Process.GracePeriod <= 0 {
		add("process.grace_period must be positive")
	}
	if cfg.Process.PoliteWait < 0 {
		add("process.polite_wait must not be negative")
	}
	if cfg.Tracing.Enabled {
		if cfg.Tracing.Exporter != "grpc" && cfg.Tracing.Exporter != "http" {
			add("tracing.exporter must be \"grpc\" or \"http\", got %q", cfg.Tracing.Exporter)
		}
		if cfg.Tracing.Endpoint == "" {
			add("tracing.endpoint is required when tracing is enabled")
		}
		if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
			add("tracing.sampling_rate must be between 0 and 1")
		}
	}
	if len(cfg.Periods) == 0 {
		add("at least one period is required")
	}

	multiPeriodVOD := len(cfg.Periods) > 1 && cfg.IsVOD()
	for i, p := range cfg.Periods {
		for _, err := range validatePeriod(p, multiPeriodVOD) {
			add("periods[%d]: %w", i, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func validatePeriod(p Period, needSegments bool) []error {
	var errs []error
	vars := Vars{Output: "output", TempDir: "temp", Pipes: map[string]PipeEnds{}}
	for _, name := range p.Pipes {
		if name == "" {
			errs = append(errs, errors.New("pipe name must not be empty"))
			continue
		}
		if _, dup := vars.Pipes[name]; dup {
			errs = append(errs, fmt.Errorf("duplicate pipe %q", name))
		}
		vars.Pipes[name] = PipeEnds{Read: name, Write: name}
	}

	check := func(what string, c Command) {
		if len(c.Args) == 0 {
			errs = append(errs, fmt.Errorf("%s: args are required", what))
		}
		if _, err := vars.ExpandAll(c.Args); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", what, err))
		}
		for k, v := range c.Env {
			if _, err := vars.Expand(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: env %s: %w", what, k, err))
			}
		}
	}
	for j, c := range p.Commands {
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("commands[%d]: name is required", j))
		}
		check(fmt.Sprintf("commands[%d]", j), c)
	}
	check("packager", p.Packager)

	for j, s := range p.Streams {
		if !slices.Contains(streamTypes, s.Type) {
			errs = append(errs, fmt.Errorf("streams[%d]: unknown type %q", j, s.Type))
		}
		if s.Language != "" {
			if _, err := language.Parse(s.Language); err != nil {
				errs = append(errs, fmt.Errorf("streams[%d]: language %q: %w", j, s.Language, err))
			}
		}
		if needSegments && s.Segment == "" {
			errs = append(errs, fmt.Errorf("streams[%d]: segment is required to concatenate periods", j))
		}
	}
	if needSegments && len(p.Streams) == 0 {
		errs = append(errs, errors.New("streams are required to concatenate periods"))
	}
	return errs
}
