// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Output = "/srv/out"
	cfg.Periods = []Period{{
		Pipes: []string{"video"},
		Commands: []Command{{
			Name: "transcoder",
			Args: []string{"ffmpeg", "${pipe.video.write}"},
		}},
		Packager: Command{Args: []string{"packager", "in=${pipe.video.read}"}},
		Streams:  []Stream{{Type: "video", Segment: "video_*.mp4"}},
	}}
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing output", mutate: func(c *Config) { c.Output = "" }, wantErr: "output is required"},
		{name: "bad mode", mutate: func(c *Config) { c.StreamingMode = "event" }, wantErr: "streaming_mode"},
		{name: "no formats", mutate: func(c *Config) { c.ManifestFormat = nil }, wantErr: "manifest_format"},
		{name: "bad format", mutate: func(c *Config) { c.ManifestFormat = []string{"smooth"} }, wantErr: `unknown format "smooth"`},
		{name: "zero pool", mutate: func(c *Config) { c.Upload.PoolSize = 0 }, wantErr: "pool_size"},
		{name: "zero window", mutate: func(c *Config) { c.Upload.RateLimitWindow = 0 }, wantErr: "rate_limit_window"},
		{name: "zero grace", mutate: func(c *Config) { c.Process.GracePeriod = 0 }, wantErr: "grace_period"},
		{name: "bad trace exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "zipkin"
		}, wantErr: "tracing.exporter"},
		{name: "disabled tracing is not checked", mutate: func(c *Config) { c.Tracing.Exporter = "zipkin" }},
		{name: "no periods", mutate: func(c *Config) { c.Periods = nil }, wantErr: "at least one period"},
		{name: "no packager args", mutate: func(c *Config) { c.Periods[0].Packager.Args = nil }, wantErr: "packager: args are required"},
		{name: "unnamed command", mutate: func(c *Config) { c.Periods[0].Commands[0].Name = "" }, wantErr: "name is required"},
		{name: "duplicate pipe", mutate: func(c *Config) { c.Periods[0].Pipes = []string{"video", "video"} }, wantErr: "duplicate pipe"},
		{name: "unknown pipe", mutate: func(c *Config) { c.Periods[0].Packager.Args = []string{"${pipe.audio.read}"} }, wantErr: "unknown placeholder ${pipe.audio.read}"},
		{name: "unknown env placeholder", mutate: func(c *Config) {
			c.Periods[0].Commands[0].Env = map[string]string{"X": "${home}"}
		}, wantErr: "env X"},
		{name: "bad stream type", mutate: func(c *Config) { c.Periods[0].Streams[0].Type = "data" }, wantErr: `unknown type "data"`},
		{name: "bad stream language", mutate: func(c *Config) { c.Periods[0].Streams[0].Language = "en_US!" }, wantErr: `language "en_US!"`},
		{name: "script subtag language", mutate: func(c *Config) { c.Periods[0].Streams[0].Language = "zh-Hans" }},
		{name: "multi-period needs segments", mutate: func(c *Config) {
			p := c.Periods[0]
			p.Streams = []Stream{{Type: "video"}}
			c.Periods = append(c.Periods, p)
		}, wantErr: "segment is required"},
		{name: "live multi-period skips segments", mutate: func(c *Config) {
			c.StreamingMode = ModeLive
			p := c.Periods[0]
			p.Streams = nil
			c.Periods = append(c.Periods, p)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Output = ""
	cfg.Upload.PoolSize = -1
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"output is required", "pool_size"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}
