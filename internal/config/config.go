// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the pipeline description: YAML file, then
// environment overrides, then validation.
package config

import "time"

// Streaming modes.
const (
	ModeVOD  = "vod"
	ModeLive = "live"
)

// Manifest formats.
const (
	FormatDASH = "dash"
	FormatHLS  = "hls"
)

// Defaults.
const (
	DefaultStreamingMode   = ModeVOD
	DefaultDASHOutput      = "dash.mpd"
	DefaultHLSOutput       = "hls.m3u8"
	DefaultLogLevel        = "info"
	DefaultPoolSize        = 4
	DefaultRateLimitWindow = 2 * time.Second
	DefaultGracePeriod     = time.Second
	DefaultPoliteWait      = 5 * time.Minute
	DefaultTraceExporter   = "grpc"
	DefaultTraceEndpoint   = "localhost:4317"
)

// Config is the complete pipeline description.
type Config struct {
	// Output is a local directory, an http(s):// URL the packager PUTs to, or
	// a gs:// or s3:// bucket reached through the upload proxy.
	Output         string        `yaml:"output"`
	StreamingMode  string        `yaml:"streaming_mode"`
	ManifestFormat []string      `yaml:"manifest_format"`
	DASHOutput     string        `yaml:"dash_output"`
	HLSOutput      string        `yaml:"hls_output"`
	LogLevel       string        `yaml:"log_level"`
	MetricsAddr    string        `yaml:"metrics_addr"`
	Upload         UploadConfig  `yaml:"upload"`
	Process        ProcessConfig `yaml:"process"`
	Tracing        TracingConfig `yaml:"tracing"`
	Periods        []Period      `yaml:"periods"`
}

// UploadConfig tunes the cloud upload proxy.
type UploadConfig struct {
	PoolSize        int           `yaml:"pool_size"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
}

// ProcessConfig tunes subprocess shutdown.
type ProcessConfig struct {
	GracePeriod time.Duration `yaml:"grace_period"`
	// PoliteWait bounds how long a finishing packager may take to exit.
	PoliteWait time.Duration `yaml:"polite_wait"`
}

// Period is one independently packaged part of the presentation.
// TracingConfig exports OpenTelemetry spans for uploads and merges.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

type Period struct {
	// Pipes are named pipes created before any command starts.
	Pipes    []string  `yaml:"pipes"`
	Commands []Command `yaml:"commands"`
	Packager Command   `yaml:"packager"`
	// Streams declare what the packager writes; period concatenation
	// matches segment names against them.
	Streams []Stream `yaml:"streams"`
}

// Command is an external process. Args may reference ${pipe.<name>.read},
// ${pipe.<name>.write}, ${output} and ${temp_dir}.
type Command struct {
	Name string            `yaml:"name"`
	Args []string          `yaml:"args"`
	Env  map[string]string `yaml:"env"`
}

// Stream is one output stream of a packager.
type Stream struct {
	Type       string     `yaml:"type"`
	Codec      string     `yaml:"codec"`
	Language   string     `yaml:"language"`
	Channels   int        `yaml:"channels"`
	Resolution Resolution `yaml:"resolution"`
	Segment    string     `yaml:"segment"`
}

// Resolution is a named video resolution.
type Resolution struct {
	Name   string `yaml:"name"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Defaults returns a Config with every default applied.
func Defaults() Config {
	return Config{
		StreamingMode:  DefaultStreamingMode,
		ManifestFormat: []string{FormatDASH, FormatHLS},
		DASHOutput:     DefaultDASHOutput,
		HLSOutput:      DefaultHLSOutput,
		LogLevel:       DefaultLogLevel,
		Upload: UploadConfig{
			PoolSize:        DefaultPoolSize,
			RateLimitWindow: DefaultRateLimitWindow,
		},
		Process: ProcessConfig{
			GracePeriod: DefaultGracePeriod,
			PoliteWait:  DefaultPoliteWait,
		},
		Tracing: TracingConfig{
			Exporter:     DefaultTraceExporter,
			Endpoint:     DefaultTraceEndpoint,
			SamplingRate: 1,
		},
	}
}

// IsVOD reports whether the pipeline runs in VOD mode.
func (c Config) IsVOD() bool { return c.StreamingMode == ModeVOD }
