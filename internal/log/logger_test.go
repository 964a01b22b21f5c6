// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestReconfigureWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Reconfigure(Config{Level: "debug", Output: &buf, Service: "test-svc"})
	t.Cleanup(func() {
		Reconfigure(Config{})
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	l := WithComponent("proxy")
	l.Debug().Str(FieldPath, "/a.mpd").Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if entry["service"] != "test-svc" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry[FieldComponent] != "proxy" {
		t.Errorf("component = %v", entry[FieldComponent])
	}
	if entry[FieldPath] != "/a.mpd" {
		t.Errorf("path = %v", entry[FieldPath])
	}
}

func TestConfigureIsSticky(t *testing.T) {
	var first, second bytes.Buffer
	Reconfigure(Config{Output: &first})
	Configure(Config{Output: &second})
	t.Cleanup(func() { Reconfigure(Config{}) })

	l := Base()
	l.Info().Msg("x")
	if first.Len() == 0 {
		t.Error("expected output on the first writer")
	}
	if second.Len() != 0 {
		t.Error("Configure after Reconfigure must not replace the logger")
	}
}
