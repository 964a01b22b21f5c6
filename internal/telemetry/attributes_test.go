// SPDX-License-Identifier: MIT

package telemetry

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestUploadAttributes(t *testing.T) {
	attrs := UploadAttributes("/video_1.mp4", ModeChunked, 2)
	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, UploadPathKey, "/video_1.mp4")
	verifyAttribute(t, attrs, UploadModeKey, ModeChunked)
	verifyIntAttribute(t, attrs, UploadWorkerIDKey, 2)

	if got := UploadAttributes("/dash.mpd", ModeWhole, -1); len(got) != 2 {
		t.Errorf("Expected worker id to be omitted, got %v", got)
	}
}

func TestConcatAttributes(t *testing.T) {
	attrs := ConcatAttributes("dash", 3, "/srv/out")
	verifyAttribute(t, attrs, ManifestFormatKey, "dash")
	verifyIntAttribute(t, attrs, PeriodCountKey, 3)
	verifyAttribute(t, attrs, OutputDirKey, "/srv/out")
}

func TestErrorAttributes(t *testing.T) {
	err := fmt.Errorf("merge: %w", &fs.PathError{Op: "open", Path: "x", Err: errors.New("boom")})
	attrs := ErrorAttributes(err)
	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "*errors.errorString")
}

func find(t *testing.T, attrs []attribute.KeyValue, key string) attribute.Value {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value
		}
	}
	t.Fatalf("Attribute %s not found", key)
	return attribute.Value{}
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	if got := find(t, attrs, key).AsString(); got != want {
		t.Errorf("Attribute %s: expected %q, got %q", key, want, got)
	}
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, want int) {
	t.Helper()
	if got := find(t, attrs, key).AsInt64(); got != int64(want) {
		t.Errorf("Attribute %s: expected %d, got %d", key, want, got)
	}
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, want bool) {
	t.Helper()
	if got := find(t, attrs, key).AsBool(); got != want {
		t.Errorf("Attribute %s: expected %v, got %v", key, want, got)
	}
}
