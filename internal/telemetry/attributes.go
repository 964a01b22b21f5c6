// SPDX-License-Identifier: MIT

package telemetry

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by upload and merge spans.
const (
	UploadPathKey     = "upload.path"
	UploadModeKey     = "upload.mode"
	UploadWorkerIDKey = "upload.worker_id"

	ManifestFormatKey = "manifest.format"
	PeriodCountKey    = "manifest.periods"
	OutputDirKey      = "manifest.output_dir"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// Upload modes.
const (
	ModeWhole   = "whole"
	ModeChunked = "chunked"
	ModeDelete  = "delete"
)

// UploadAttributes describes one proxied request. A negative worker id is
// left out.
func UploadAttributes(path, mode string, workerID int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(UploadPathKey, path),
		attribute.String(UploadModeKey, mode),
	}
	if workerID >= 0 {
		attrs = append(attrs, attribute.Int(UploadWorkerIDKey, workerID))
	}
	return attrs
}

// ConcatAttributes describes one manifest merge.
func ConcatAttributes(format string, periods int, outputDir string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ManifestFormatKey, format),
		attribute.Int(PeriodCountKey, periods),
		attribute.String(OutputDirKey, outputDir),
	}
}

// ErrorAttributes flags a span as failed. The type is the innermost wrapped
// error's Go type.
func ErrorAttributes(err error) []attribute.KeyValue {
	inner := err
	for {
		next := errors.Unwrap(inner)
		if next == nil {
			break
		}
		inner = next
	}
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, fmt.Sprintf("%T", inner)),
	}
}
