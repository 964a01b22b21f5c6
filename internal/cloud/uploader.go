// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cloud writes packager output to object storage.
//
// Each Uploader is bound to one destination URL (gs:// or s3://) and keeps a
// persistent client. A Pool hands uploaders out to callers one request at a
// time.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrUnsupportedScheme is returned for destination URLs other than gs:// and s3://.
var ErrUnsupportedScheme = errors.New("cloud: unsupported upload location scheme")

// Uploader writes and deletes objects under one destination URL.
// Paths are relative to that URL, as received from the packager.
type Uploader interface {
	WriteNonChunked(ctx context.Context, path string, data []byte) error
	StartChunked(ctx context.Context, path string) error
	WriteChunk(ctx context.Context, data []byte) error
	EndChunked(ctx context.Context) error
	Delete(ctx context.Context, path string) error
	// Reset abandons any partial transfer and clears per-request state.
	Reset()
}

// Factory creates a new Uploader for a pool worker.
type Factory func(ctx context.Context) (Uploader, error)

// Location is a parsed destination URL.
type Location struct {
	Scheme string
	Bucket string
	Prefix string // no leading or trailing slash
}

// ParseLocation parses gs://bucket/prefix or s3://bucket/prefix.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse upload location %q: %w", raw, err)
	}
	switch u.Scheme {
	case "gs", "s3":
	default:
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, raw)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("upload location %q has no bucket", raw)
	}
	return Location{Scheme: u.Scheme, Bucket: u.Host, Prefix: strings.Trim(u.Path, "/")}, nil
}

// IsCloudLocation reports whether raw names a supported object store.
func IsCloudLocation(raw string) bool {
	return strings.HasPrefix(raw, "gs://") || strings.HasPrefix(raw, "s3://")
}

// Key joins the location prefix with a request path. Object keys never have
// leading slashes.
func (l Location) Key(path string) string {
	path = strings.Trim(path, "/")
	if l.Prefix == "" {
		return path
	}
	return l.Prefix + "/" + path
}

// NewFactory returns a Factory for the given destination URL. Unsupported
// schemes are rejected here, before any worker starts.
func NewFactory(location string) (Factory, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	switch loc.Scheme {
	case "gs":
		return func(ctx context.Context) (Uploader, error) {
			return NewGCSUploader(ctx, loc)
		}, nil
	default:
		return func(ctx context.Context) (Uploader, error) {
			return NewS3Uploader(ctx, loc)
		}, nil
	}
}
