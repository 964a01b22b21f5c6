// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

const cacheControlNoCache = "no-cache"

// gcsBucket is the slice of the GCS client the uploader needs.
type gcsBucket interface {
	NewWriter(ctx context.Context, key string) io.WriteCloser
	Delete(ctx context.Context, key string) error
}

type storageBucket struct {
	h *storage.BucketHandle
}

func (b storageBucket) NewWriter(ctx context.Context, key string) io.WriteCloser {
	w := b.h.Object(key).NewWriter(ctx)
	w.CacheControl = cacheControlNoCache
	return w
}

func (b storageBucket) Delete(ctx context.Context, key string) error {
	return b.h.Object(key).Delete(ctx)
}

// GCSUploader streams objects to Google Cloud Storage.
type GCSUploader struct {
	loc    Location
	bucket gcsBucket

	chunked io.WriteCloser
	cancel  context.CancelFunc
}

// NewGCSUploader creates a client using application default credentials.
func NewGCSUploader(ctx context.Context, loc Location) (*GCSUploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	h := client.Bucket(loc.Bucket).Retryer(storage.WithPolicy(storage.RetryAlways))
	return newGCSUploader(loc, storageBucket{h: h}), nil
}

func newGCSUploader(loc Location, bucket gcsBucket) *GCSUploader {
	return &GCSUploader{loc: loc, bucket: bucket}
}

func (u *GCSUploader) WriteNonChunked(ctx context.Context, path string, data []byte) error {
	w := u.bucket.NewWriter(ctx, u.loc.Key(path))
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close %s: %w", path, err)
	}
	return nil
}

func (u *GCSUploader) StartChunked(ctx context.Context, path string) error {
	u.Reset()
	wctx, cancel := context.WithCancel(ctx)
	u.chunked = u.bucket.NewWriter(wctx, u.loc.Key(path))
	u.cancel = cancel
	return nil
}

func (u *GCSUploader) WriteChunk(_ context.Context, data []byte) error {
	if u.chunked == nil {
		return ErrNoChunkedTransfer
	}
	if _, err := u.chunked.Write(data); err != nil {
		return fmt.Errorf("gcs write chunk: %w", err)
	}
	return nil
}

// EndChunked commits the object by closing the writer.
func (u *GCSUploader) EndChunked(context.Context) error {
	if u.chunked == nil {
		return ErrNoChunkedTransfer
	}
	err := u.chunked.Close()
	u.cancel()
	u.chunked, u.cancel = nil, nil
	if err != nil {
		return fmt.Errorf("gcs finish chunked: %w", err)
	}
	return nil
}

// Delete removes an object. A missing object counts as deleted.
func (u *GCSUploader) Delete(ctx context.Context, path string) error {
	err := u.bucket.Delete(ctx, u.loc.Key(path))
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %s: %w", path, err)
	}
	return nil
}

// Reset aborts an open chunked writer. Cancelling its context discards the
// partial object instead of committing it.
func (u *GCSUploader) Reset() {
	if u.cancel != nil {
		u.cancel()
	}
	if u.chunked != nil {
		_ = u.chunked.Close()
	}
	u.chunked, u.cancel = nil, nil
}
