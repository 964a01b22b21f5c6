// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGCSWriter struct {
	ctx    context.Context
	bucket *fakeGCS
	key    string
	buf    bytes.Buffer
}

func (w *fakeGCSWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

// Close commits unless the writer context was cancelled, like storage.Writer.
func (w *fakeGCSWriter) Close() error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.bucket.objects[w.key] = w.buf.Bytes()
	return nil
}

type fakeGCS struct {
	objects   map[string][]byte
	deleteErr error
}

func (f *fakeGCS) NewWriter(ctx context.Context, key string) io.WriteCloser {
	return &fakeGCSWriter{ctx: ctx, bucket: f, key: key}
}

func (f *fakeGCS) Delete(_ context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.objects, key)
	return nil
}

func newTestGCS() (*GCSUploader, *fakeGCS) {
	fake := &fakeGCS{objects: map[string][]byte{}}
	return newGCSUploader(Location{Scheme: "gs", Bucket: "b", Prefix: "out"}, fake), fake
}

func TestGCSWriteNonChunked(t *testing.T) {
	u, fake := newTestGCS()
	require.NoError(t, u.WriteNonChunked(context.Background(), "/hls.m3u8", []byte("#EXTM3U")))
	assert.Equal(t, []byte("#EXTM3U"), fake.objects["out/hls.m3u8"])
}

func TestGCSChunked(t *testing.T) {
	u, fake := newTestGCS()
	ctx := context.Background()

	require.NoError(t, u.StartChunked(ctx, "/seg.m4s"))
	require.NoError(t, u.WriteChunk(ctx, []byte("abc")))
	require.NoError(t, u.WriteChunk(ctx, []byte("de")))
	require.NoError(t, u.EndChunked(ctx))
	assert.Equal(t, []byte("abcde"), fake.objects["out/seg.m4s"])
}

func TestGCSResetDiscardsPartialObject(t *testing.T) {
	u, fake := newTestGCS()
	ctx := context.Background()

	require.NoError(t, u.StartChunked(ctx, "/seg.m4s"))
	require.NoError(t, u.WriteChunk(ctx, []byte("partial")))
	u.Reset()

	assert.NotContains(t, fake.objects, "out/seg.m4s")
	assert.ErrorIs(t, u.WriteChunk(ctx, []byte("x")), ErrNoChunkedTransfer)
}

func TestGCSDelete(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "deleted", err: nil},
		{name: "missing object", err: fmt.Errorf("wrapped: %w", storage.ErrObjectNotExist)},
		{name: "other error", err: errors.New("permission denied"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, fake := newTestGCS()
			fake.deleteErr = tt.err
			err := u.Delete(context.Background(), "/gone.m4s")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
