// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaka-project/shaka-streamer-sub000/internal/log"
	"github.com/shaka-project/shaka-streamer-sub000/internal/metrics"
	"github.com/shaka-project/shaka-streamer-sub000/internal/telemetry"
)

const chunkBufSize = 64 * 1024

// requestContext tags the request with an ID and records the response code.
// Successful requests are not logged; failures are logged by the handlers.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.ContextWithRequestID(r.Context(), uuid.NewString())
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		metrics.ObserveProxyRequest(r.Method, ww.Status())
	})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := r.URL.Path

	if !s.limiter.Allow(path) {
		_, _ = io.Copy(io.Discard, r.Body)
		metrics.IncProxySuppressed()
		s.suppressLog.Do(func() {
			logger := log.WithContext(ctx, s.logger)
			logger.Debug().Str(log.FieldPath, path).Msg("suppressing repeated upload")
		})
		w.WriteHeader(http.StatusAccepted)
		return
	}

	var err error
	if slices.Contains(r.TransferEncoding, "chunked") {
		annotate(ctx, path, telemetry.ModeChunked)
		err = s.putChunked(ctx, path, r.Body)
	} else {
		annotate(ctx, path, telemetry.ModeWhole)
		err = s.putWhole(ctx, path, r.Body)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// putChunked relays each piece of a chunked body as it arrives, holding one
// worker for the whole request. net/http has already removed the chunk framing.
func (s *Server) putChunked(ctx context.Context, path string, body io.Reader) error {
	h, err := s.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("acquire worker: %w", err)
	}
	defer h.Release()
	annotateWorker(ctx, h.WorkerID())

	if err := h.StartChunked(ctx, path); err != nil {
		return err
	}
	buf := make([]byte, chunkBufSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if err := h.WriteChunk(ctx, append([]byte(nil), buf[:n]...)); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("read chunked body: %w", rerr)
		}
	}
	return h.EndChunked(ctx)
}

func (s *Server) putWhole(ctx context.Context, path string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	h, err := s.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("acquire worker: %w", err)
	}
	defer h.Release()
	annotateWorker(ctx, h.WorkerID())
	return h.WriteNonChunked(ctx, path, data)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	annotate(ctx, r.URL.Path, telemetry.ModeDelete)
	if err := s.delete(ctx, r.URL.Path); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) delete(ctx context.Context, path string) error {
	h, err := s.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("acquire worker: %w", err)
	}
	defer h.Release()
	annotateWorker(ctx, h.WorkerID())
	return h.Delete(ctx, path)
}

// annotate tags the request span opened by otelhttp.
func annotate(ctx context.Context, path, mode string) {
	trace.SpanFromContext(ctx).SetAttributes(telemetry.UploadAttributes(path, mode, -1)...)
}

func annotateWorker(ctx context.Context, id int) {
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int(telemetry.UploadWorkerIDKey, id))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.WithContext(r.Context(), s.logger)
	trace.SpanFromContext(r.Context()).SetAttributes(telemetry.ErrorAttributes(err)...)
	logger.Error().Err(err).
		Str(log.FieldMethod, r.Method).
		Str(log.FieldPath, r.URL.Path).
		Msg("upload failure")
	w.WriteHeader(http.StatusInternalServerError)
}
