package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
)

type contextKey string

const ctxKeyRequestID contextKey = "request_id"

// defaultMaxBodyBytes applies when api.max_body_bytes is unset.
const defaultMaxBodyBytes = 1 << 20

// requestIDMiddleware keeps a caller's X-Request-ID or assigns a UUID.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

// loggingMiddleware logs one line per request. Control requests add the
// SOAPACTION header and event deliveries their subscription and sequence,
// so a device's traffic can be followed through the log.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		}
		attrs = append(attrs, upnpAttrs(r)...)
		s.logger.Info("http request", attrs...)
	})
}

func upnpAttrs(r *http.Request) []any {
	switch r.Method {
	case http.MethodPost:
		if action := r.Header.Get("SOAPACTION"); action != "" {
			return []any{"soap_action", action}
		}
	case methodNotify:
		return []any{"sid", r.Header.Get("SID"), "seq", r.Header.Get("SEQ")}
	}
	return nil
}

// recoveryMiddleware turns a handler panic into a 500. A control point
// on a SOAP endpoint gets a 501 Action Failed fault it can parse; the
// JSON API gets its usual error body.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			s.logger.Error("panic recovered in HTTP handler",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", r.Context().Value(ctxKeyRequestID),
			)
			if r.Method == http.MethodPost && r.Header.Get("SOAPACTION") != "" {
				s.writeFault(w, control.NewActionError(control.ActionFailed, "internal error"))
				return
			}
			writeInternalError(w, "internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// bodySizeLimitMiddleware caps request bodies at api.max_body_bytes.
func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	limit := s.cfg.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		}
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
