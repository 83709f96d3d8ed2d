package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// methodNotify is the GENA event delivery method.
const methodNotify = "NOTIFY"

// healthCheckTimeout bounds each dependency check of the health endpoint.
const healthCheckTimeout = 2 * time.Second

func init() {
	chi.RegisterMethod(methodNotify)
}

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// UPnP service resources: {prefix}/dev/{udn}/svc/{ns}/{id}/{resource}
	devPattern := s.namespace.Prefix() + "/dev/*"
	r.Post(devPattern, s.handleControl)
	r.MethodFunc(methodNotify, devPattern, s.handleNotify)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Route("/{udn}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/services/{serviceID}/state", s.handleGetState)
				r.Put("/services/{serviceID}/state", s.handleSetState)
			})
		})

		r.Get("/events", s.handleListEvents)
		r.Get("/invocations", s.handleListInvocations)
	})

	return r
}

// handleHealth reports the server version and the state of every
// registered dependency. Any failing check answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(s.healthChecks))

	for name, checker := range s.healthChecks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
