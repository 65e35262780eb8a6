package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mstgnz/multipay/handler"
	"github.com/mstgnz/multipay/infra/metrics"
	"github.com/mstgnz/multipay/infra/middle"
	"github.com/mstgnz/multipay/infra/response"
	v1 "github.com/mstgnz/multipay/router/v1"
)

// Options configures the HTTP surface
type Options struct {
	// APIKeys protects /v1. Any one of them is accepted; none leaves /v1 open.
	APIKeys     []string
	AllowedIPs  []string
	RateLimiter *middle.RateLimiter
	// Metrics enables request metrics and /metrics when set
	Metrics *metrics.Metrics
	Health  *handler.HealthHandler
	V1      v1.Handlers
}

// Routes registers the middleware chain and every route on r
func Routes(r chi.Router, opts Options) {
	var recorder middle.RequestRecorder
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}

	r.Use(middle.RequestIDMiddleware())
	r.Use(middle.PanicRecoveryMiddleware())
	r.Use(middle.RequestLoggingMiddleware(recorder))
	r.Use(middle.SecurityHeadersMiddleware())

	if opts.Health != nil {
		r.Get("/health", opts.Health.CheckHealth)
	}
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middle.IPWhitelistMiddleware(opts.AllowedIPs))
		if opts.RateLimiter != nil {
			r.Use(middle.RateLimitMiddleware(opts.RateLimiter))
		}
		r.Use(middle.RequestValidationMiddleware())
		if len(opts.APIKeys) > 0 {
			r.Use(middle.AuthMiddleware(opts.APIKeys...))
		}

		v1.Routes(r, opts.V1)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "Not Found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "Method Not Allowed", nil)
	})
}
