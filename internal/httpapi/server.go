// Package httpapi exposes the assessment service over HTTP.
//
// Routes:
//
//	POST /api/attempts                 submit a recording for scoring
//	GET  /api/attempts/{id}            fetch one attempt
//	POST /api/attempts/{id}/coaching   attach an LLM coaching critique
//	POST /api/attempts/{id}/feedback   rate an attempt's assessment
//	GET  /api/attempts/{id}/drills     similar drills from the library
//	GET  /api/items/{id}/attempts      attempt history for a flashcard item
//	GET  /api/progress                 per-item aggregates for a user
//	GET  /healthz, /readyz             probes
//	GET  /metrics                      Prometheus scrape endpoint
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/accentor-app/accentor/internal/assess"
	"github.com/accentor-app/accentor/internal/health"
	"github.com/accentor-app/accentor/internal/observe"
)

// maxUploadBytes bounds one multipart submission. Recordings are short
// phrases; anything near this limit is not a flashcard attempt.
const maxUploadBytes = 10 << 20

// Server holds the HTTP handler dependencies.
type Server struct {
	svc    *assess.Service
	health *health.Handler
	logger *slog.Logger
}

// New creates a Server around the assessment service. checks become the
// /readyz probes.
func New(svc *assess.Service, logger *slog.Logger, checks ...health.Checker) *Server {
	return &Server{
		svc:    svc,
		health: health.New(checks...),
		logger: logger,
	}
}

// Router assembles the route table. metrics drives the request-duration
// middleware; pass observe.DefaultMetrics() when no custom registry is used.
func (s *Server) Router(metrics *observe.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(observe.Middleware(metrics))

	r.Route("/api", func(r chi.Router) {
		r.Post("/attempts", s.handleSubmitAttempt)
		r.Get("/attempts/{id}", s.handleGetAttempt)
		r.Post("/attempts/{id}/coaching", s.handleRequestCoaching)
		r.Post("/attempts/{id}/feedback", s.handleSubmitFeedback)
		r.Get("/attempts/{id}/drills", s.handleSimilarDrills)
		r.Get("/items/{id}/attempts", s.handleHistory)
		r.Get("/progress", s.handleProgress)
	})

	r.Get("/healthz", s.health.Healthz)
	r.Get("/readyz", s.health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
