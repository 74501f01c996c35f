package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/skyplan/api/plans"
	"github.com/kilianp07/skyplan/api/runs"
	"github.com/kilianp07/skyplan/infra/metrics"
)

// RequestTimeout bounds one API request, planning included.
const RequestTimeout = 5 * time.Minute

// Handler routes the HTTP API. The /api routes require the configured bearer
// token; /metrics and /healthz are open.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	token := s.cfg.Server.Token
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(RequestTimeout))
		r.Method(http.MethodPost, "/plans", plans.NewHandler(s, token))
		r.Method(http.MethodGet, "/runs", runs.NewHandler(s, token))
		r.Method(http.MethodGet, "/runs/{id}", runs.NewRecordHandler(s, token))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.gatherer))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// Addr is the configured listen address.
func (s *Service) Addr() string { return s.cfg.Server.Addr }
