// Package httpapi wires the HTTP surface of the card service. Handlers stay
// thin and delegate balance rules to the ledger service.
package httpapi

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turgut5534/amic-card-app/internal/ledger"
	"github.com/turgut5534/amic-card-app/internal/pager"
)

// Server wires handlers and middleware using Chi.
type Server struct {
	svc   *ledger.Service
	store ledger.Store
	pages pager.Pager
	log   *slog.Logger
	rt    *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
func New(svc *ledger.Service, store ledger.Store, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		svc:   svc,
		store: store,
		pages: pager.New(pager.DefaultPageSize),
		log:   logger,
		rt:    r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	s.rt.Get("/cards/{id}/info", s.getCardInfo)
	s.rt.Get("/cards/{id}/latest-fuel-price", s.getLatestFuelPrice)
	s.rt.Get("/cards/{id}/transactions", s.listTransactions)
	s.rt.Post("/cards/{id}/spend", s.postSpend)
	s.rt.Post("/cards/{id}/topup", s.postTopUp)
	s.rt.Post("/cards/add", s.postAddCard)
	// Health and metrics
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
}
