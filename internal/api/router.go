package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires every endpoint. /healthz and /metrics are open; the rest
// require the identity headers.
func NewRouter(svc Services) http.Handler {
	h := NewHandler(svc)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity)

		r.Post("/editions", h.CreateEditionHandler)
		r.Route("/editions/{id}", func(r chi.Router) {
			r.Get("/", h.GetEditionHandler)
			r.Post("/join", h.JoinHandler)
			r.Post("/picks", h.SubmitPickHandler)
			r.Get("/rounds/{round}/picks", h.ListRoundPicksHandler)
			r.Put("/rounds/{round}/deadline", h.SetRoundDeadlineHandler)
			r.Post("/reconcile", h.ReconcileHandler)
			r.Post("/close", h.CloseEditionHandler)
			r.Post("/participants/{userId}/restore", h.RestoreParticipantHandler)
			r.Get("/pool", h.PoolHandler)
		})

		r.Get("/leagues/{id}/rollover", h.RolloverHandler)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/balance", h.BalanceHandler)
			r.Get("/ledger", h.StatementHandler)
			r.Post("/adjustments", h.AdjustHandler)
			r.Get("/rewards", h.RewardsHandler)
		})
	})

	return r
}
