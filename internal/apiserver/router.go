package apiserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koptimizer/rigwatch/internal/apiserver/handler"
	"github.com/koptimizer/rigwatch/internal/config"
	"github.com/koptimizer/rigwatch/internal/state"
)

// NewRouter creates the API router with all endpoints.
func NewRouter(cfg *config.Config, fleetState *state.FleetState, refresher handler.Refresher) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	fleetHandler := handler.NewFleetHandler(fleetState, refresher)
	configHandler := handler.NewConfigHandler(cfg)

	r.Get("/healthz", fleetHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Fleet (literal routes before parameterized)
		r.Get("/fleet/summary", fleetHandler.GetSummary)
		r.Get("/fleet/instances", fleetHandler.ListInstances)
		r.Get("/fleet/instances/{id}", fleetHandler.GetInstance)
		r.Get("/fleet/outliers", fleetHandler.GetOutliers)
		r.Get("/fleet/classes", fleetHandler.GetClasses)
		r.Get("/fleet/runway", fleetHandler.GetRunway)
		r.Get("/fleet/issues", fleetHandler.GetIssues)
		r.Get("/fleet/history", fleetHandler.GetHistory)
		r.Get("/fleet/breakers", fleetHandler.GetBreakers)
		r.Post("/fleet/refresh", fleetHandler.Refresh)

		// Config
		r.Get("/config", configHandler.Get)
	})

	return r
}
