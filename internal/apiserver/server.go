package apiserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/koptimizer/rigwatch/internal/apiserver/handler"
	"github.com/koptimizer/rigwatch/internal/config"
	"github.com/koptimizer/rigwatch/internal/state"
)

// NewServer creates a new HTTP server for the REST API.
func NewServer(cfg *config.Config, fleetState *state.FleetState, refresher handler.Refresher) *http.Server {
	router := NewRouter(cfg, fleetState, refresher)

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.APIServer.Address, cfg.APIServer.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
