package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"github.com/koptimizer/rigwatch/internal/apiserver"
	"github.com/koptimizer/rigwatch/internal/cloud"
	"github.com/koptimizer/rigwatch/internal/config"
	"github.com/koptimizer/rigwatch/internal/controller/fleetmonitor"
	"github.com/koptimizer/rigwatch/internal/logfetch"
	"github.com/koptimizer/rigwatch/internal/report"
	"github.com/koptimizer/rigwatch/internal/state"
	"github.com/koptimizer/rigwatch/pkg/advisor"
)

func main() {
	var configFile string
	var development bool
	var once bool

	flag.StringVar(&configFile, "config", "/etc/rigwatch/config.yaml", "Path to config file")
	flag.BoolVar(&development, "dev", false, "Human-readable debug logging")
	flag.BoolVar(&once, "once", false, "Run a single poll cycle, print the report and exit")
	flag.Parse()

	zapLog, err := newZap(development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: building logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zapLog.Sync() }()
	log := zapr.NewLogger(zapLog)
	setupLog := log.WithName("setup")

	// Load configuration
	cfg, found, err := config.Load(configFile)
	if err != nil {
		setupLog.Error(err, "Failed to load configuration", "path", configFile)
		os.Exit(1)
	}
	if !found {
		setupLog.Info("Config file not found, using defaults and environment", "path", configFile)
	}

	if err := cfg.ValidateDetailed(); err != nil {
		setupLog.Error(err, "Invalid configuration",
			"provider", cfg.Provider,
			"fetchSource", cfg.Fetch.Source,
			"configFile", configFile,
		)
		os.Exit(1)
	}

	setupLog.Info("Starting rigwatch",
		"provider", cfg.Provider,
		"fetchSource", cfg.Fetch.Source,
		"pollInterval", cfg.PollInterval,
		"schedule", cfg.Schedule,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logr.NewContext(ctx, log)

	provider, err := cloud.NewProvider(cfg, log)
	if err != nil {
		setupLog.Error(err, "Unable to create inventory provider")
		os.Exit(1)
	}
	testCtx, testCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := provider.TestConnection(testCtx); err != nil {
		// Not fatal: the poll loop reports fetch failures per cycle.
		setupLog.Error(err, "Provider connection test failed", "provider", provider.Name())
	}
	testCancel()

	fetcher, err := logfetch.New(cfg)
	if err != nil {
		setupLog.Error(err, "Unable to create log fetcher")
		os.Exit(1)
	}

	var breaker *state.CircuitBreaker
	if cfg.Breaker.Enabled {
		breaker = state.NewCircuitBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.Window)
	}
	fleetState := state.NewFleetState(breaker, 0)

	adv := advisor.New(advisor.Config{
		Enabled:     cfg.Advisor.Enabled,
		Model:       cfg.Advisor.Model,
		Timeout:     cfg.Advisor.Timeout,
		MaxOutliers: cfg.Advisor.MaxOutliers,
	})

	sinks := report.NewSinks(cfg.Report, os.Stdout)
	if once {
		// A single run always prints, whatever the console setting.
		sinks = report.NewSinks(config.ReportConfig{Console: true, OutputFile: cfg.Report.OutputFile}, os.Stdout)
	}

	controller := fleetmonitor.NewController(provider, fetcher, fleetState, cfg, adv, sinks)

	if once {
		if _, err := controller.RunCycle(ctx); err != nil {
			setupLog.Error(err, "Poll cycle failed")
			os.Exit(1)
		}
		return
	}

	// Start REST API server
	var apiSrv *http.Server
	if cfg.APIServer.Enabled {
		apiSrv = apiserver.NewServer(cfg, fleetState, controller)
		go func() {
			setupLog.Info("Starting API server", "address", apiSrv.Addr)
			if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				setupLog.Error(err, "API server error")
				stop()
			}
		}()
	}

	setupLog.Info("Starting fleet monitor")
	if err := controller.Start(ctx); err != nil {
		setupLog.Error(err, "Fleet monitor stopped")
		os.Exit(1)
	}

	setupLog.Info("Shutting down")
	if apiSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			setupLog.Error(err, "API server shutdown")
		}
	}
}

func newZap(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
