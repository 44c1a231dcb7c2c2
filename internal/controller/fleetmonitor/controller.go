package fleetmonitor

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"

	"github.com/koptimizer/rigwatch/internal/config"
	"github.com/koptimizer/rigwatch/internal/logfetch"
	"github.com/koptimizer/rigwatch/internal/report"
	"github.com/koptimizer/rigwatch/internal/state"
	"github.com/koptimizer/rigwatch/pkg/advisor"
	"github.com/koptimizer/rigwatch/pkg/cloudprovider"
)

// Controller polls the inventory, collects miner samples and publishes a
// fleet report every cycle.
type Controller struct {
	provider cloudprovider.InventoryProvider
	fetcher  logfetch.Fetcher
	state    *state.FleetState
	config   *config.Config
	advisor  *advisor.Advisor
	sink     report.Sink

	cycleMu sync.Mutex // Prevents overlapping cycles
	trigger chan struct{}
	now     func() time.Time
}

func NewController(provider cloudprovider.InventoryProvider, fetcher logfetch.Fetcher, st *state.FleetState, cfg *config.Config, adv *advisor.Advisor, sink report.Sink) *Controller {
	return &Controller{
		provider: provider,
		fetcher:  fetcher,
		state:    st,
		config:   cfg,
		advisor:  adv,
		sink:     sink,
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
	}
}

func (c *Controller) Name() string {
	return "fleetmonitor"
}

// Trigger requests an immediate cycle. It returns false when a request is
// already pending.
func (c *Controller) Trigger() bool {
	select {
	case c.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Start runs a cycle immediately, then on the configured schedule until ctx
// is done.
func (c *Controller) Start(ctx context.Context) error {
	logger := logr.FromContextOrDiscard(ctx).WithName(c.Name())

	var tick <-chan time.Time
	if c.config.Schedule != "" {
		cronScheduler := cron.New()
		if _, err := cronScheduler.AddFunc(c.config.Schedule, func() {
			logger.V(1).Info("Scheduled cycle due")
			c.Trigger()
		}); err != nil {
			return err
		}
		cronScheduler.Start()
		defer cronScheduler.Stop()
		logger.Info("Polling on schedule", "schedule", c.config.Schedule)
	} else {
		ticker := time.NewTicker(c.config.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
		logger.Info("Polling on interval", "interval", c.config.PollInterval)
	}

	c.runLogged(ctx)
	for {
		select {
		case <-tick:
			c.runLogged(ctx)
		case <-c.trigger:
			c.runLogged(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Controller) runLogged(ctx context.Context) {
	if _, err := c.RunCycle(ctx); err != nil {
		logr.FromContextOrDiscard(ctx).WithName(c.Name()).Error(err, "Poll cycle failed")
	}
}
