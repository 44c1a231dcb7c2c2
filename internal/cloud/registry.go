package cloud

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/koptimizer/rigwatch/internal/cloud/static"
	"github.com/koptimizer/rigwatch/internal/cloud/vastai"
	"github.com/koptimizer/rigwatch/internal/config"
	"github.com/koptimizer/rigwatch/pkg/cloudprovider"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

// NewProvider creates the InventoryProvider selected by cfg.Provider.
func NewProvider(cfg *config.Config, logger logr.Logger) (cloudprovider.InventoryProvider, error) {
	switch cfg.Provider {
	case "vastai":
		return vastai.NewProvider(vastai.Config{
			BaseURL:           cfg.VastAI.BaseURL,
			APIKey:            cfg.VastAI.APIKey,
			MaxAttempts:       cfg.VastAI.MaxAttempts,
			RetryDelay:        cfg.VastAI.RetryDelay,
			RequestsPerSecond: cfg.VastAI.RequestsPerSecond,
			Timeout:           cfg.VastAI.Timeout,
		}, logger)
	case "static":
		return static.NewProvider(cfg.Static.Path)
	case "":
		return nil, fmt.Errorf("%w: provider is required: set to 'vastai' or 'static' in config", fleet.ErrInvalidConfig)
	default:
		return nil, fmt.Errorf("%w: unsupported provider: %s", fleet.ErrInvalidConfig, cfg.Provider)
	}
}
