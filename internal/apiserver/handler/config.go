package handler

import (
	"net/http"

	"github.com/koptimizer/rigwatch/internal/config"
)

type ConfigHandler struct {
	config *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{config: cfg}
}

// Get returns the effective configuration. Credentials are never included.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	c := h.config
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider":     c.Provider,
		"pollInterval": c.PollInterval.String(),
		"schedule":     c.Schedule,
		"fetch": map[string]interface{}{
			"source":      c.Fetch.Source,
			"concurrency": c.Fetch.Concurrency,
			"timeout":     c.Fetch.Timeout.String(),
		},
		"report": map[string]interface{}{
			"sortColumn": c.Report.SortColumn,
			"sortOrder":  c.Report.SortOrder,
			"outputFile": c.Report.OutputFile,
		},
		"outlierThreshold": c.Outliers.Threshold,
		"balance": map[string]interface{}{
			"enabled":       c.Balance.Enabled,
			"feeMultiplier": c.Balance.FeeMultiplier,
		},
		"breaker": map[string]interface{}{
			"enabled":          c.Breaker.Enabled,
			"failureThreshold": c.Breaker.FailureThreshold,
			"window":           c.Breaker.Window.String(),
		},
		"advisor": map[string]interface{}{
			"enabled": c.Advisor.Enabled,
			"model":   c.Advisor.Model,
		},
		"vastaiKeyConfigured": c.VastAI.APIKey != "",
	})
}
