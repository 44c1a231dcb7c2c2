// Package fleet derives per-instance economics from parsed miner samples,
// folds them into fleet-wide summaries and flags underperforming rigs.
package fleet

import (
	"strings"

	"github.com/koptimizer/rigwatch/pkg/minerlog"
)

// Status is the lifecycle state reported by the inventory.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusOther   Status = "other"
)

// ParseStatus maps an inventory status string onto a Status.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running":
		return StatusRunning
	case "stopped", "exited":
		return StatusStopped
	default:
		return StatusOther
	}
}

// InstanceDescriptor holds the identity and billing facts of one rented
// instance for a single poll cycle.
type InstanceDescriptor struct {
	ID             string            `json:"id"`
	HardwareClass  string            `json:"gpuName"`
	GPUCount       Optional[int]     `json:"gpuCount"`
	HourlyCost     Optional[float64] `json:"hourlyCostUSD"`
	GPUUtilization Optional[float64] `json:"gpuUtilPct"`
	Label          Optional[string]  `json:"label"`
	Status         Status            `json:"status"`
}

// InstanceMetrics is one row of the fleet table: the descriptor, the parsed
// sample and the ratios derived from them.
type InstanceMetrics struct {
	InstanceDescriptor
	Sample minerlog.Sample `json:"sample"`

	RuntimeHours  float64           `json:"runtimeHours"`
	CostPerGPU    Optional[float64] `json:"costPerGPU"`
	HashPerGPU    Optional[float64] `json:"hashPerGPU"`
	BlocksPerHour float64           `json:"blocksPerHour"`
	CostPerBlock  Optional[float64] `json:"costPerBlock"`
	HashPerDollar Optional[float64] `json:"hashPerDollar"`
}
