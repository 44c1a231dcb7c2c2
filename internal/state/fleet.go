package state

import (
	"sync"
	"time"

	"github.com/koptimizer/rigwatch/pkg/advisor"
	"github.com/koptimizer/rigwatch/pkg/cost"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

// Report is the complete outcome of one poll cycle.
type Report struct {
	CycleID   string    `json:"cycleId"`
	Timestamp time.Time `json:"timestamp"`
	Duration  string    `json:"duration"`

	// Rows are sorted by the configured column.
	Rows     []fleet.InstanceMetrics `json:"rows"`
	Sort     fleet.SortOptions       `json:"-"`
	Summary  fleet.FleetSummary      `json:"summary"`
	Outliers fleet.OutlierReport     `json:"outliers"`

	// InventorySpend is the running hourly spend of the whole inventory,
	// including instances whose logs could not be read.
	InventorySpend fleet.Optional[float64] `json:"inventorySpendUSD"`
	Balance        fleet.Optional[float64] `json:"balanceUSD"`
	Projection     *cost.Projection        `json:"projection,omitempty"`

	Issues []fleet.Issue   `json:"issues"`
	Advice *advisor.Advice `json:"advice,omitempty"`
}

// Row returns the row of one instance.
func (r *Report) Row(id string) (fleet.InstanceMetrics, bool) {
	for _, row := range r.Rows {
		if row.ID == id {
			return row, true
		}
	}
	return fleet.InstanceMetrics{}, false
}

// FleetState holds the latest published report and a short history of
// cycles. Readers never see a partially built report.
type FleetState struct {
	mu      sync.RWMutex
	latest  *Report
	History *CycleHistory
	Breaker *CircuitBreaker
}

// NewFleetState creates an empty FleetState.
func NewFleetState(breaker *CircuitBreaker, historySize int) *FleetState {
	return &FleetState{
		History: NewCycleHistory(historySize),
		Breaker: breaker,
	}
}

// Publish replaces the latest report and records the cycle in history.
func (s *FleetState) Publish(r *Report) {
	s.mu.Lock()
	s.latest = r
	s.mu.Unlock()
	s.History.Record(r)
}

// Latest returns the most recent report, or nil before the first cycle
// completes.
func (s *FleetState) Latest() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
