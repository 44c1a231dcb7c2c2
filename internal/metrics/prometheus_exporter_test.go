package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/koptimizer/rigwatch/internal/state"
	"github.com/koptimizer/rigwatch/pkg/cost"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

func row(id, class string, hash float64, perGPU fleet.Optional[float64]) fleet.InstanceMetrics {
	m := fleet.InstanceMetrics{
		InstanceDescriptor: fleet.InstanceDescriptor{ID: id, HardwareClass: class},
		HashPerGPU:         perGPU,
		BlocksPerHour:      2,
	}
	m.Sample.HashRate = hash
	return m
}

func TestRecordReport(t *testing.T) {
	r := &state.Report{
		Rows: []fleet.InstanceMetrics{
			row("101", "RTX 4090", 100, fleet.Some(100.0)),
			row("102", "RTX 4090", 10, fleet.None[float64]()),
		},
		Summary: fleet.FleetSummary{
			Instances:          2,
			TotalHashRate:      fleet.Some(110.0),
			RunningHourlySpend: fleet.Some(0.8),
		},
		Outliers: fleet.OutlierReport{
			Classes: map[string]fleet.ClassStats{
				"RTX 4090": {Class: "RTX 4090", Samples: 4, Mean: fleet.Some(77.5), StdDev: fleet.Some(45.0)},
			},
			Flagged: []fleet.Outlier{{InstanceID: "102", Class: "RTX 4090", ZScore: -2.5}},
		},
		InventorySpend: fleet.Some(1.2),
		Balance:        fleet.Some(100.0),
		Projection:     &cost.Projection{Runway: cost.Runway{Days: 4, Hours: 4}},
		Issues:         []fleet.Issue{{InstanceID: "103", Kind: fleet.IssueFetch, Detail: "timeout"}},
	}

	before := testutil.ToFloat64(CycleIssues.WithLabelValues("fetch"))
	RecordReport(r, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(FleetInstances))
	assert.Equal(t, 110.0, testutil.ToFloat64(FleetHashRate))
	assert.Equal(t, 0.8, testutil.ToFloat64(FleetHourlySpendUSD.WithLabelValues("running")))
	assert.Equal(t, 1.2, testutil.ToFloat64(FleetHourlySpendUSD.WithLabelValues("inventory")))
	assert.Equal(t, 100.0, testutil.ToFloat64(InstanceHashRate.WithLabelValues("101", "RTX 4090")))
	assert.Equal(t, 1, testutil.CollectAndCount(InstanceHashPerGPU))
	assert.Equal(t, 1.0, testutil.ToFloat64(OutliersFlagged.WithLabelValues("RTX 4090")))
	assert.Equal(t, 77.5, testutil.ToFloat64(ClassMeanHashPerGPU.WithLabelValues("RTX 4090")))
	assert.Equal(t, 100.0, testutil.ToFloat64(BalanceUSD))
	assert.Equal(t, float64(4*24*60+4*60), testutil.ToFloat64(RunwayMinutes))
	assert.Equal(t, before+1, testutil.ToFloat64(CycleIssues.WithLabelValues("fetch")))

	// A later cycle without instance 101 drops its series.
	r.Rows = r.Rows[1:]
	r.Projection = &cost.Projection{LastsIndefinitely: true}
	RecordReport(r, time.Second)
	assert.Equal(t, 1, testutil.CollectAndCount(InstanceHashRate))
	assert.Equal(t, -1.0, testutil.ToFloat64(RunwayMinutes))
}

func TestObserveFetch(t *testing.T) {
	ObserveFetch(time.Millisecond, nil)
	ObserveFetch(time.Millisecond, errors.New("boom"))
	assert.Equal(t, 2, testutil.CollectAndCount(FetchDuration))
}

func TestRecordBreakers(t *testing.T) {
	cb := state.NewCircuitBreaker(1, time.Hour)
	cb.RecordFailure("101")
	RecordBreakers(cb)
	assert.Equal(t, 1.0, testutil.ToFloat64(BreakersTripped))

	RecordBreakers(nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(BreakersTripped))
}
