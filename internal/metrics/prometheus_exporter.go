package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/koptimizer/rigwatch/internal/state"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

var (
	// Fleet-level metrics
	FleetInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "fleet_instances",
		Help:      "Number of instances with a parsed miner sample in the last cycle",
	})

	FleetHashRate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "fleet_hash_rate",
		Help:      "Sum of reported hash rates across the fleet",
	})

	FleetHourlySpendUSD = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "fleet_hourly_spend_usd",
		Help:      "Hourly spend in USD",
	}, []string{"scope"}) // "reporting", "running", "inventory"

	FleetMeanDifficulty = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "fleet_mean_difficulty",
		Help:      "Mean mining difficulty reported by the fleet",
	})

	FleetMeanCostPerBlockUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "fleet_mean_cost_per_block_usd",
		Help:      "Mean cost per normal block across instances that mined one",
	})

	FleetBlocksPerHour = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "fleet_blocks_per_hour",
		Help:      "Total normal blocks per hour across the fleet",
	})

	// Instance metrics
	InstanceHashRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "instance_hash_rate",
		Help:      "Reported hash rate per instance",
	}, []string{"instance", "gpu_name"})

	InstanceHashPerGPU = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "instance_hash_per_gpu",
		Help:      "Hash rate per GPU per instance",
	}, []string{"instance", "gpu_name"})

	InstanceBlocksPerHour = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "instance_blocks_per_hour",
		Help:      "Normal blocks per hour per instance",
	}, []string{"instance", "gpu_name"})

	InstanceCostPerBlockUSD = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "instance_cost_per_block_usd",
		Help:      "Cost per normal block per instance",
	}, []string{"instance", "gpu_name"})

	// Outlier metrics
	OutliersFlagged = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "outliers_flagged",
		Help:      "Instances flagged as underperforming per hardware class",
	}, []string{"gpu_name"})

	ClassMeanHashPerGPU = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "class_mean_hash_per_gpu",
		Help:      "Mean hash rate per GPU per hardware class",
	}, []string{"gpu_name"})

	// Balance metrics
	BalanceUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "balance_usd",
		Help:      "Remaining account credit in USD",
	})

	RunwayMinutes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "runway_minutes",
		Help:      "Minutes the balance lasts at the current spend, -1 when spend is zero",
	})

	// Cycle metrics
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rigwatch",
		Name:      "cycles_total",
		Help:      "Total poll cycles",
	}, []string{"result"}) // "success", "error"

	CycleIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rigwatch",
		Name:      "cycle_issues_total",
		Help:      "Per-instance issues recorded by poll cycles",
	}, []string{"kind"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rigwatch",
		Name:      "cycle_duration_seconds",
		Help:      "Poll cycle duration",
		Buckets:   prometheus.DefBuckets,
	})

	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rigwatch",
		Name:      "log_fetch_duration_seconds",
		Help:      "Per-instance log fetch latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"}) // "success", "error"

	BreakersTripped = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rigwatch",
		Name:      "fetch_breakers_tripped",
		Help:      "Instances whose log fetch circuit breaker is open",
	})
)

// ObserveFetch records the latency of one log fetch.
func ObserveFetch(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	FetchDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RecordCycleError counts a cycle that failed before producing a report.
func RecordCycleError() {
	CyclesTotal.WithLabelValues("error").Inc()
}

// RecordReport exports a completed cycle. Per-instance and per-class series
// are reset first so destroyed instances disappear.
func RecordReport(r *state.Report, d time.Duration) {
	CyclesTotal.WithLabelValues("success").Inc()
	CycleDuration.Observe(d.Seconds())
	for _, issue := range r.Issues {
		CycleIssues.WithLabelValues(string(issue.Kind)).Inc()
	}

	FleetInstances.Set(float64(r.Summary.Instances))
	setOptional(FleetHashRate, r.Summary.TotalHashRate)
	setOptional(FleetMeanDifficulty, r.Summary.MeanDifficulty)
	setOptional(FleetMeanCostPerBlockUSD, r.Summary.MeanCostPerBlock)
	setOptional(FleetBlocksPerHour, r.Summary.TotalBlocksPerHour)
	setOptional(FleetHourlySpendUSD.WithLabelValues("reporting"), r.Summary.TotalHourlySpend)
	setOptional(FleetHourlySpendUSD.WithLabelValues("running"), r.Summary.RunningHourlySpend)
	setOptional(FleetHourlySpendUSD.WithLabelValues("inventory"), r.InventorySpend)

	InstanceHashRate.Reset()
	InstanceHashPerGPU.Reset()
	InstanceBlocksPerHour.Reset()
	InstanceCostPerBlockUSD.Reset()
	for _, row := range r.Rows {
		InstanceHashRate.WithLabelValues(row.ID, row.HardwareClass).Set(row.Sample.HashRate)
		InstanceBlocksPerHour.WithLabelValues(row.ID, row.HardwareClass).Set(row.BlocksPerHour)
		if v, ok := row.HashPerGPU.Get(); ok {
			InstanceHashPerGPU.WithLabelValues(row.ID, row.HardwareClass).Set(v)
		}
		if v, ok := row.CostPerBlock.Get(); ok {
			InstanceCostPerBlockUSD.WithLabelValues(row.ID, row.HardwareClass).Set(v)
		}
	}

	OutliersFlagged.Reset()
	ClassMeanHashPerGPU.Reset()
	for _, class := range r.Outliers.ClassNames() {
		OutliersFlagged.WithLabelValues(class).Set(float64(len(r.Outliers.FlaggedIn(class))))
		if mean, ok := r.Outliers.Classes[class].Mean.Get(); ok {
			ClassMeanHashPerGPU.WithLabelValues(class).Set(mean)
		}
	}

	setOptional(BalanceUSD, r.Balance)
	if p := r.Projection; p != nil {
		if p.LastsIndefinitely {
			RunwayMinutes.Set(-1)
		} else {
			rw := p.Runway
			RunwayMinutes.Set(float64(rw.Days*24*60 + rw.Hours*60 + rw.Minutes))
		}
	}
}

// RecordBreakers exports the number of open fetch breakers.
func RecordBreakers(cb *state.CircuitBreaker) {
	if cb == nil {
		return
	}
	BreakersTripped.Set(float64(len(cb.Tripped())))
}

func setOptional(g prometheus.Gauge, o fleet.Optional[float64]) {
	if v, ok := o.Get(); ok {
		g.Set(v)
	}
}
