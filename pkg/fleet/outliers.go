package fleet

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// MinClassSamples is the smallest class for which statistics are computed.
const MinClassSamples = 2

// DefaultOutlierThreshold is the z-score magnitude below the class mean at
// which a rig is flagged.
const DefaultOutlierThreshold = 2.0

// ClassStats describes one hardware class. Mean and StdDev are unset when
// the class has fewer than MinClassSamples contributing rows.
type ClassStats struct {
	Class   string            `json:"class"`
	Samples int               `json:"samples"`
	Mean    Optional[float64] `json:"meanHashPerGPU"`
	StdDev  Optional[float64] `json:"stdDevHashPerGPU"`
}

// Sufficient reports whether the class had enough rows for statistics.
func (s ClassStats) Sufficient() bool {
	return s.Samples >= MinClassSamples
}

// Outlier is a rig whose per-GPU hash rate sits more than the threshold
// number of standard deviations below its class mean.
type Outlier struct {
	InstanceID string  `json:"instanceId"`
	Class      string  `json:"class"`
	HashPerGPU float64 `json:"hashPerGPU"`
	ZScore     float64 `json:"zScore"`
}

// PercentBelowMean is how far the rig trails the given class mean.
func (o Outlier) PercentBelowMean(mean float64) float64 {
	if mean == 0 {
		return 0
	}
	return (mean - o.HashPerGPU) / mean * 100
}

// OutlierReport is the result of DetectOutliers. Flagged is grouped by
// class name, worst z-score first within a class.
type OutlierReport struct {
	Classes map[string]ClassStats `json:"classes"`
	Flagged []Outlier             `json:"flagged"`
}

// ClassNames returns the reported classes in name order.
func (r OutlierReport) ClassNames() []string {
	names := make([]string, 0, len(r.Classes))
	for name := range r.Classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FlaggedIn returns the flagged rigs of one class.
func (r OutlierReport) FlaggedIn(class string) []Outlier {
	var out []Outlier
	for _, o := range r.Flagged {
		if o.Class == class {
			out = append(out, o)
		}
	}
	return out
}

// DetectOutliers groups rows by hardware class and flags rigs whose per-GPU
// hash rate has a z-score below -threshold. Rows without a per-GPU hash
// rate are ignored. Classes whose values are all equal flag nothing.
func DetectOutliers(rows []InstanceMetrics, threshold float64) (OutlierReport, error) {
	if !(threshold > 0) || math.IsInf(threshold, 1) {
		return OutlierReport{}, fmt.Errorf("%w: outlier threshold must be a positive number, got %v", ErrInvalidConfig, threshold)
	}

	type member struct {
		id    string
		value float64
	}
	groups := make(map[string][]member)
	for _, r := range rows {
		v, ok := r.HashPerGPU.Get()
		if !ok {
			continue
		}
		groups[r.HardwareClass] = append(groups[r.HardwareClass], member{id: r.ID, value: v})
	}

	report := OutlierReport{Classes: make(map[string]ClassStats, len(groups))}
	for class, members := range groups {
		stats := ClassStats{Class: class, Samples: len(members)}
		if stats.Sufficient() {
			values := make([]float64, len(members))
			for i, m := range members {
				values[i] = m.value
			}
			stats.Mean = Some(Mean(values))
			stats.StdDev = Some(StdDev(values))
		}
		report.Classes[class] = stats
	}

	for _, class := range report.ClassNames() {
		stats := report.Classes[class]
		mean, ok := stats.Mean.Get()
		if !ok {
			continue
		}
		stddev := stats.StdDev.OrElse(0)
		if stddev == 0 {
			continue
		}

		var flagged []Outlier
		for _, m := range groups[class] {
			z := (m.value - mean) / stddev
			if z < -threshold {
				flagged = append(flagged, Outlier{InstanceID: m.id, Class: class, HashPerGPU: m.value, ZScore: z})
			}
		}
		slices.SortFunc(flagged, func(a, b Outlier) int {
			if c := cmp.Compare(a.ZScore, b.ZScore); c != 0 {
				return c
			}
			return cmp.Compare(a.InstanceID, b.InstanceID)
		})
		report.Flagged = append(report.Flagged, flagged...)
	}

	return report, nil
}
