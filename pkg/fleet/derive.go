package fleet

import "github.com/koptimizer/rigwatch/pkg/minerlog"

// Derive computes the per-instance ratios for one descriptor and sample.
// A ratio whose dividend is unknown or whose denominator is zero is left
// unset, except blocks per hour and cost per block which are zero when
// nothing has been mined or no time has elapsed. A zero hash rate leaves
// hash per GPU unset so an idle rig stays out of its class statistics.
func Derive(d InstanceDescriptor, s minerlog.Sample) InstanceMetrics {
	m := InstanceMetrics{
		InstanceDescriptor: d,
		Sample:             s,
		RuntimeHours:       s.RuntimeHours(),
	}

	cost, costKnown := d.HourlyCost.Get()
	gpus, gpusKnown := d.GPUCount.Get()
	gpusKnown = gpusKnown && gpus > 0

	if gpusKnown {
		if costKnown {
			m.CostPerGPU = Some(cost / float64(gpus))
		}
		if s.HashRate != 0 {
			m.HashPerGPU = Some(s.HashRate / float64(gpus))
		}
	}

	if m.RuntimeHours != 0 {
		m.BlocksPerHour = float64(s.NormalBlocks) / m.RuntimeHours
	}

	switch {
	case s.NormalBlocks == 0:
		m.CostPerBlock = Some(0.0)
	case costKnown:
		m.CostPerBlock = Some(m.RuntimeHours * cost / float64(s.NormalBlocks))
	}

	if costKnown && cost != 0 {
		m.HashPerDollar = Some(s.HashRate / cost)
	}

	return m
}
