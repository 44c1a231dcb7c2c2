package fleet

// FleetSummary holds the fleet-wide aggregates of one poll cycle. A field
// is unset when no row contributed to it.
type FleetSummary struct {
	Instances          int               `json:"instances"`
	MeanDifficulty     Optional[float64] `json:"meanDifficulty"`
	TotalHashRate      Optional[float64] `json:"totalHashRate"`
	TotalHourlySpend   Optional[float64] `json:"totalHourlySpendUSD"`
	RunningHourlySpend Optional[float64] `json:"runningHourlySpendUSD"`
	MeanCostPerBlock   Optional[float64] `json:"meanCostPerBlockUSD"`
	TotalBlocksPerHour Optional[float64] `json:"totalBlocksPerHour"`
}

type accumulator struct {
	sum float64
	n   int
}

func (a *accumulator) add(v float64) {
	a.sum += v
	a.n++
}

func (a accumulator) total() Optional[float64] {
	if a.n == 0 {
		return None[float64]()
	}
	return Some(a.sum)
}

func (a accumulator) mean() Optional[float64] {
	if a.n == 0 {
		return None[float64]()
	}
	return Some(a.sum / float64(a.n))
}

// Summarize folds rows into a FleetSummary.
//
// Difficulty and hash rate only count rows reporting a positive value. Cost
// per block only counts rows that mined at least one block, and blocks per
// hour only counts rows with elapsed runtime.
func Summarize(rows []InstanceMetrics) FleetSummary {
	var difficulty, hash, spend, running, perBlock, blocksPerHour accumulator

	for _, r := range rows {
		if r.Sample.Difficulty > 0 {
			difficulty.add(float64(r.Sample.Difficulty))
		}
		if r.Sample.HashRate > 0 {
			hash.add(r.Sample.HashRate)
		}
		if cost, ok := r.HourlyCost.Get(); ok {
			spend.add(cost)
			if r.Status == StatusRunning {
				running.add(cost)
			}
		}
		if v, ok := r.CostPerBlock.Get(); ok && r.Sample.NormalBlocks != 0 {
			perBlock.add(v)
		}
		if r.RuntimeHours != 0 {
			blocksPerHour.add(r.BlocksPerHour)
		}
	}

	return FleetSummary{
		Instances:          len(rows),
		MeanDifficulty:     difficulty.mean(),
		TotalHashRate:      hash.total(),
		TotalHourlySpend:   spend.total(),
		RunningHourlySpend: running.total(),
		MeanCostPerBlock:   perBlock.mean(),
		TotalBlocksPerHour: blocksPerHour.total(),
	}
}

// Aggregate sorts rows and summarizes them. Only an invalid sort column
// fails.
func Aggregate(rows []InstanceMetrics, opts SortOptions) ([]InstanceMetrics, FleetSummary, error) {
	sorted, err := SortRows(rows, opts)
	if err != nil {
		return nil, FleetSummary{}, err
	}
	return sorted, Summarize(rows), nil
}

// InventorySpend is the hourly spend of every running instance in the
// inventory, including those whose logs could not be read this cycle.
func InventorySpend(descriptors []InstanceDescriptor) Optional[float64] {
	var running accumulator
	for _, d := range descriptors {
		if cost, ok := d.HourlyCost.Get(); ok && d.Status == StatusRunning {
			running.add(cost)
		}
	}
	return running.total()
}
