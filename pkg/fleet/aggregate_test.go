package fleet_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koptimizer/rigwatch/pkg/fleet"
	"github.com/koptimizer/rigwatch/pkg/minerlog"
)

type rowOpt func(*fleet.InstanceDescriptor, *minerlog.Sample)

func withLabel(l string) rowOpt {
	return func(d *fleet.InstanceDescriptor, _ *minerlog.Sample) { d.Label = fleet.Some(l) }
}

func withStatus(s fleet.Status) rowOpt {
	return func(d *fleet.InstanceDescriptor, _ *minerlog.Sample) { d.Status = s }
}

func withoutCost() rowOpt {
	return func(d *fleet.InstanceDescriptor, _ *minerlog.Sample) { d.HourlyCost = fleet.None[float64]() }
}

func withSample(s minerlog.Sample) rowOpt {
	return func(_ *fleet.InstanceDescriptor, dst *minerlog.Sample) { *dst = s }
}

func makeRow(id, class string, gpus int, cost float64, opts ...rowOpt) fleet.InstanceMetrics {
	d := fleet.InstanceDescriptor{
		ID:            id,
		HardwareClass: class,
		GPUCount:      fleet.Some(gpus),
		HourlyCost:    fleet.Some(cost),
		Status:        fleet.StatusRunning,
	}
	s := minerlog.Sample{Hours: 1, NormalBlocks: 10, HashRate: 100, Difficulty: 1000}
	for _, o := range opts {
		o(&d, &s)
	}
	return fleet.Derive(d, s)
}

func ids(rows []fleet.InstanceMetrics) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID
	}
	return out
}

func TestSummarize_Empty(t *testing.T) {
	s := fleet.Summarize(nil)

	assert.Zero(t, s.Instances)
	assert.False(t, s.MeanDifficulty.IsSet())
	assert.False(t, s.TotalHashRate.IsSet())
	assert.False(t, s.TotalHourlySpend.IsSet())
	assert.False(t, s.RunningHourlySpend.IsSet())
	assert.False(t, s.MeanCostPerBlock.IsSet())
	assert.False(t, s.TotalBlocksPerHour.IsSet())
}

func TestSummarize(t *testing.T) {
	rows := []fleet.InstanceMetrics{
		makeRow("1", "A100", 1, 1.0, withSample(minerlog.Sample{Hours: 2, NormalBlocks: 10, HashRate: 100, Difficulty: 1000})),
		makeRow("2", "A100", 1, 3.0, withStatus(fleet.StatusStopped), withSample(minerlog.Sample{Hours: 1, NormalBlocks: 5, HashRate: 50, Difficulty: 3000})),
		makeRow("3", "A100", 1, 2.0, withSample(minerlog.Sample{HashRate: 0})),
	}

	s := fleet.Summarize(rows)

	assert.Equal(t, 3, s.Instances)
	assert.InDelta(t, 2000.0, requireSet(t, s.MeanDifficulty), 1e-9)
	assert.InDelta(t, 150.0, requireSet(t, s.TotalHashRate), 1e-9)
	assert.InDelta(t, 6.0, requireSet(t, s.TotalHourlySpend), 1e-9)
	assert.InDelta(t, 3.0, requireSet(t, s.RunningHourlySpend), 1e-9)
	// (2h * $1 / 10) and (1h * $3 / 5); the zero-block row does not count
	assert.InDelta(t, 0.4, requireSet(t, s.MeanCostPerBlock), 1e-9)
	assert.InDelta(t, 10.0, requireSet(t, s.TotalBlocksPerHour), 1e-9)
}

func TestSummarize_NoRunningRows(t *testing.T) {
	rows := []fleet.InstanceMetrics{
		makeRow("1", "A100", 1, 1.0, withStatus(fleet.StatusOther)),
		makeRow("2", "A100", 1, 1.0, withoutCost()),
	}

	s := fleet.Summarize(rows)

	assert.InDelta(t, 1.0, requireSet(t, s.TotalHourlySpend), 1e-9)
	assert.False(t, s.RunningHourlySpend.IsSet())
}

func TestInventorySpend(t *testing.T) {
	descs := []fleet.InstanceDescriptor{
		{ID: "1", HourlyCost: fleet.Some(0.5), Status: fleet.StatusRunning},
		{ID: "2", HourlyCost: fleet.Some(0.7), Status: fleet.StatusStopped},
		{ID: "3", Status: fleet.StatusRunning},
		{ID: "4", HourlyCost: fleet.Some(0.25), Status: fleet.StatusRunning},
	}

	assert.InDelta(t, 0.75, requireSet(t, fleet.InventorySpend(descs)), 1e-9)
	assert.False(t, fleet.InventorySpend(nil).IsSet())
}

func TestSortRows_NumericWithUnavailable(t *testing.T) {
	rows := []fleet.InstanceMetrics{
		makeRow("a", "A100", 1, 2.0),
		makeRow("b", "A100", 1, 1.0, withoutCost()),
		makeRow("c", "A100", 1, 1.0),
	}

	asc, err := fleet.SortRows(rows, fleet.SortOptions{Column: fleet.ColumnCostPerBlock})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(asc))

	desc, err := fleet.SortRows(rows, fleet.SortOptions{Column: fleet.ColumnCostPerBlock, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, ids(desc))
}

func TestSortRows_ColumnFallsBackToLexicographic(t *testing.T) {
	rows := []fleet.InstanceMetrics{
		makeRow("1", "A100", 1, 1.0, withLabel("9")),
		makeRow("2", "A100", 1, 1.0, withLabel("rig-b")),
		makeRow("3", "A100", 1, 1.0, withLabel("10")),
		makeRow("4", "A100", 1, 1.0),
	}

	sorted, err := fleet.SortRows(rows, fleet.SortOptions{Column: fleet.ColumnLabel})
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "3", "1", "2"}, ids(sorted))
}

func TestSortRows_AllNumericTextSortsNumerically(t *testing.T) {
	rows := []fleet.InstanceMetrics{
		makeRow("1", "A100", 1, 1.0, withLabel("9")),
		makeRow("2", "A100", 1, 1.0, withLabel("10")),
		makeRow("3", "A100", 1, 1.0, withLabel("1.5")),
	}

	sorted, err := fleet.SortRows(rows, fleet.SortOptions{Column: fleet.ColumnLabel})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "1", "2"}, ids(sorted))
}

func TestSortRows_TiesBreakOnFullRow(t *testing.T) {
	rows := []fleet.InstanceMetrics{
		makeRow("b", "A100", 1, 1.0),
		makeRow("a", "A100", 1, 1.0),
		makeRow("c", "A100", 1, 1.0),
	}

	asc, err := fleet.SortRows(rows, fleet.SortOptions{Column: fleet.ColumnHourlyCost})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(asc))

	desc, err := fleet.SortRows(rows, fleet.SortOptions{Column: fleet.ColumnHourlyCost, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "a"}, ids(desc))
}

func TestSortRows_Idempotent(t *testing.T) {
	rows := []fleet.InstanceMetrics{
		makeRow("3", "RTX 3090", 2, 0.6, withLabel("x")),
		makeRow("1", "A100", 1, 1.0, withoutCost()),
		makeRow("2", "RTX 4090", 1, 0.4),
	}

	for c := range fleet.Columns() {
		opts := fleet.SortOptions{Column: fleet.Column(c)}
		once, err := fleet.SortRows(rows, opts)
		require.NoError(t, err)
		twice, err := fleet.SortRows(once, opts)
		require.NoError(t, err)
		assert.Equal(t, ids(once), ids(twice), "column %s", opts.Column)
	}
}

func TestSortRows_DoesNotDropOrMutate(t *testing.T) {
	rows := []fleet.InstanceMetrics{
		makeRow("2", "A100", 1, 1.0),
		makeRow("1", "A100", 1, 1.0, withoutCost()),
	}

	sorted, err := fleet.SortRows(rows, fleet.DefaultSortOptions())
	require.NoError(t, err)
	assert.Len(t, sorted, 2)
	assert.Equal(t, []string{"2", "1"}, ids(rows))
}

func TestSortRows_InvalidColumn(t *testing.T) {
	_, err := fleet.SortRows(nil, fleet.SortOptions{Column: fleet.Column(13)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, fleet.ErrInvalidConfig))

	_, _, err = fleet.Aggregate(nil, fleet.SortOptions{Column: fleet.Column(-1)})
	assert.True(t, errors.Is(err, fleet.ErrInvalidConfig))
}

func TestParseColumn(t *testing.T) {
	tests := []struct {
		in      string
		want    fleet.Column
		wantErr bool
	}{
		{in: "USD/Block", want: fleet.ColumnCostPerBlock},
		{in: "usd/block", want: fleet.ColumnCostPerBlock},
		{in: " GPU h/s ", want: fleet.ColumnHashPerGPU},
		{in: "0", want: fleet.ColumnInstanceID},
		{in: "11", want: fleet.ColumnCostPerBlock},
		{in: "13", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "profit", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := fleet.ParseColumn(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, fleet.ErrInvalidConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstanceMetrics_Cells(t *testing.T) {
	m := makeRow("42", "RTX 4090", 2, 0.5, withoutCost())
	cells := m.Cells()

	require.Len(t, cells, len(fleet.Columns()))
	assert.Equal(t, "42", cells[fleet.ColumnInstanceID].Text)
	assert.Equal(t, "2", cells[fleet.ColumnGPUCount].Text)
	assert.Equal(t, fleet.Unavailable, cells[fleet.ColumnHourlyCost].Text)
	assert.True(t, cells[fleet.ColumnCostPerBlock].Unavailable)
	assert.Equal(t, "50.00", cells[fleet.ColumnHashPerGPU].Text)
	assert.Equal(t, fleet.Unavailable, cells[fleet.ColumnLabel].Text)
}
