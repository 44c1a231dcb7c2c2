package cost_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koptimizer/rigwatch/pkg/cost"
)

func TestProjectRunway(t *testing.T) {
	tests := []struct {
		name    string
		balance float64
		hourly  float64
		fee     float64
		want    cost.Runway
	}{
		{name: "no fee", balance: 100, hourly: 1, fee: 1, want: cost.Runway{Days: 4, Hours: 4}},
		{name: "default fee", balance: 100, hourly: 1, fee: cost.DefaultFeeMultiplier, want: cost.Runway{Days: 4, Hours: 3}},
		{name: "under a day", balance: 10, hourly: 0.5, fee: 1, want: cost.Runway{Hours: 20}},
		{name: "minutes", balance: 1, hourly: 0.8, fee: 1, want: cost.Runway{Hours: 1, Minutes: 15}},
		{name: "depleted", balance: -3, hourly: 1, fee: 1, want: cost.Runway{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cost.ProjectRunway(tt.balance, tt.hourly, tt.fee)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProjectRunway_DivisionUndefined(t *testing.T) {
	tests := []struct {
		name   string
		hourly float64
		fee    float64
	}{
		{name: "zero spend", hourly: 0, fee: 1.01},
		{name: "negative spend", hourly: -2, fee: 1.01},
		{name: "zero fee", hourly: 1, fee: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cost.ProjectRunway(100, tt.hourly, tt.fee)
			assert.True(t, errors.Is(err, cost.ErrDivisionUndefined))
		})
	}
}

func TestProject(t *testing.T) {
	p := cost.Project(100, 0, cost.DefaultFeeMultiplier)
	assert.True(t, p.LastsIndefinitely)
	assert.Equal(t, cost.Runway{}, p.Runway)

	p = cost.Project(100, 1, 1)
	assert.False(t, p.LastsIndefinitely)
	assert.Equal(t, "4 days, 4 hours, 0 minutes", p.Runway.String())
	assert.InDelta(t, 24.0, p.DailySpendUSD, 1e-9)
	assert.InDelta(t, cost.HoursPerMonth, p.MonthlySpendUSD, 1e-9)
}
