// Package cost projects how long an account balance covers the fleet's
// current spend.
package cost

import "fmt"

// HoursPerMonth is the average number of hours in a calendar month
// (365.2425 days/year * 24 hours/day / 12 months = 730.485).
const HoursPerMonth = 730.5

const (
	HoursPerDay    = 24
	MinutesPerHour = 60
	MinutesPerDay  = HoursPerDay * MinutesPerHour
)

// DefaultFeeMultiplier models the provider's surcharge on top of the listed
// hourly price.
const DefaultFeeMultiplier = 1.01

// Runway is the time a balance lasts at a fixed spend rate, truncated to
// whole minutes.
type Runway struct {
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
}

func (r Runway) String() string {
	return fmt.Sprintf("%d days, %d hours, %d minutes", r.Days, r.Hours, r.Minutes)
}

// Projection is a runway together with the inputs that produced it.
type Projection struct {
	BalanceUSD        float64 `json:"balanceUSD"`
	HourlySpendUSD    float64 `json:"hourlySpendUSD"`
	DailySpendUSD     float64 `json:"dailySpendUSD"`
	MonthlySpendUSD   float64 `json:"monthlySpendUSD"`
	FeeMultiplier     float64 `json:"feeMultiplier"`
	Runway            Runway  `json:"runway"`
	LastsIndefinitely bool    `json:"lastsIndefinitely"`
}

// MonthlySpend projects an hourly rate over an average month.
func MonthlySpend(hourly float64) float64 {
	return hourly * HoursPerMonth
}
