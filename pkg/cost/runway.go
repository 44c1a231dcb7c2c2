package cost

import (
	"errors"

	"github.com/shopspring/decimal"
)

// ErrDivisionUndefined is returned when the daily spend is not positive and
// the balance therefore never runs out.
var ErrDivisionUndefined = errors.New("daily spend is not positive, balance lasts indefinitely")

// ProjectRunway returns how long balance lasts when hourlySpend is charged
// with feeMultiplier applied. A non-positive balance has no runway left.
func ProjectRunway(balance, hourlySpend, feeMultiplier float64) (Runway, error) {
	daily := decimal.NewFromFloat(hourlySpend).
		Mul(decimal.NewFromInt(HoursPerDay)).
		Mul(decimal.NewFromFloat(feeMultiplier))
	if !daily.IsPositive() {
		return Runway{}, ErrDivisionUndefined
	}

	bal := decimal.NewFromFloat(balance)
	if !bal.IsPositive() {
		return Runway{}, nil
	}

	// Work in whole minutes so the day and hour remainders stay exact.
	minutes := bal.Mul(decimal.NewFromInt(MinutesPerDay)).Div(daily).Floor().IntPart()

	return Runway{
		Days:    minutes / MinutesPerDay,
		Hours:   minutes % MinutesPerDay / MinutesPerHour,
		Minutes: minutes % MinutesPerHour,
	}, nil
}

// Project wraps ProjectRunway into a Projection. A non-positive spend rate
// yields a projection marked as lasting indefinitely rather than an error.
func Project(balance, hourlySpend, feeMultiplier float64) Projection {
	p := Projection{
		BalanceUSD:      balance,
		HourlySpendUSD:  hourlySpend,
		DailySpendUSD:   hourlySpend * HoursPerDay * feeMultiplier,
		MonthlySpendUSD: MonthlySpend(hourlySpend) * feeMultiplier,
		FeeMultiplier:   feeMultiplier,
	}
	r, err := ProjectRunway(balance, hourlySpend, feeMultiplier)
	if errors.Is(err, ErrDivisionUndefined) {
		p.LastsIndefinitely = true
		return p
	}
	p.Runway = r
	return p
}
