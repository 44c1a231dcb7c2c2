package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, window time.Duration) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(threshold, window)
	cb.now = clock.Now
	return cb, clock
}

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb, clock := newTestBreaker(3, time.Hour)

	for i := 0; i < 2; i++ {
		cb.RecordFailure("101")
		clock.Advance(10 * time.Minute)
	}
	assert.False(t, cb.IsTripped("101"))

	cb.RecordFailure("101")
	assert.True(t, cb.IsTripped("101"))
	assert.Contains(t, cb.Status("101"), "tripped")
	assert.False(t, cb.IsTripped("102"))
	assert.Equal(t, "closed", cb.Status("102"))
}

func TestCircuitBreaker_FailuresOutsideWindowDoNotCount(t *testing.T) {
	cb, clock := newTestBreaker(3, time.Hour)

	cb.RecordFailure("101")
	cb.RecordFailure("101")
	clock.Advance(2 * time.Hour)
	cb.RecordFailure("101")

	assert.False(t, cb.IsTripped("101"))
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Hour)

	cb.RecordFailure("101")
	cb.RecordSuccess("101")
	cb.RecordFailure("101")

	assert.False(t, cb.IsTripped("101"))
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(1, 30*time.Minute)

	cb.RecordFailure("101")
	assert.True(t, cb.IsTripped("101"))

	clock.Advance(31 * time.Minute)
	assert.False(t, cb.IsTripped("101"), "cooldown elapsed, probe allowed")
	assert.Contains(t, cb.Status("101"), "half-open")

	cb.RecordFailure("101")
	assert.True(t, cb.IsTripped("101"), "failed probe re-trips")

	clock.Advance(31 * time.Minute)
	assert.False(t, cb.IsTripped("101"))
	cb.RecordSuccess("101")
	assert.Equal(t, "closed", cb.Status("101"))
	assert.Empty(t, cb.Tripped())
}

func TestCircuitBreaker_Retain(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour)

	cb.RecordFailure("101")
	cb.RecordFailure("102")
	assert.Len(t, cb.Tripped(), 2)

	cb.Retain([]string{"102"})
	tripped := cb.Tripped()
	assert.Len(t, tripped, 1)
	assert.Contains(t, tripped, "102")
}
