package state

import (
	"sync"
	"time"
)

// CycleRecord summarizes one completed poll cycle.
type CycleRecord struct {
	CycleID   string    `json:"cycleId"`
	Timestamp time.Time `json:"timestamp"`
	Duration  string    `json:"duration"`
	Rows      int       `json:"rows"`
	Issues    int       `json:"issues"`
	Flagged   int       `json:"flagged"`
}

// CycleHistory is a thread-safe ring buffer of cycle records.
type CycleHistory struct {
	mu      sync.RWMutex
	records []CycleRecord
	max     int
}

// NewCycleHistory creates a history with the given max capacity.
func NewCycleHistory(maxRecords int) *CycleHistory {
	if maxRecords <= 0 {
		maxRecords = 100
	}
	return &CycleHistory{
		records: make([]CycleRecord, 0, maxRecords),
		max:     maxRecords,
	}
}

// Record adds the cycle described by r.
func (h *CycleHistory) Record(r *Report) {
	if r == nil {
		return
	}
	rec := CycleRecord{
		CycleID:   r.CycleID,
		Timestamp: r.Timestamp,
		Duration:  r.Duration,
		Rows:      len(r.Rows),
		Issues:    len(r.Issues),
		Flagged:   len(r.Outliers.Flagged),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) >= h.max {
		// Shift left to make room
		copy(h.records, h.records[1:])
		h.records[len(h.records)-1] = rec
	} else {
		h.records = append(h.records, rec)
	}
}

// GetRecent returns the most recent n records in reverse chronological
// order.
func (h *CycleHistory) GetRecent(n int) []CycleRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := len(h.records)
	if n > count || n <= 0 {
		n = count
	}

	result := make([]CycleRecord, n)
	for i := 0; i < n; i++ {
		result[i] = h.records[count-1-i]
	}
	return result
}
