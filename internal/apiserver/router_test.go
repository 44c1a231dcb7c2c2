package apiserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koptimizer/rigwatch/internal/config"
	"github.com/koptimizer/rigwatch/internal/state"
	"github.com/koptimizer/rigwatch/pkg/cost"
	"github.com/koptimizer/rigwatch/pkg/fleet"
	"github.com/koptimizer/rigwatch/pkg/minerlog"
)

type fakeRefresher struct{ calls int }

func (f *fakeRefresher) Trigger() bool {
	f.calls++
	return f.calls == 1
}

func makeRow(id string, cost float64, blocks int) fleet.InstanceMetrics {
	return fleet.Derive(fleet.InstanceDescriptor{
		ID:            id,
		HardwareClass: "RTX 4090",
		GPUCount:      fleet.Some(1),
		HourlyCost:    fleet.Some(cost),
		Status:        fleet.StatusRunning,
	}, minerlog.Sample{Hours: 1, NormalBlocks: blocks, HashRate: 100})
}

func publishedState() *state.FleetState {
	st := state.NewFleetState(state.NewCircuitBreaker(1, time.Hour), 10)
	rows := []fleet.InstanceMetrics{makeRow("101", 1.0, 10), makeRow("102", 0.5, 10), makeRow("103", 2.0, 10)}
	sorted, summary, _ := fleet.Aggregate(rows, fleet.DefaultSortOptions())
	p := cost.Project(100, 3.5, 1)
	st.Breaker.RecordFailure("104")
	st.Publish(&state.Report{
		CycleID:   "cycle-1",
		Timestamp: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
		Rows:      sorted,
		Sort:      fleet.DefaultSortOptions(),
		Summary:   summary,
		Outliers: fleet.OutlierReport{
			Classes: map[string]fleet.ClassStats{
				"RTX 4090": {Class: "RTX 4090", Samples: 3, Mean: fleet.Some(100.0), StdDev: fleet.Some(0.0)},
			},
			Flagged: []fleet.Outlier{{InstanceID: "103", Class: "RTX 4090", HashPerGPU: 50, ZScore: -2.1}},
		},
		Balance:        fleet.Some(100.0),
		InventorySpend: fleet.Some(3.5),
		Projection:     &p,
		Issues: []fleet.Issue{
			{InstanceID: "104", Kind: fleet.IssueFetch, Detail: "timeout"},
			{InstanceID: "105", Kind: fleet.IssueParse, Detail: "no match"},
		},
	})
	return st
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_UnavailableBeforeFirstCycle(t *testing.T) {
	st := state.NewFleetState(nil, 10)
	h := NewRouter(config.DefaultConfig(), st, &fakeRefresher{})

	for _, path := range []string{"/api/v1/fleet/summary", "/api/v1/fleet/instances", "/api/v1/fleet/runway"} {
		assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, path).Code, path)
	}
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz").Code)
}

func TestRouter_ListInstancesSorting(t *testing.T) {
	h := NewRouter(config.DefaultConfig(), publishedState(), nil)

	tests := []struct {
		query string
		want  []string
		code  int
	}{
		{query: "", want: []string{"102", "101", "103"}, code: http.StatusOK},
		{query: "?order=desc", want: []string{"103", "101", "102"}, code: http.StatusOK},
		{query: "?sort=Instance%20ID&order=asc", want: []string{"101", "102", "103"}, code: http.StatusOK},
		{query: "?sort=0&order=desc&pageSize=2", want: []string{"103", "102"}, code: http.StatusOK},
		{query: "?sort=Bogus", code: http.StatusBadRequest},
		{query: "?order=sideways", code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/v1/fleet/instances"+tt.query)
			require.Equal(t, tt.code, rec.Code, rec.Body.String())
			if tt.code != http.StatusOK {
				return
			}
			var resp struct {
				Data  []struct{ ID string `json:"id"` } `json:"data"`
				Total int                                `json:"total"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, 3, resp.Total)
			var got []string
			for _, d := range resp.Data {
				got = append(got, d.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouter_FleetEndpoints(t *testing.T) {
	refresher := &fakeRefresher{}
	h := NewRouter(config.DefaultConfig(), publishedState(), refresher)

	rec := do(t, h, http.MethodGet, "/api/v1/fleet/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cycleId":"cycle-1"`)

	rec = do(t, h, http.MethodGet, "/api/v1/fleet/instances/101")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"101"`)

	rec = do(t, h, http.MethodGet, "/api/v1/fleet/instances/104")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "timeout")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/fleet/instances/999").Code)

	rec = do(t, h, http.MethodGet, "/api/v1/fleet/outliers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"percentBelowMean":50`)

	rec = do(t, h, http.MethodGet, "/api/v1/fleet/classes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"flagged":1`)

	rec = do(t, h, http.MethodGet, "/api/v1/fleet/runway")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"text":"1 days, 4 hours, 34 minutes"`)

	rec = do(t, h, http.MethodGet, "/api/v1/fleet/issues?kind=parse")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "105")
	assert.NotContains(t, rec.Body.String(), "104")

	rec = do(t, h, http.MethodGet, "/api/v1/fleet/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cycle-1")

	rec = do(t, h, http.MethodGet, "/api/v1/fleet/breakers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "104")

	rec = do(t, h, http.MethodPost, "/api/v1/fleet/refresh")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queued":true`)
	rec = do(t, h, http.MethodPost, "/api/v1/fleet/refresh")
	assert.Contains(t, rec.Body.String(), `"alreadyPending":true`)

	rec = do(t, h, http.MethodGet, "/api/v1/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"provider":"vastai"`)

	rec = do(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

func TestConfigRedactsCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.VastAI.APIKey = "secret-key"
	cfg.SSH.Passphrase = "secret-pass"
	h := NewRouter(cfg, publishedState(), nil)

	body := do(t, h, http.MethodGet, "/api/v1/config").Body.String()
	assert.NotContains(t, body, "secret-key")
	assert.NotContains(t, body, "secret-pass")
	assert.Contains(t, body, `"vastaiKeyConfigured":true`)
}
