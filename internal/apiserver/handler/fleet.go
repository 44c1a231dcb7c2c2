package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/koptimizer/rigwatch/internal/state"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

// Refresher starts a poll cycle out of schedule.
type Refresher interface {
	Trigger() bool
}

// FleetHandler serves the latest fleet report.
type FleetHandler struct {
	state     *state.FleetState
	refresher Refresher
}

func NewFleetHandler(st *state.FleetState, refresher Refresher) *FleetHandler {
	return &FleetHandler{state: st, refresher: refresher}
}

func (h *FleetHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	rep := latestReport(w, h.state)
	if rep == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cycleId":           rep.CycleID,
		"timestamp":         rep.Timestamp,
		"duration":          rep.Duration,
		"summary":           rep.Summary,
		"inventorySpendUSD": rep.InventorySpend,
		"balanceUSD":        rep.Balance,
		"flagged":           len(rep.Outliers.Flagged),
		"issues":            len(rep.Issues),
	})
}

// ListInstances returns the rows of the latest report. The sort and order
// query parameters re-sort them; the default is the configured order.
func (h *FleetHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	rep := latestReport(w, h.state)
	if rep == nil {
		return
	}

	opts := rep.Sort
	if s := r.URL.Query().Get("sort"); s != "" {
		col, err := fleet.ParseColumn(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		opts.Column = col
	}
	switch strings.ToLower(r.URL.Query().Get("order")) {
	case "":
	case "asc", "ascending":
		opts.Descending = false
	case "desc", "descending":
		opts.Descending = true
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order, must be asc or desc"})
		return
	}

	rows, err := fleet.SortRows(rep.Rows, opts)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []fleet.InstanceMetrics{}
	}

	page, pageSize := parsePagination(r)
	start, end, resp := paginateSlice(len(rows), page, pageSize)
	resp.Data = rows[start:end]
	writeJSON(w, http.StatusOK, resp)
}

func (h *FleetHandler) GetInstance(w http.ResponseWriter, r *http.Request) {
	rep := latestReport(w, h.state)
	if rep == nil {
		return
	}
	id := chi.URLParam(r, "id")
	row, ok := rep.Row(id)
	if !ok {
		for _, issue := range rep.Issues {
			if issue.InstanceID == id {
				writeJSON(w, http.StatusNotFound, map[string]interface{}{
					"error": "instance has no metrics this cycle",
					"issue": issue,
				})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "instance not found"})
		return
	}
	writeJSON(w, http.StatusOK, row)
}

type outlierView struct {
	fleet.Outlier
	ClassMean        float64 `json:"classMean"`
	PercentBelowMean float64 `json:"percentBelowMean"`
}

func (h *FleetHandler) GetOutliers(w http.ResponseWriter, r *http.Request) {
	rep := latestReport(w, h.state)
	if rep == nil {
		return
	}
	result := make([]outlierView, 0, len(rep.Outliers.Flagged))
	for _, o := range rep.Outliers.Flagged {
		mean := rep.Outliers.Classes[o.Class].Mean.OrElse(0)
		result = append(result, outlierView{
			Outlier:          o,
			ClassMean:        mean,
			PercentBelowMean: o.PercentBelowMean(mean),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *FleetHandler) GetClasses(w http.ResponseWriter, r *http.Request) {
	rep := latestReport(w, h.state)
	if rep == nil {
		return
	}
	result := make([]map[string]interface{}, 0, len(rep.Outliers.Classes))
	for _, name := range rep.Outliers.ClassNames() {
		stats := rep.Outliers.Classes[name]
		result = append(result, map[string]interface{}{
			"class":            stats.Class,
			"samples":          stats.Samples,
			"sufficient":       stats.Sufficient(),
			"meanHashPerGPU":   stats.Mean,
			"stdDevHashPerGPU": stats.StdDev,
			"flagged":          len(rep.Outliers.FlaggedIn(name)),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *FleetHandler) GetRunway(w http.ResponseWriter, r *http.Request) {
	rep := latestReport(w, h.state)
	if rep == nil {
		return
	}
	resp := map[string]interface{}{
		"balanceUSD":        rep.Balance,
		"inventorySpendUSD": rep.InventorySpend,
		"projection":        rep.Projection,
	}
	if p := rep.Projection; p != nil {
		if p.LastsIndefinitely {
			resp["text"] = "balance will last indefinitely"
		} else {
			resp["text"] = p.Runway.String()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *FleetHandler) GetIssues(w http.ResponseWriter, r *http.Request) {
	rep := latestReport(w, h.state)
	if rep == nil {
		return
	}
	issues := rep.Issues
	if issues == nil {
		issues = []fleet.Issue{}
	}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := []fleet.Issue{}
		for _, is := range issues {
			if string(is.Kind) == kind {
				filtered = append(filtered, is)
			}
		}
		issues = filtered
	}
	writeJSON(w, http.StatusOK, issues)
}

// GetHistory returns recent cycles, newest first.
func (h *FleetHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	records := h.state.History.GetRecent(0)
	page, pageSize := parsePagination(r)
	start, end, resp := paginateSlice(len(records), page, pageSize)
	resp.Data = records[start:end]
	writeJSON(w, http.StatusOK, resp)
}

// GetBreakers lists instances whose log fetch is currently being skipped.
func (h *FleetHandler) GetBreakers(w http.ResponseWriter, r *http.Request) {
	if h.state.Breaker == nil {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	writeJSON(w, http.StatusOK, h.state.Breaker.Tripped())
}

// Refresh queues an immediate poll cycle.
func (h *FleetHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "poller not running"})
		return
	}
	queued := h.refresher.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued, "alreadyPending": !queued})
}

func (h *FleetHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if rep := h.state.Latest(); rep != nil {
		resp["lastCycleId"] = rep.CycleID
		resp["lastCycleAt"] = rep.Timestamp
	}
	writeJSON(w, http.StatusOK, resp)
}
