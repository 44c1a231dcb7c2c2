package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/koptimizer/rigwatch/internal/state"
)

// writeJSON is a shared helper for all handlers.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// latestReport writes 503 and returns nil until the first cycle completes.
func latestReport(w http.ResponseWriter, st *state.FleetState) *state.Report {
	r := st.Latest()
	if r == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no poll cycle has completed yet"})
	}
	return r
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// PaginatedResponse wraps a page of results.
type PaginatedResponse struct {
	Data     interface{} `json:"data"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
	Total    int         `json:"total"`
}

// parsePagination reads page (1-based) and pageSize query parameters.
func parsePagination(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// paginateSlice returns the bounds of the requested page within total items.
func paginateSlice(total, page, pageSize int) (int, int, PaginatedResponse) {
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end, PaginatedResponse{Page: page, PageSize: pageSize, Total: total}
}
