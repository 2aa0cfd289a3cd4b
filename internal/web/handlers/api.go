package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/match"
	"github.com/epl-xg-merge/internal/pipeline"
)

// Config represents the web server configuration (simplified)
type Config struct {
	Features struct {
		ReviewEnabled bool `json:"review_enabled"`
		SearchEnabled bool `json:"search_enabled"`
	} `json:"features"`
}

// State is the merge run the server answers from. It is built once at startup
// and only read afterwards.
type State struct {
	Runner *pipeline.Runner
	Merge  *pipeline.MergeReport
	Pool   *match.StatPool
}

// NewState wraps a finished merge run for serving
func NewState(runner *pipeline.Runner, report *pipeline.MergeReport) *State {
	return &State{
		Runner: runner,
		Merge:  report,
		Pool:   match.NewStatPool(report.StatRows),
	}
}

// record returns the merged row with a 1-based index
func (s *State) record(index int) (match.MergedRecord, bool) {
	records := s.Merge.Result.Records
	if index < 1 || index > len(records) {
		return match.MergedRecord{}, false
	}
	return records[index-1], true
}

// APIHandler handles general API endpoints
type APIHandler struct {
	State  *State
	Config *Config
}

// StatsResponse represents overall statistics
type StatsResponse struct {
	TotalRecords     int         `json:"total_records"`
	MatchedRecords   int         `json:"matched_records"`
	UnmatchedRecords int         `json:"unmatched_records"`
	CoverageRate     float64     `json:"coverage_rate"`
	ByYear           []YearStats `json:"by_year"`
	OddsFiles        int         `json:"odds_files"`
	XGRows           int         `json:"xg_rows"`
	Fixtures         int         `json:"fixtures"`
	UnpairedRows     int         `json:"unpaired_rows"`
	AmbiguousPairs   int         `json:"ambiguous_pairs"`
	IndexKeys        int         `json:"index_keys"`
}

// YearStats represents coverage for one calendar year
type YearStats struct {
	Year         int     `json:"year"`
	Total        int     `json:"total"`
	Matched      int     `json:"matched"`
	CoverageRate float64 `json:"coverage_rate"`
}

// GetStats returns coverage and pairing statistics of the served merge
func (h *APIHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	report := h.State.Merge
	stats := report.Result.Stats

	response := StatsResponse{
		TotalRecords:     stats.Total,
		MatchedRecords:   stats.Matched,
		UnmatchedRecords: stats.Total - stats.Matched,
		CoverageRate:     stats.CoverageRate,
		ByYear:           make([]YearStats, 0, len(stats.ByYear)),
		XGRows:           len(report.StatRows),
		Fixtures:         report.Pairing.Paired,
		UnpairedRows:     report.Pairing.Unpaired,
		AmbiguousPairs:   report.Pairing.Ambiguous,
		IndexKeys:        report.IndexKeys,
	}
	if report.Odds != nil {
		response.OddsFiles = len(report.Odds.Files)
	}
	for _, y := range stats.ByYear {
		response.ByYear = append(response.ByYear, YearStats{
			Year:         y.Year,
			Total:        y.Total,
			Matched:      y.Matched,
			CoverageRate: y.CoverageRate,
		})
	}

	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Logger().WithError(err).Warn("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseIntParam parses a string parameter as int with default value
func parseIntParam(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	return defaultVal
}
