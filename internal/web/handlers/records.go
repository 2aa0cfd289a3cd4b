package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/epl-xg-merge/internal/match"
)

const recordDateLayout = "2006-01-02"

// RecordsHandler lists and shows merged rows
type RecordsHandler struct {
	State  *State
	Config *Config
}

// Record is the JSON view of one merged row
type Record struct {
	Index        int      `json:"index"`
	Date         string   `json:"date"`
	Season       string   `json:"season"`
	HomeTeam     string   `json:"home_team"`
	AwayTeam     string   `json:"away_team"`
	HomeGoals    int      `json:"home_goals"`
	AwayGoals    int      `json:"away_goals"`
	Result       string   `json:"result"`
	Key          string   `json:"key"`
	Matched      bool     `json:"matched"`
	HomeXG       *float64 `json:"home_xg"`
	AwayXG       *float64 `json:"away_xg"`
	HomeXPts     *float64 `json:"home_xpts"`
	AwayXPts     *float64 `json:"away_xpts"`
	HomePoints   int      `json:"home_points"`
	AwayPoints   int      `json:"away_points"`
	HomeXPtsDiff *float64 `json:"home_xpts_diff"`
	AwayXPtsDiff *float64 `json:"away_xpts_diff"`
}

// RecordsResponse is a page of merged rows
type RecordsResponse struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

func toRecord(r match.MergedRecord) Record {
	return Record{
		Index:        r.Index,
		Date:         r.Date.Format(recordDateLayout),
		Season:       r.Season,
		HomeTeam:     r.HomeTeam,
		AwayTeam:     r.AwayTeam,
		HomeGoals:    r.HomeGoals,
		AwayGoals:    r.AwayGoals,
		Result:       r.Result,
		Key:          r.Key,
		Matched:      r.Matched,
		HomeXG:       r.HomeXG,
		AwayXG:       r.AwayXG,
		HomeXPts:     r.HomeXPts,
		AwayXPts:     r.AwayXPts,
		HomePoints:   r.HomePoints,
		AwayPoints:   r.AwayPoints,
		HomeXPtsDiff: r.HomeXPtsDiff,
		AwayXPtsDiff: r.AwayXPtsDiff,
	}
}

// ListRecords returns merged rows filtered by status, year and team
func (h *RecordsHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	year := parseIntParam(q.Get("year"), 0)
	team := q.Get("team")
	limit := parseIntParam(q.Get("limit"), 100)
	offset := parseIntParam(q.Get("offset"), 0)

	if status != "" && status != "matched" && status != "unmatched" {
		writeError(w, http.StatusBadRequest, "status must be matched or unmatched")
		return
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	var teamName string
	if team != "" {
		teamName = h.State.Runner.Teams.Canonical(team)
	}

	filtered := make([]Record, 0)
	for _, rec := range h.State.Merge.Result.Records {
		if status == "matched" && !rec.Matched || status == "unmatched" && rec.Matched {
			continue
		}
		if year != 0 && rec.Date.Year() != year {
			continue
		}
		if teamName != "" &&
			h.State.Runner.Teams.Canonical(rec.HomeTeam) != teamName &&
			h.State.Runner.Teams.Canonical(rec.AwayTeam) != teamName {
			continue
		}
		filtered = append(filtered, toRecord(rec))
	}

	response := RecordsResponse{Total: len(filtered), Limit: limit, Offset: offset, Records: []Record{}}
	if offset < len(filtered) {
		end := offset + limit
		if end > len(filtered) {
			end = len(filtered)
		}
		response.Records = filtered[offset:end]
	}

	writeJSON(w, http.StatusOK, response)
}

// GetRecord returns one merged row by its 1-based index
func (h *RecordsHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid record index")
		return
	}

	rec, ok := h.State.record(index)
	if !ok {
		writeError(w, http.StatusNotFound, "Record not found")
		return
	}
	writeJSON(w, http.StatusOK, toRecord(rec))
}
