package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/epl-xg-merge/internal/match"
	"github.com/epl-xg-merge/internal/pipeline"
)

// SearchHandler runs the fuzzy search against the xG rows loaded at startup
type SearchHandler struct {
	State  *State
	Config *Config
}

// Candidate is the JSON view of a scored search hit
type Candidate struct {
	Date           string  `json:"date"`
	HomeTeam       string  `json:"home_team"`
	AwayTeam       string  `json:"away_team"`
	HomeGoals      int     `json:"home_goals"`
	AwayGoals      int     `json:"away_goals"`
	HomeXG         float64 `json:"home_xg"`
	AwayXG         float64 `json:"away_xg"`
	HomeXPts       float64 `json:"home_xpts"`
	AwayXPts       float64 `json:"away_xpts"`
	Confidence     float64 `json:"confidence"`
	Bucket         string  `json:"bucket"`
	HomeConfidence float64 `json:"home_confidence"`
	AwaySimilarity float64 `json:"away_similarity"`
	ScoreExact     bool    `json:"score_exact"`
	TeamSwitch     bool    `json:"team_switch"`
	Tier           int     `json:"tier"`
	Notes          string  `json:"notes,omitempty"`
}

// SearchResponse wraps the candidates found for one query
type SearchResponse struct {
	Query      Record      `json:"query"`
	Candidates []Candidate `json:"candidates"`
}

func toCandidate(c match.MatchCandidate) Candidate {
	f := c.Fixture
	return Candidate{
		Date:           f.Date.Format(recordDateLayout),
		HomeTeam:       f.HomeTeam,
		AwayTeam:       f.AwayTeam,
		HomeGoals:      f.HomeGoals,
		AwayGoals:      f.AwayGoals,
		HomeXG:         f.Stats.HomeXG,
		AwayXG:         f.Stats.AwayXG,
		HomeXPts:       f.Stats.HomeXPts,
		AwayXPts:       f.Stats.AwayXPts,
		Confidence:     c.Confidence,
		Bucket:         pipeline.ConfidenceBucket(c.Confidence),
		HomeConfidence: c.HomeConfidence,
		AwaySimilarity: c.AwaySimilarity,
		ScoreExact:     c.ScoreExact,
		TeamSwitch:     c.TeamSwitchSuspected,
		Tier:           c.Tier,
		Notes:          c.Notes,
	}
}

func (h *SearchHandler) search(q match.Query) []Candidate {
	found := h.State.Runner.Engine().Search(false, q, h.State.Pool)
	candidates := make([]Candidate, 0, len(found))
	for _, c := range found {
		candidates = append(candidates, toCandidate(c))
	}
	return candidates
}

// SearchRecord searches candidates for a merged row, usually one without xG
func (h *SearchHandler) SearchRecord(w http.ResponseWriter, r *http.Request) {
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

	q := match.Query{
		Index:     rec.Index,
		Date:      rec.Date,
		HomeTeam:  rec.HomeTeam,
		AwayTeam:  rec.AwayTeam,
		HomeGoals: rec.HomeGoals,
		AwayGoals: rec.AwayGoals,
		Result:    rec.Result,
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: toRecord(rec), Candidates: h.search(q)})
}

// SearchFixture searches candidates for an ad hoc fixture given as query parameters
func (h *SearchHandler) SearchFixture(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	home, away := params.Get("home"), params.Get("away")
	if home == "" || away == "" {
		writeError(w, http.StatusBadRequest, "home and away are required")
		return
	}

	date := h.State.Runner.Policy.DateParser().Parse(params.Get("date"))
	if date == nil {
		writeError(w, http.StatusBadRequest, "Invalid date")
		return
	}

	homeGoals, errHome := strconv.Atoi(params.Get("home_goals"))
	awayGoals, errAway := strconv.Atoi(params.Get("away_goals"))
	if errHome != nil || errAway != nil || homeGoals < 0 || awayGoals < 0 {
		writeError(w, http.StatusBadRequest, "home_goals and away_goals must be non-negative integers")
		return
	}

	q := match.Query{
		Date:      *date,
		HomeTeam:  home,
		AwayTeam:  away,
		HomeGoals: homeGoals,
		AwayGoals: awayGoals,
		Result:    match.ResultFor(homeGoals, awayGoals),
	}
	query := Record{
		Date:      date.Format(recordDateLayout),
		HomeTeam:  home,
		AwayTeam:  away,
		HomeGoals: homeGoals,
		AwayGoals: awayGoals,
		Result:    q.Result,
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: query, Candidates: h.search(q)})
}

// SearchUnmatched runs the search for every unmatched row and returns the summary
func (h *SearchHandler) SearchUnmatched(w http.ResponseWriter, r *http.Request) {
	unmatched := h.State.Merge.Result.Unmatched
	queries := make([]match.Query, 0, len(unmatched))
	for _, rec := range unmatched {
		queries = append(queries, match.Query{
			Index:     rec.Index,
			Date:      rec.Date,
			HomeTeam:  rec.HomeTeam,
			AwayTeam:  rec.AwayTeam,
			HomeGoals: rec.HomeGoals,
			AwayGoals: rec.AwayGoals,
			Result:    rec.Result,
		})
	}

	report, err := h.State.Runner.SearchQueries(false, queries, h.State.Pool)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	type finding struct {
		Index     int       `json:"index"`
		Candidate Candidate `json:"candidate"`
	}
	response := struct {
		Searched     int                             `json:"searched"`
		Found        int                             `json:"found"`
		NotFound     []int                           `json:"not_found"`
		Distribution pipeline.ConfidenceDistribution `json:"distribution"`
		Findings     []finding                       `json:"findings"`
	}{
		Searched:     report.Queries,
		Found:        len(report.Findings),
		NotFound:     make([]int, 0, len(report.NotFound)),
		Distribution: report.Distribution,
		Findings:     make([]finding, 0, len(report.Findings)),
	}
	for _, q := range report.NotFound {
		response.NotFound = append(response.NotFound, q.Index)
	}
	for _, f := range report.Findings {
		response.Findings = append(response.Findings, finding{Index: f.Query.Index, Candidate: toCandidate(f.Candidate)})
	}

	writeJSON(w, http.StatusOK, response)
}
