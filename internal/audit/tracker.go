package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/match"
)

// Run kinds
const (
	KindMerge    = "merge"
	KindSearch   = "search"
	KindBackfill = "backfill"
)

// Candidate review decisions
const (
	DecisionPending  = "pending"
	DecisionAccepted = "accepted"
	DecisionRejected = "rejected"
)

// ErrUnknownDecision is returned for decisions other than accepted/rejected
var ErrUnknownDecision = errors.New("unknown decision")

// ErrCandidateNotFound is returned when a decision targets a missing candidate
var ErrCandidateNotFound = errors.New("candidate not found")

// Tracker records merge and search runs so unmatched rows and candidates can be
// reviewed later.
type Tracker struct {
	db *sqlx.DB
}

// NewTracker creates a new run tracker
func NewTracker(db *sqlx.DB) *Tracker {
	return &Tracker{db: db}
}

// Run describes one pipeline execution
type Run struct {
	ID           uuid.UUID  `db:"run_id" json:"id"`
	Kind         string     `db:"kind" json:"kind"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	FinishedAt   *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	OddsSource   string     `db:"odds_source" json:"odds_source"`
	XGSource     string     `db:"xg_source" json:"xg_source"`
	TotalRows    int        `db:"total_rows" json:"total_rows"`
	MatchedRows  int        `db:"matched_rows" json:"matched_rows"`
	CoverageRate float64    `db:"coverage_rate" json:"coverage_rate"`
}

type mergedRow struct {
	RunID        uuid.UUID `db:"run_id"`
	RowIndex     int       `db:"row_index"`
	MatchDate    time.Time `db:"match_date"`
	Season       string    `db:"season"`
	HomeTeam     string    `db:"home_team"`
	AwayTeam     string    `db:"away_team"`
	HomeGoals    int       `db:"home_goals"`
	AwayGoals    int       `db:"away_goals"`
	Result       string    `db:"result"`
	MatchKey     string    `db:"match_key"`
	Matched      bool      `db:"matched"`
	HomeXG       *float64  `db:"home_xg"`
	AwayXG       *float64  `db:"away_xg"`
	HomeXPts     *float64  `db:"home_xpts"`
	AwayXPts     *float64  `db:"away_xpts"`
	HomePoints   int       `db:"home_points"`
	AwayPoints   int       `db:"away_points"`
	HomeXPtsDiff *float64  `db:"home_xpts_diff"`
	AwayXPtsDiff *float64  `db:"away_xpts_diff"`
}

// CandidateRow is a persisted search candidate
type CandidateRow struct {
	ID             int64      `db:"candidate_id" json:"id"`
	RunID          uuid.UUID  `db:"run_id" json:"run_id"`
	TemplateIndex  int        `db:"template_index" json:"template_index"`
	QueryDate      time.Time  `db:"query_date" json:"query_date"`
	QueryHome      string     `db:"query_home" json:"query_home"`
	QueryAway      string     `db:"query_away" json:"query_away"`
	QueryHomeGoals int        `db:"query_home_goals" json:"query_home_goals"`
	QueryAwayGoals int        `db:"query_away_goals" json:"query_away_goals"`
	FoundDate      time.Time  `db:"found_date" json:"found_date"`
	FoundHome      string     `db:"found_home" json:"found_home"`
	FoundAway      string     `db:"found_away" json:"found_away"`
	FoundHomeGoals int        `db:"found_home_goals" json:"found_home_goals"`
	FoundAwayGoals int        `db:"found_away_goals" json:"found_away_goals"`
	HomeXG         float64    `db:"home_xg" json:"home_xg"`
	AwayXG         float64    `db:"away_xg" json:"away_xg"`
	HomeXPts       float64    `db:"home_xpts" json:"home_xpts"`
	AwayXPts       float64    `db:"away_xpts" json:"away_xpts"`
	Confidence     float64    `db:"confidence" json:"confidence"`
	ScoreExact     bool       `db:"score_exact" json:"score_exact"`
	TeamSwitch     bool       `db:"team_switch" json:"team_switch"`
	Tier           int        `db:"tier" json:"tier"`
	Notes          string     `db:"notes" json:"notes"`
	Decision       string     `db:"decision" json:"decision"`
	DecidedBy      *string    `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt      *time.Time `db:"decided_at" json:"decided_at,omitempty"`
}

// StartRun inserts a run row and returns its new id. policy is stored as JSON.
func (t *Tracker) StartRun(ctx context.Context, localDebug bool, kind, oddsSource, xgSource string, policy any) (uuid.UUID, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	policyJSON, err := json.Marshal(policy)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "encode policy")
	}

	id := uuid.New()
	_, err = t.db.ExecContext(ctx, `
		INSERT INTO merge_run (run_id, kind, started_at, odds_source, xg_source, policy)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, kind, time.Now().UTC(), oddsSource, xgSource, policyJSON)
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "insert %s run", kind)
	}

	debug.DebugOutput(localDebug, "Started %s run %s", kind, id)
	return id, nil
}

// FinishRun stores the final coverage of a run
func (t *Tracker) FinishRun(ctx context.Context, localDebug bool, runID uuid.UUID, stats match.CoverageStats) error {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	_, err := t.db.ExecContext(ctx, `
		UPDATE merge_run
		SET finished_at = $2, total_rows = $3, matched_rows = $4, coverage_rate = $5
		WHERE run_id = $1
	`, runID, time.Now().UTC(), stats.Total, stats.Matched, stats.CoverageRate)
	return errors.Wrapf(err, "finish run %s", runID)
}

// SaveMergedRows stores every merged record of a run in one transaction
func (t *Tracker) SaveMergedRows(ctx context.Context, localDebug bool, runID uuid.UUID, records []match.MergedRecord) error {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin merged rows transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO merged_row (
			run_id, row_index, match_date, season, home_team, away_team,
			home_goals, away_goals, result, match_key, matched,
			home_xg, away_xg, home_xpts, away_xpts,
			home_points, away_points, home_xpts_diff, away_xpts_diff
		) VALUES (
			:run_id, :row_index, :match_date, :season, :home_team, :away_team,
			:home_goals, :away_goals, :result, :match_key, :matched,
			:home_xg, :away_xg, :home_xpts, :away_xpts,
			:home_points, :away_points, :home_xpts_diff, :away_xpts_diff
		)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare merged row insert")
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, toMergedRow(runID, r)); err != nil {
			return errors.Wrapf(err, "insert merged row %d", r.Index)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit merged rows")
	}

	debug.DebugOutput(localDebug, "Stored %d merged rows for run %s", len(records), runID)
	return nil
}

// SaveCandidates stores the best candidate per searched row
func (t *Tracker) SaveCandidates(ctx context.Context, localDebug bool, runID uuid.UUID, findings []match.Finding) error {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin candidates transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO search_candidate (
			run_id, template_index, query_date, query_home, query_away,
			query_home_goals, query_away_goals,
			found_date, found_home, found_away, found_home_goals, found_away_goals,
			home_xg, away_xg, home_xpts, away_xpts,
			confidence, score_exact, team_switch, tier, notes, decision
		) VALUES (
			:run_id, :template_index, :query_date, :query_home, :query_away,
			:query_home_goals, :query_away_goals,
			:found_date, :found_home, :found_away, :found_home_goals, :found_away_goals,
			:home_xg, :away_xg, :home_xpts, :away_xpts,
			:confidence, :score_exact, :team_switch, :tier, :notes, :decision
		)
	`)
	if err != nil {
		return errors.Wrap(err, "prepare candidate insert")
	}
	defer stmt.Close()

	for _, f := range findings {
		if _, err := stmt.ExecContext(ctx, ToCandidateRow(runID, f)); err != nil {
			return errors.Wrapf(err, "insert candidate for row %d", f.Query.Index)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit candidates")
	}

	debug.DebugOutput(localDebug, "Stored %d candidates for run %s", len(findings), runID)
	return nil
}

// RecordDecision marks a candidate accepted or rejected by a reviewer
func (t *Tracker) RecordDecision(ctx context.Context, localDebug bool, candidateID int64, decision, decidedBy string) error {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	if decision != DecisionAccepted && decision != DecisionRejected {
		return errors.Wrapf(ErrUnknownDecision, "%q", decision)
	}

	res, err := t.db.ExecContext(ctx, `
		UPDATE search_candidate
		SET decision = $2, decided_by = $3, decided_at = $4
		WHERE candidate_id = $1
	`, candidateID, decision, decidedBy, time.Now().UTC())
	if err != nil {
		return errors.Wrapf(err, "record decision for candidate %d", candidateID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrCandidateNotFound, "candidate %d", candidateID)
	}

	debug.DebugOutput(localDebug, "Candidate %d %s by %s", candidateID, decision, decidedBy)
	return nil
}

// LatestRun returns the most recent run of a kind; ok is false when there is none
func (t *Tracker) LatestRun(ctx context.Context, kind string) (Run, bool, error) {
	var run Run
	err := t.db.GetContext(ctx, &run, `
		SELECT run_id, kind, started_at, finished_at, odds_source, xg_source,
		       total_rows, matched_rows, coverage_rate
		FROM merge_run
		WHERE kind = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, errors.Wrapf(err, "latest %s run", kind)
	}
	return run, true, nil
}

// Candidates lists a run's candidates with a given decision, best first
func (t *Tracker) Candidates(ctx context.Context, runID uuid.UUID, decision string) ([]CandidateRow, error) {
	var rows []CandidateRow
	err := t.db.SelectContext(ctx, &rows, `
		SELECT *
		FROM search_candidate
		WHERE run_id = $1 AND decision = $2
		ORDER BY confidence DESC, candidate_id
	`, runID, decision)
	if err != nil {
		return nil, errors.Wrapf(err, "list candidates of run %s", runID)
	}
	return rows, nil
}

// AcceptedFills returns the accepted candidates of a run as backfill input
func (t *Tracker) AcceptedFills(ctx context.Context, runID uuid.UUID) ([]match.Fill, error) {
	rows, err := t.Candidates(ctx, runID, DecisionAccepted)
	if err != nil {
		return nil, err
	}
	fills := make([]match.Fill, 0, len(rows))
	for _, r := range rows {
		fills = append(fills, r.Fill())
	}
	return fills, nil
}

// Fill converts a reviewed candidate into backfill input
func (c CandidateRow) Fill() match.Fill {
	return match.Fill{
		Index:      c.TemplateIndex,
		HomeXG:     c.HomeXG,
		AwayXG:     c.AwayXG,
		HomeXPts:   c.HomeXPts,
		AwayXPts:   c.AwayXPts,
		Confidence: c.Confidence,
		Source:     "review:" + c.Decision,
	}
}

// ToCandidateRow flattens a finding for storage
func ToCandidateRow(runID uuid.UUID, f match.Finding) CandidateRow {
	q, c := f.Query, f.Candidate
	return CandidateRow{
		RunID:          runID,
		TemplateIndex:  q.Index,
		QueryDate:      q.Date,
		QueryHome:      q.HomeTeam,
		QueryAway:      q.AwayTeam,
		QueryHomeGoals: q.HomeGoals,
		QueryAwayGoals: q.AwayGoals,
		FoundDate:      c.Fixture.Date,
		FoundHome:      c.Fixture.HomeTeam,
		FoundAway:      c.Fixture.AwayTeam,
		FoundHomeGoals: c.Fixture.HomeGoals,
		FoundAwayGoals: c.Fixture.AwayGoals,
		HomeXG:         c.Fixture.Stats.HomeXG,
		AwayXG:         c.Fixture.Stats.AwayXG,
		HomeXPts:       c.Fixture.Stats.HomeXPts,
		AwayXPts:       c.Fixture.Stats.AwayXPts,
		Confidence:     c.Confidence,
		ScoreExact:     c.ScoreExact,
		TeamSwitch:     c.TeamSwitchSuspected,
		Tier:           c.Tier,
		Notes:          c.Notes,
		Decision:       DecisionPending,
	}
}

func toMergedRow(runID uuid.UUID, r match.MergedRecord) mergedRow {
	return mergedRow{
		RunID:        runID,
		RowIndex:     r.Index,
		MatchDate:    r.Date,
		Season:       r.Season,
		HomeTeam:     r.HomeTeam,
		AwayTeam:     r.AwayTeam,
		HomeGoals:    r.HomeGoals,
		AwayGoals:    r.AwayGoals,
		Result:       r.Result,
		MatchKey:     r.Key,
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
