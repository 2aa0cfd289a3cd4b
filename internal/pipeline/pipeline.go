// Package pipeline wires the loaders, the match engine and the writers into the
// merge, missing, search and backfill runs.
package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/epl-xg-merge/internal/config"
	import_pkg "github.com/epl-xg-merge/internal/import"
	"github.com/epl-xg-merge/internal/match"
	"github.com/epl-xg-merge/internal/normalize"
)

// Store persists runs. audit.Tracker implements it; a nil Store skips persistence.
type Store interface {
	StartRun(ctx context.Context, localDebug bool, kind, oddsSource, xgSource string, policy any) (uuid.UUID, error)
	FinishRun(ctx context.Context, localDebug bool, runID uuid.UUID, stats match.CoverageStats) error
	SaveMergedRows(ctx context.Context, localDebug bool, runID uuid.UUID, records []match.MergedRecord) error
	SaveCandidates(ctx context.Context, localDebug bool, runID uuid.UUID, findings []match.Finding) error
}

// Confidence buckets of the search summary
const (
	HighConfidence   = 0.8
	MediumConfidence = 0.6
)

// maxSwitchExamples caps the switched-team examples kept in a search report
const maxSwitchExamples = 5

// Runner carries what every run shares: the policy and the alias table.
type Runner struct {
	Policy *config.Policy
	Teams  *normalize.TeamNormalizer
	Store  Store
}

// NewRunner builds a runner; nil arguments fall back to the defaults.
func NewRunner(policy *config.Policy, teams *normalize.TeamNormalizer, store Store) *Runner {
	if policy == nil {
		policy = config.DefaultPolicy()
	}
	if teams == nil {
		teams = normalize.DefaultTeamNormalizer()
	}
	return &Runner{Policy: policy, Teams: teams, Store: store}
}

// Engine returns a search engine configured from the policy
func (r *Runner) Engine() *match.Engine {
	return match.NewEngine(match.EngineConfig{
		Teams:  r.Teams,
		Policy: r.Policy.SearchPolicy(),
	})
}

func (r *Runner) oddsLoader() *import_pkg.OddsLoader {
	return &import_pkg.OddsLoader{Dates: r.Policy.DateParser(), Teams: r.Teams}
}

func (r *Runner) understatLoader() *import_pkg.UnderstatLoader {
	return &import_pkg.UnderstatLoader{Dates: r.Policy.DateParser(), League: import_pkg.LeagueEPL}
}

// ConfidenceBucket names the bucket of a confidence value
func ConfidenceBucket(c float64) string {
	switch {
	case c > HighConfidence:
		return "high"
	case c > MediumConfidence:
		return "medium"
	default:
		return "low"
	}
}
