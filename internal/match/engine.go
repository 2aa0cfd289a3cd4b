package match

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"

	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/normalize"
)

// NoteTotalGoals annotates tier 2 candidates
const NoteTotalGoals = "Exact score mismatch but total goals match"

// StatPool is the read-only search pool: stat rows grouped by calendar date.
type StatPool struct {
	rows   []TeamStatRow
	byDate map[string][]int
	teams  map[string][]string // distinct team names per date, first-seen order
}

// NewStatPool groups rows by date. The pool must not be modified afterwards.
func NewStatPool(rows []TeamStatRow) *StatPool {
	p := &StatPool{
		rows:   rows,
		byDate: make(map[string][]int),
		teams:  make(map[string][]string),
	}
	seen := make(map[string]bool)
	for i, row := range rows {
		d := row.Date.Format(keyDateLayout)
		p.byDate[d] = append(p.byDate[d], i)
		if k := d + "|" + row.Team; !seen[k] {
			seen[k] = true
			p.teams[d] = append(p.teams[d], row.Team)
		}
	}
	return p
}

// Len is the number of rows in the pool.
func (p *StatPool) Len() int {
	return len(p.rows)
}

func (p *StatPool) onDate(date time.Time) ([]int, []string) {
	d := date.Format(keyDateLayout)
	return p.byDate[d], p.teams[d]
}

// Engine runs the two-tier fuzzy search for primary rows that found no xG fixture
type Engine struct {
	teams  *normalize.TeamNormalizer
	scorer *Scorer
	policy *SearchPolicy
}

// EngineConfig holds configuration for the search engine
type EngineConfig struct {
	Teams  *normalize.TeamNormalizer
	Policy *SearchPolicy
}

// NewEngine creates a search engine
func NewEngine(config EngineConfig) *Engine {
	policy := config.Policy
	if policy == nil {
		policy = DefaultSearchPolicy()
	}

	teams := config.Teams
	if teams == nil {
		teams = normalize.DefaultTeamNormalizer()
	}

	return &Engine{
		teams:  teams,
		scorer: NewScorerWithPolicy(policy),
		policy: policy,
	}
}

// Search looks for the query's fixture among the pool rows of the exact same date.
// Tier 1 needs the exact score; tier 2 runs only when tier 1 produced nothing and
// accepts an equal total of goals. The result is sorted by confidence and filtered
// by the policy threshold; an empty result is a normal outcome.
func (e *Engine) Search(localDebug bool, q Query, pool *StatPool) []MatchCandidate {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	debug.DebugOutput(localDebug, "Searching %s %s vs %s (%d-%d)",
		q.Date.Format(keyDateLayout), q.HomeTeam, q.AwayTeam, q.HomeGoals, q.AwayGoals)

	// Step 1: Restrict to the exact date
	indices, names := pool.onDate(q.Date)
	if len(indices) == 0 {
		debug.DebugOutput(localDebug, "No rows on %s", q.Date.Format(keyDateLayout))
		return nil
	}

	// Step 2: Resolve the home team against the clubs playing that day
	homeName, homeConf := e.teams.BestMatch(q.HomeTeam, names)
	if homeName == "" {
		debug.DebugOutput(localDebug, "No home team resolved for %s", q.HomeTeam)
		return nil
	}
	debug.DebugOutput(localDebug, "Home team %q resolved to %q (%.3f)", q.HomeTeam, homeName, homeConf)

	// Step 3: Exact score tier
	candidates := e.exactScoreTier(localDebug, q, pool, indices, homeName, homeConf)

	// Step 4: Total goals tier, only when tier 1 found nothing
	if len(candidates) == 0 {
		debug.DebugOutput(localDebug, "Tier 1 empty, trying total goals")
		candidates = e.totalGoalsTier(localDebug, q, pool, indices, homeName, homeConf)
	}

	// Step 5: Rank and threshold
	return e.scorer.Rank(localDebug, candidates)
}

func (e *Engine) exactScoreTier(localDebug bool, q Query, pool *StatPool, indices []int, homeName string, homeConf float64) []MatchCandidate {
	var candidates []MatchCandidate
	for _, hi := range indices {
		home := pool.rows[hi]
		if home.Venue != VenueHome || home.Team != homeName || home.GoalsScored != q.HomeGoals {
			continue
		}
		for _, ai := range indices {
			away := pool.rows[ai]
			if away.Venue != VenueAway || away.GoalsConceded != q.HomeGoals || away.GoalsScored != q.AwayGoals {
				continue
			}

			awaySim := e.teams.Similarity(away.Team, q.AwayTeam)
			candidates = append(candidates, MatchCandidate{
				Fixture:             newFixture(home, away, hi, ai),
				Confidence:          e.scorer.ExactScoreConfidence(localDebug, homeConf, awaySim),
				HomeConfidence:      homeConf,
				AwaySimilarity:      awaySim,
				ScoreExact:          true,
				TeamSwitchSuspected: e.scorer.SwitchSuspected(awaySim),
				Tier:                1,
			})
		}
	}
	return candidates
}

func (e *Engine) totalGoalsTier(localDebug bool, q Query, pool *StatPool, indices []int, homeName string, homeConf float64) []MatchCandidate {
	total := q.HomeGoals + q.AwayGoals

	var candidates []MatchCandidate
	for _, hi := range indices {
		home := pool.rows[hi]
		if home.Venue != VenueHome || home.Team != homeName {
			continue
		}
		for _, ai := range indices {
			away := pool.rows[ai]
			if away.Venue != VenueAway || away.GoalsConceded != home.GoalsScored {
				continue
			}
			if home.GoalsScored+away.GoalsScored != total {
				continue
			}

			candidates = append(candidates, MatchCandidate{
				Fixture:             newFixture(home, away, hi, ai),
				Confidence:          e.scorer.TotalGoalsConfidence(localDebug, homeConf),
				HomeConfidence:      homeConf,
				AwaySimilarity:      e.teams.Similarity(away.Team, q.AwayTeam),
				ScoreExact:          false,
				TeamSwitchSuspected: true,
				Tier:                2,
				Notes:               NoteTotalGoals,
			})
		}
	}
	return candidates
}

// SearchAll runs Search for every query. With more than one worker the queries are
// spread over an ants pool; each query owns one result slot so the output keeps the
// input order.
func (e *Engine) SearchAll(localDebug bool, queries []Query, pool *StatPool) ([][]MatchCandidate, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)
	defer debug.DebugTiming(localDebug, "search all")()

	results := make([][]MatchCandidate, len(queries))

	if e.policy.Workers <= 1 || len(queries) < 2 {
		for i, q := range queries {
			results[i] = e.Search(false, q, pool)
		}
		return results, nil
	}

	workers, err := ants.NewPool(e.policy.Workers)
	if err != nil {
		return nil, errors.Wrap(err, "create search worker pool")
	}
	defer workers.Release()

	var wg sync.WaitGroup
	var submitErr error
	for i := range queries {
		i := i
		wg.Add(1)
		if err := workers.Submit(func() {
			defer wg.Done()
			results[i] = e.Search(false, queries[i], pool)
		}); err != nil {
			wg.Done()
			submitErr = errors.Wrapf(err, "submit search %d to worker pool", i)
			break
		}
	}
	wg.Wait()

	if submitErr != nil {
		return nil, submitErr
	}

	debug.DebugOutput(localDebug, "Searched %d queries on %d workers", len(queries), e.policy.Workers)
	return results, nil
}
