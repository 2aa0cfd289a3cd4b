package match

import (
	"math"
	"sort"

	"github.com/epl-xg-merge/internal/debug"
)

// Scorer blends team-name confidences into candidate confidences and applies the
// search threshold.
type Scorer struct {
	policy *SearchPolicy
}

// NewScorer creates a scorer with the default policy
func NewScorer() *Scorer {
	return &Scorer{policy: DefaultSearchPolicy()}
}

// NewScorerWithPolicy creates a scorer with a custom policy
func NewScorerWithPolicy(policy *SearchPolicy) *Scorer {
	if policy == nil {
		policy = DefaultSearchPolicy()
	}
	return &Scorer{policy: policy}
}

// ExactScoreConfidence scores a tier 1 hit: date and score agree, teams are fuzzy.
func (s *Scorer) ExactScoreConfidence(localDebug bool, homeConfidence, awaySimilarity float64) float64 {
	score := s.policy.HomeWeight*homeConfidence + s.policy.AwayWeight*awaySimilarity

	debug.DebugOutput(localDebug, "Tier 1: home=%.3f*%.2f + away=%.3f*%.2f = %.4f",
		homeConfidence, s.policy.HomeWeight, awaySimilarity, s.policy.AwayWeight, score)

	return clamp(score)
}

// TotalGoalsConfidence scores a tier 2 hit, where only the total goals agree.
func (s *Scorer) TotalGoalsConfidence(localDebug bool, homeConfidence float64) float64 {
	score := s.policy.FallbackWeight * homeConfidence

	debug.DebugOutput(localDebug, "Tier 2: home=%.3f*%.2f = %.4f",
		homeConfidence, s.policy.FallbackWeight, score)

	return clamp(score)
}

// SwitchSuspected reports whether the found away team differs enough from the
// expected one to flag a possible team switch.
func (s *Scorer) SwitchSuspected(awaySimilarity float64) bool {
	return awaySimilarity < s.policy.SwitchThreshold
}

// Rank sorts candidates by confidence, highest first, keeping input order for ties,
// and drops those under the threshold.
func (s *Scorer) Rank(localDebug bool, candidates []MatchCandidate) []MatchCandidate {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	kept := candidates[:0]
	for _, c := range candidates {
		if c.Confidence < s.policy.Threshold {
			debug.DebugOutput(localDebug, "Dropping %s vs %s: %.4f below threshold %.2f",
				c.Fixture.HomeTeam, c.Fixture.AwayTeam, c.Confidence, s.policy.Threshold)
			continue
		}
		kept = append(kept, c)
	}

	debug.DebugOutput(localDebug, "Kept %d candidates, top confidence: %.4f", len(kept),
		func() float64 {
			if len(kept) > 0 {
				return kept[0].Confidence
			}
			return 0.0
		}())

	return kept
}

func clamp(score float64) float64 {
	return math.Max(0.0, math.Min(1.0, score))
}
