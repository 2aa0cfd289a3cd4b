package audit

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/epl-xg-merge/internal/match"
)

func TestToCandidateRowAndFill(t *testing.T) {
	d := time.Date(2019, 8, 10, 0, 0, 0, 0, time.UTC)
	runID := uuid.New()
	f := match.Finding{
		Query: match.Query{Index: 42, Date: d, HomeTeam: "Burnley", AwayTeam: "Soton", HomeGoals: 3, AwayGoals: 0},
		Candidate: match.MatchCandidate{
			Fixture: match.Fixture{
				Date: d, HomeTeam: "Burnley", AwayTeam: "Southampton", HomeGoals: 3, AwayGoals: 0,
				Stats: match.XGStats{HomeXG: 0.91, AwayXG: 0.61, HomeXPts: 1.71, AwayXPts: 0.93},
			},
			Confidence:          0.84,
			ScoreExact:          true,
			TeamSwitchSuspected: true,
			Tier:                1,
		},
	}

	row := ToCandidateRow(runID, f)
	assert.Equal(t, runID, row.RunID)
	assert.Equal(t, 42, row.TemplateIndex)
	assert.Equal(t, "Soton", row.QueryAway)
	assert.Equal(t, "Southampton", row.FoundAway)
	assert.Equal(t, DecisionPending, row.Decision)
	assert.True(t, row.TeamSwitch)

	row.Decision = DecisionAccepted
	fill := row.Fill()
	assert.Equal(t, 42, fill.Index)
	assert.Equal(t, 0.91, fill.HomeXG)
	assert.Equal(t, 0.93, fill.AwayXPts)
	assert.Equal(t, 0.84, fill.Confidence)
	assert.Equal(t, "review:accepted", fill.Source)
}

func TestToMergedRowKeepsNulls(t *testing.T) {
	r := match.MergedRecord{
		MatchRecord: match.MatchRecord{
			Date: time.Date(2019, 8, 10, 0, 0, 0, 0, time.UTC), HomeTeam: "Burnley", AwayTeam: "Southampton",
			HomeGoals: 3, Result: "H",
		},
		Index: 7,
		Key:   "2019-08-10_Burnley_vs_Southampton",
	}
	row := toMergedRow(uuid.Nil, r)
	assert.Equal(t, 7, row.RowIndex)
	assert.False(t, row.Matched)
	assert.Nil(t, row.HomeXG)
	assert.Nil(t, row.AwayXPtsDiff)
}

func TestRecordDecisionRejectsUnknown(t *testing.T) {
	tracker := NewTracker(nil)
	err := tracker.RecordDecision(context.Background(), false, 1, "maybe", "reviewer")
	assert.True(t, errors.Is(err, ErrUnknownDecision))
}
