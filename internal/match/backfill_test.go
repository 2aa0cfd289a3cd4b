package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackfill(t *testing.T) {
	matched := MergedRecord{MatchRecord: record("2015-08-08", "Arsenal", "West Ham", 0, 2), Index: 1}
	matched.HomePoints, matched.AwayPoints = Points(matched.Result)
	Attach(&matched, 1.5, 0.6, 2.2, 0.5)

	missing := MergedRecord{MatchRecord: record("2015-08-09", "Chelsea", "Swansea", 2, 2), Index: 2}
	missing.HomePoints, missing.AwayPoints = Points(missing.Result)

	other := MergedRecord{MatchRecord: record("2015-08-09", "Everton", "Watford", 2, 2), Index: 3}

	records := []MergedRecord{matched, missing, other}
	fills := []Fill{
		{Index: 1, HomeXG: 9, AwayXG: 9, Confidence: 1},
		{Index: 2, HomeXG: 1.234, AwayXG: 1.1, HomeXPts: 1.6, AwayXPts: 1.1, Confidence: 0.92},
		{Index: 2, HomeXG: 5, AwayXG: 5, Confidence: 0.95},
		{Index: 3, HomeXG: 1, AwayXG: 1, Confidence: 0.5},
		{Index: 42, Confidence: 1},
	}

	stats := Backfill(false, records, fills, 0.8)

	assert.Equal(t, BackfillStats{
		Fills: 5, Applied: 1, AlreadyHasXG: 2, LowConfidence: 1, UnknownIndex: 1,
		MissingBefore: 2, MissingAfter: 1,
	}, stats)

	assert.Equal(t, 1.5, *records[0].HomeXG, "existing xG is never overwritten")

	require.True(t, records[1].Matched)
	assert.Equal(t, 1.23, *records[1].HomeXG)
	assert.Equal(t, 0.6, *records[1].HomeXPtsDiff)

	assert.False(t, records[2].Matched)
}
