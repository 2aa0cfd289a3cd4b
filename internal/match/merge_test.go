package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epl-xg-merge/internal/normalize"
)

func record(d, home, away string, hg, ag int) MatchRecord {
	return MatchRecord{Date: mustDate(d), HomeTeam: home, AwayTeam: away, HomeGoals: hg, AwayGoals: ag, Result: ResultFor(hg, ag)}
}

func TestMergeAliasedName(t *testing.T) {
	teams := normalize.DefaultTeamNormalizer()
	ix := NewIndex(false, teams, []Fixture{{
		Date: mustDate("2018-10-05"), HomeTeam: "Brighton", AwayTeam: "West Ham",
		Stats: XGStats{HomeXG: 1.2, AwayXG: 0.8, HomeXPts: 1.9, AwayXPts: 0.85},
	}})

	res := Merge(false, []MatchRecord{record("2018-10-05", "Brighton and Hove Albion", "West Ham", 1, 0)}, ix)

	require.Len(t, res.Records, 1)
	r := res.Records[0]
	assert.True(t, r.Matched)
	require.NotNil(t, r.HomeXG)
	assert.Equal(t, 1.2, *r.HomeXG)
	assert.Empty(t, res.Unmatched)
}

func TestMergeAdjacentDay(t *testing.T) {
	teams := normalize.DefaultTeamNormalizer()
	ix := NewIndex(false, teams, []Fixture{{
		Date: mustDate("2016-09-11"), HomeTeam: "Arsenal", AwayTeam: "Chelsea",
		Stats: XGStats{HomeXG: 2.5, AwayXG: 0.4, HomeXPts: 2.7, AwayXPts: 0.1},
	}})

	res := Merge(false, []MatchRecord{record("2016-09-10", "Arsenal", "Chelsea", 3, 0)}, ix)
	assert.True(t, res.Records[0].Matched)
}

func TestMergePointsAndDiffs(t *testing.T) {
	teams := normalize.DefaultTeamNormalizer()
	ix := NewIndex(false, teams, []Fixture{
		{Date: mustDate("2019-08-10"), HomeTeam: "Burnley", AwayTeam: "Southampton",
			Stats: XGStats{HomeXG: 1.43, AwayXG: 0.57, HomeXPts: 2.1, AwayXPts: 0.66}},
		{Date: mustDate("2019-08-11"), HomeTeam: "Leicester", AwayTeam: "Wolves",
			Stats: XGStats{HomeXG: 0.9, AwayXG: 0.9, HomeXPts: 1.3, AwayXPts: 1.3}},
	})

	primary := []MatchRecord{
		record("2019-08-10", "Burnley", "Southampton", 3, 0),
		record("2019-08-11", "Leicester", "Wolves", 0, 0),
		record("2019-08-12", "Chelsea", "Everton", 0, 1),
	}
	res := Merge(false, primary, ix)

	require.Len(t, res.Records, 3)
	for i, r := range res.Records {
		assert.Equal(t, i+1, r.Index)
	}

	burnley := res.Records[0]
	assert.Equal(t, 3, burnley.HomePoints)
	assert.Equal(t, 0, burnley.AwayPoints)
	assert.Equal(t, -0.9, *burnley.HomeXPtsDiff)
	assert.Equal(t, 0.66, *burnley.AwayXPtsDiff)

	draw := res.Records[1]
	assert.Equal(t, 1, draw.HomePoints)
	assert.Equal(t, 1, draw.AwayPoints)
	assert.Equal(t, 0.3, *draw.HomeXPtsDiff)

	missing := res.Records[2]
	assert.False(t, missing.Matched)
	assert.Nil(t, missing.HomeXG)
	assert.Nil(t, missing.HomeXPtsDiff)
	assert.Equal(t, 0, missing.HomePoints)
	assert.Equal(t, 3, missing.AwayPoints)

	require.Len(t, res.Unmatched, 1)
	assert.Equal(t, 3, res.Unmatched[0].Index)

	assert.Equal(t, 3, res.Stats.Total)
	assert.Equal(t, 2, res.Stats.Matched)
	assert.Equal(t, float64(2)/float64(3), res.Stats.CoverageRate)
}

func TestCoverageArithmetic(t *testing.T) {
	assert.Equal(t, CoverageStats{}, Coverage(nil))

	records := []MergedRecord{
		{MatchRecord: record("2015-05-01", "A", "B", 0, 0), Matched: true},
		{MatchRecord: record("2015-06-01", "A", "B", 0, 0)},
		{MatchRecord: record("2016-01-01", "A", "B", 0, 0), Matched: true},
		{MatchRecord: record("2016-01-02", "A", "B", 0, 0), Matched: true},
	}
	stats := Coverage(records)

	assert.LessOrEqual(t, stats.Matched, stats.Total)
	assert.Equal(t, float64(stats.Matched)/float64(stats.Total), stats.CoverageRate)
	require.Len(t, stats.ByYear, 2)
	assert.Equal(t, YearCoverage{Year: 2015, Total: 2, Matched: 1, CoverageRate: 0.5}, stats.ByYear[0])
	assert.Equal(t, YearCoverage{Year: 2016, Total: 2, Matched: 2, CoverageRate: 1.0}, stats.ByYear[1])
}

func TestPointsAndResult(t *testing.T) {
	assert.Equal(t, ResultHome, ResultFor(2, 1))
	assert.Equal(t, ResultDraw, ResultFor(0, 0))
	assert.Equal(t, ResultAway, ResultFor(0, 3))

	h, a := Points(ResultHome)
	assert.Equal(t, [2]int{3, 0}, [2]int{h, a})
	h, a = Points(ResultDraw)
	assert.Equal(t, [2]int{1, 1}, [2]int{h, a})
	h, a = Points(ResultAway)
	assert.Equal(t, [2]int{0, 3}, [2]int{h, a})
}
