package match

import (
	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/normalize"
)

// PairingStats counts what happened to the stat rows handed to Pair
type PairingStats struct {
	HomeRows  int
	AwayRows  int
	Paired    int
	Unpaired  int // home rows with no complementary away row, dropped
	Ambiguous int // home rows with more than one complementary away row
	Other     int // rows whose venue is neither h nor a
}

// PairingResult is the output of Pair
type PairingResult struct {
	Fixtures []Fixture
	Stats    PairingStats
}

// Pair joins home rows with away rows sharing the date and a complementary score.
// Home rows are visited in input order and each takes the first matching away row
// in input order. Unmatched home rows are only counted. Statistics are rounded to
// two decimals on the way out.
func Pair(localDebug bool, rows []TeamStatRow, policy *PairingPolicy) PairingResult {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	if policy == nil {
		policy = DefaultPairingPolicy()
	}

	var stats PairingStats
	homes := make([]int, 0, len(rows)/2)
	awaysByDate := make(map[string][]int)
	for i, row := range rows {
		switch row.Venue {
		case VenueHome:
			homes = append(homes, i)
			stats.HomeRows++
		case VenueAway:
			d := row.Date.Format(keyDateLayout)
			awaysByDate[d] = append(awaysByDate[d], i)
			stats.AwayRows++
		default:
			stats.Other++
		}
	}
	debug.DebugOutput(localDebug, "Partitioned %d home rows and %d away rows", stats.HomeRows, stats.AwayRows)

	used := make(map[int]bool)
	fixtures := make([]Fixture, 0, len(homes))

	for _, hi := range homes {
		home := rows[hi]
		chosen := -1
		complementary := 0

		for _, ai := range awaysByDate[home.Date.Format(keyDateLayout)] {
			away := rows[ai]
			if away.GoalsScored != home.GoalsConceded || away.GoalsConceded != home.GoalsScored {
				continue
			}
			if policy.Exclusive && used[ai] {
				continue
			}
			complementary++
			if chosen < 0 {
				chosen = ai
			}
		}

		if complementary > 1 {
			stats.Ambiguous++
			debug.DebugOutput(localDebug, "Ambiguous pairing for %s on %s: %d away rows",
				home.Team, home.Date.Format(keyDateLayout), complementary)
		}
		if chosen < 0 {
			stats.Unpaired++
			continue
		}

		used[chosen] = true
		fixtures = append(fixtures, newFixture(home, rows[chosen], hi, chosen))
		stats.Paired++
	}

	debug.DebugOutput(localDebug, "Paired %d fixtures, %d home rows unpaired, %d ambiguous",
		stats.Paired, stats.Unpaired, stats.Ambiguous)

	return PairingResult{Fixtures: fixtures, Stats: stats}
}

func newFixture(home, away TeamStatRow, homeIdx, awayIdx int) Fixture {
	return Fixture{
		Date:      home.Date,
		HomeTeam:  home.Team,
		AwayTeam:  away.Team,
		HomeGoals: home.GoalsScored,
		AwayGoals: away.GoalsScored,
		Year:      home.Year,
		Stats: XGStats{
			HomeXG:   normalize.Round2(home.XG),
			AwayXG:   normalize.Round2(away.XG),
			HomeXGA:  normalize.Round2(home.XGA),
			AwayXGA:  normalize.Round2(away.XGA),
			HomeNPXG: normalize.Round2(home.NPXG),
			AwayNPXG: normalize.Round2(away.NPXG),
			HomeXPts: normalize.Round2(home.XPts),
			AwayXPts: normalize.Round2(away.XPts),
		},
		HomeRow: homeIdx,
		AwayRow: awayIdx,
	}
}
