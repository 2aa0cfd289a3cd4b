package match

import (
	"time"
)

// Venue marks which side of a fixture a TeamStatRow describes
type Venue string

const (
	VenueHome Venue = "h"
	VenueAway Venue = "a"
)

// Full-time results
const (
	ResultHome = "H"
	ResultDraw = "D"
	ResultAway = "A"
)

// MatchRecord is one played fixture from the odds source
type MatchRecord struct {
	Date      time.Time `validate:"required"`
	Season    string
	HomeTeam  string `validate:"required"`
	AwayTeam  string `validate:"required,nefield=HomeTeam"`
	HomeGoals int    `validate:"gte=0"`
	AwayGoals int    `validate:"gte=0"`
	Result    string `validate:"required,oneof=H D A"`

	// Optional market and shot columns
	HomeShots         *float64
	AwayShots         *float64
	HomeShotsOnTarget *float64
	AwayShotsOnTarget *float64
	B365Home          *float64
	B365Draw          *float64
	B365Away          *float64
	AvgHome           *float64
	AvgDraw           *float64
	AvgAway           *float64
	AvgOver25         *float64
	AvgUnder25        *float64
}

// TeamStatRow is one team's view of one fixture, as Understat publishes it
type TeamStatRow struct {
	Date          time.Time
	Team          string
	Venue         Venue
	GoalsScored   int
	GoalsConceded int
	XG            float64
	XGA           float64
	NPXG          float64
	XPts          float64
	League        string
	Year          int
}

// XGStats carries both sides' expected statistics for a paired fixture
type XGStats struct {
	HomeXG   float64
	AwayXG   float64
	HomeXGA  float64
	AwayXGA  float64
	HomeNPXG float64
	AwayNPXG float64
	HomeXPts float64
	AwayXPts float64
}

// Fixture is a home row and an away row joined into one two-sided match.
// HomeRow and AwayRow index the rows handed to Pair.
type Fixture struct {
	Date      time.Time
	HomeTeam  string
	AwayTeam  string
	HomeGoals int
	AwayGoals int
	Year      int
	Stats     XGStats
	HomeRow   int
	AwayRow   int
}

// Query describes a primary row that needs a fuzzy search
type Query struct {
	Index     int // merged-row index, 0 when not known
	Date      time.Time
	HomeTeam  string
	AwayTeam  string
	HomeGoals int
	AwayGoals int
	Result    string
}

// MatchCandidate is a scored search hit
type MatchCandidate struct {
	Fixture             Fixture
	Confidence          float64
	HomeConfidence      float64
	AwaySimilarity      float64
	ScoreExact          bool
	TeamSwitchSuspected bool
	Tier                int
	Notes               string
}

// MergedRecord is a primary record with its xG data attached. The statistical
// fields are nil when no xG fixture was found.
type MergedRecord struct {
	MatchRecord
	Index        int
	Key          string
	Matched      bool
	HomeXG       *float64
	AwayXG       *float64
	HomeXPts     *float64
	AwayXPts     *float64
	HomePoints   int
	AwayPoints   int
	HomeXPtsDiff *float64
	AwayXPtsDiff *float64
}

// YearCoverage is the coverage for one calendar year
type YearCoverage struct {
	Year         int
	Total        int
	Matched      int
	CoverageRate float64
}

// CoverageStats summarises a merge
type CoverageStats struct {
	Total        int
	Matched      int
	CoverageRate float64
	ByYear       []YearCoverage
}

// SearchPolicy holds the tunable numbers of the fuzzy search
type SearchPolicy struct {
	HomeWeight      float64 // tier 1 weight of the home-team confidence
	AwayWeight      float64 // tier 1 weight of the away-team similarity
	FallbackWeight  float64 // tier 2 weight of the home-team confidence
	Threshold       float64 // candidates below this are dropped
	SwitchThreshold float64 // away similarity below this flags a team switch
	Workers         int     // parallel searches, <= 1 runs sequentially
}

// DefaultSearchPolicy returns the standard weights and thresholds
func DefaultSearchPolicy() *SearchPolicy {
	return &SearchPolicy{
		HomeWeight:      0.6,
		AwayWeight:      0.4,
		FallbackWeight:  0.4,
		Threshold:       0.7,
		SwitchThreshold: 0.8,
		Workers:         4,
	}
}

// PairingPolicy controls how home and away rows are joined
type PairingPolicy struct {
	// Exclusive lets every away row pair at most once. Off by default: the first
	// complementary away row in input order is taken even if already used.
	Exclusive bool
}

// DefaultPairingPolicy returns the first-match pairing policy
func DefaultPairingPolicy() *PairingPolicy {
	return &PairingPolicy{Exclusive: false}
}

// ResultFor derives H/D/A from a score
func ResultFor(homeGoals, awayGoals int) string {
	switch {
	case homeGoals > awayGoals:
		return ResultHome
	case homeGoals < awayGoals:
		return ResultAway
	default:
		return ResultDraw
	}
}

// Points returns the league points earned by each side for a result
func Points(result string) (home, away int) {
	switch result {
	case ResultHome:
		return 3, 0
	case ResultAway:
		return 0, 3
	case ResultDraw:
		return 1, 1
	default:
		return 0, 0
	}
}

// Finding is the best candidate found for one query
type Finding struct {
	Query     Query
	Candidate MatchCandidate
}

// Fill is a reviewed set of xG values for one merged row
type Fill struct {
	Index      int
	HomeXG     float64
	AwayXG     float64
	HomeXPts   float64
	AwayXPts   float64
	Confidence float64
	Source     string
}
