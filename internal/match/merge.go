package match

import (
	"sort"

	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/normalize"
)

// MergeResult is the output of Merge. Unmatched holds the rows of Records that
// found no fixture, in the same order.
type MergeResult struct {
	Records   []MergedRecord
	Unmatched []MergedRecord
	Stats     CoverageStats
}

// Merge attaches xG data to every primary record through an exact key lookup.
// Records keep their input order and get Index 1..N.
func Merge(localDebug bool, primary []MatchRecord, index *Index) MergeResult {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	records := make([]MergedRecord, 0, len(primary))
	var unmatched []MergedRecord

	for i, rec := range primary {
		merged := MergedRecord{
			MatchRecord: rec,
			Index:       i + 1,
			Key:         index.Key(rec.Date, rec.HomeTeam, rec.AwayTeam),
		}
		merged.HomePoints, merged.AwayPoints = Points(rec.Result)

		if f, ok := index.Lookup(merged.Key); ok {
			Attach(&merged, f.Stats.HomeXG, f.Stats.AwayXG, f.Stats.HomeXPts, f.Stats.AwayXPts)
		} else {
			debug.DebugOutput(localDebug, "No xG for %s", merged.Key)
			unmatched = append(unmatched, merged)
		}

		records = append(records, merged)
	}

	stats := Coverage(records)
	debug.DebugOutput(localDebug, "Matched %d/%d (%.4f)", stats.Matched, stats.Total, stats.CoverageRate)

	return MergeResult{Records: records, Unmatched: unmatched, Stats: stats}
}

// Attach sets the xG fields of a merged record, rounding to two decimals and
// deriving the expected-minus-actual points differentials.
func Attach(r *MergedRecord, homeXG, awayXG, homeXPts, awayXPts float64) {
	hxg, axg := normalize.Round2(homeXG), normalize.Round2(awayXG)
	hxp, axp := normalize.Round2(homeXPts), normalize.Round2(awayXPts)
	hd := normalize.Round2(hxp - float64(r.HomePoints))
	ad := normalize.Round2(axp - float64(r.AwayPoints))

	r.Matched = true
	r.HomeXG, r.AwayXG = &hxg, &axg
	r.HomeXPts, r.AwayXPts = &hxp, &axp
	r.HomeXPtsDiff, r.AwayXPtsDiff = &hd, &ad
}

// Coverage computes matched/total overall and per calendar year.
func Coverage(records []MergedRecord) CoverageStats {
	stats := CoverageStats{Total: len(records)}
	years := make(map[int]*YearCoverage)

	for _, r := range records {
		y := r.Date.Year()
		yc, ok := years[y]
		if !ok {
			yc = &YearCoverage{Year: y}
			years[y] = yc
		}
		yc.Total++
		if r.Matched {
			yc.Matched++
			stats.Matched++
		}
	}

	if stats.Total > 0 {
		stats.CoverageRate = float64(stats.Matched) / float64(stats.Total)
	}

	for _, yc := range years {
		yc.CoverageRate = float64(yc.Matched) / float64(yc.Total)
		stats.ByYear = append(stats.ByYear, *yc)
	}
	sort.Slice(stats.ByYear, func(i, j int) bool {
		return stats.ByYear[i].Year < stats.ByYear[j].Year
	})

	return stats
}
