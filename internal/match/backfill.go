package match

import (
	"github.com/epl-xg-merge/internal/debug"
)

// BackfillStats counts the outcome of Backfill
type BackfillStats struct {
	Fills         int
	Applied       int
	AlreadyHasXG  int
	LowConfidence int
	UnknownIndex  int
	MissingBefore int
	MissingAfter  int
}

// Backfill copies reviewed xG values into merged rows by index. Rows that already
// carry xG are never overwritten and fills under minConfidence are ignored. When
// several fills target the same row the first one wins.
func Backfill(localDebug bool, records []MergedRecord, fills []Fill, minConfidence float64) BackfillStats {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	byIndex := make(map[int]int, len(records))
	stats := BackfillStats{Fills: len(fills)}
	for i, r := range records {
		byIndex[r.Index] = i
		if !r.Matched {
			stats.MissingBefore++
		}
	}

	for _, f := range fills {
		i, ok := byIndex[f.Index]
		if !ok {
			stats.UnknownIndex++
			continue
		}
		if f.Confidence < minConfidence {
			stats.LowConfidence++
			continue
		}
		if records[i].Matched {
			stats.AlreadyHasXG++
			continue
		}

		Attach(&records[i], f.HomeXG, f.AwayXG, f.HomeXPts, f.AwayXPts)
		stats.Applied++
		debug.DebugOutput(localDebug, "Filled row %d from %s (%.3f)", f.Index, f.Source, f.Confidence)
	}

	for _, r := range records {
		if !r.Matched {
			stats.MissingAfter++
		}
	}
	return stats
}
