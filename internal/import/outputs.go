package import_pkg

import (
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/match"
	"github.com/epl-xg-merge/internal/normalize"
)

// Fill sources
const (
	SourceManual = "manual"
	SourceReport = "candidate_report"
)

// MergedReadOptions controls how a merged dataset is read back
type MergedReadOptions struct {
	// ZeroAsMissing treats xG1 == xG2 == 0 as "no xG", for files written with
	// sentinel zeros.
	ZeroAsMissing bool
}

// ReadMerged reads a merged dataset back into records, keeping file order.
func ReadMerged(localDebug bool, path string, opts MergedReadOptions) ([]match.MergedRecord, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require("Date", "Team1", "Team2", "G1", "G2", "R", "Index", "xG1", "xG2", "xpts1", "xpts2"); err != nil {
		return nil, err
	}

	dates := normalize.DefaultDateParser().ParseColumn(localDebug, t.column("Date"))

	records := make([]match.MergedRecord, 0, len(t.rows))
	for i, row := range t.rows {
		if dates.Dates[i] == nil {
			return nil, errors.Newf("%s row %d: unparseable date %q", filepath.Base(path), i+2, t.get(row, "Date"))
		}
		hg, okH := normalize.ParseInt(t.get(row, "G1"))
		ag, okA := normalize.ParseInt(t.get(row, "G2"))
		idx, okI := normalize.ParseInt(t.get(row, "Index"))
		if !okH || !okA || !okI {
			return nil, errors.Newf("%s row %d: bad goals or index", filepath.Base(path), i+2)
		}

		r := match.MergedRecord{
			MatchRecord: match.MatchRecord{
				Date:              *dates.Dates[i],
				Season:            t.get(row, "Season"),
				HomeTeam:          t.get(row, "Team1"),
				AwayTeam:          t.get(row, "Team2"),
				HomeGoals:         hg,
				AwayGoals:         ag,
				Result:            t.get(row, "R"),
				HomeShots:         normalize.ParseDecimal(t.get(row, "S1")),
				AwayShots:         normalize.ParseDecimal(t.get(row, "S2")),
				HomeShotsOnTarget: normalize.ParseDecimal(t.get(row, "ST1")),
				AwayShotsOnTarget: normalize.ParseDecimal(t.get(row, "ST2")),
				AvgHome:           normalize.ParseDecimal(t.get(row, "W1")),
				AvgDraw:           normalize.ParseDecimal(t.get(row, "D")),
				AvgAway:           normalize.ParseDecimal(t.get(row, "W2")),
				AvgOver25:         normalize.ParseDecimal(t.get(row, ">2.5")),
				AvgUnder25:        normalize.ParseDecimal(t.get(row, "<2.5")),
				B365Home:          normalize.ParseDecimal(t.get(row, "B365H")),
				B365Draw:          normalize.ParseDecimal(t.get(row, "B365D")),
				B365Away:          normalize.ParseDecimal(t.get(row, "B365A")),
			},
			Index: idx,
		}
		r.HomePoints, r.AwayPoints = match.Points(r.Result)

		hxg := normalize.ParseDecimal(t.get(row, "xG1"))
		axg := normalize.ParseDecimal(t.get(row, "xG2"))
		hxp := normalize.ParseDecimal(t.get(row, "xpts1"))
		axp := normalize.ParseDecimal(t.get(row, "xpts2"))

		missing := hxg == nil || axg == nil || hxp == nil || axp == nil
		if !missing && opts.ZeroAsMissing && *hxg == 0 && *axg == 0 {
			missing = true
		}
		if !missing {
			match.Attach(&r, *hxg, *axg, *hxp, *axp)
		}
		records = append(records, r)
	}
	return records, nil
}

// ReadTemplate reads a manual-collection template. Every row becomes a search query;
// rows whose xG cells were filled in by hand also become fills with confidence 1.
func ReadTemplate(localDebug bool, path string) ([]match.Query, []match.Fill, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	t, err := readTable(path)
	if err != nil {
		return nil, nil, err
	}
	if err := t.require("Date", "HomeTeam", "AwayTeam", "HomeGoals", "AwayGoals", "Index"); err != nil {
		return nil, nil, err
	}

	dates := normalize.DefaultDateParser().ParseColumn(localDebug, t.column("Date"))

	var queries []match.Query
	var fills []match.Fill
	for i, row := range t.rows {
		hg, okH := normalize.ParseInt(t.get(row, "HomeGoals"))
		ag, okA := normalize.ParseInt(t.get(row, "AwayGoals"))
		idx, _ := normalize.ParseInt(t.get(row, "Index"))
		if dates.Dates[i] == nil || !okH || !okA {
			debug.DebugOutput(localDebug, "Skipping template row %d", i+2)
			continue
		}

		result := t.get(row, "Result")
		if result == "" {
			result = match.ResultFor(hg, ag)
		}
		queries = append(queries, match.Query{
			Index:     idx,
			Date:      *dates.Dates[i],
			HomeTeam:  t.get(row, "HomeTeam"),
			AwayTeam:  t.get(row, "AwayTeam"),
			HomeGoals: hg,
			AwayGoals: ag,
			Result:    result,
		})

		if f, ok := fillFrom(t, row, idx, 1.0, SourceManual, "Home_xG", "Away_xG", "Home_xpts", "Away_xpts"); ok {
			fills = append(fills, f)
		}
	}
	return queries, fills, nil
}

// ReadCandidateReport reads a reviewed candidate report as fills keyed by template index.
func ReadCandidateReport(localDebug bool, path string) ([]match.Fill, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	if err := t.require("Template_Index", "Home_xG", "Away_xG", "Home_xpts", "Away_xpts", "Match_Confidence"); err != nil {
		return nil, err
	}

	var fills []match.Fill
	for i, row := range t.rows {
		idx, ok := normalize.ParseInt(t.get(row, "Template_Index"))
		conf := normalize.ParseDecimal(t.get(row, "Match_Confidence"))
		if !ok || conf == nil {
			debug.DebugOutput(localDebug, "Skipping report row %d", i+2)
			continue
		}
		if f, ok := fillFrom(t, row, idx, *conf, SourceReport, "Home_xG", "Away_xG", "Home_xpts", "Away_xpts"); ok {
			fills = append(fills, f)
		}
	}
	return fills, nil
}

func fillFrom(t *table, row []string, idx int, confidence float64, source string, hxgCol, axgCol, hxpCol, axpCol string) (match.Fill, bool) {
	hxg := normalize.ParseDecimal(t.get(row, hxgCol))
	axg := normalize.ParseDecimal(t.get(row, axgCol))
	hxp := normalize.ParseDecimal(t.get(row, hxpCol))
	axp := normalize.ParseDecimal(t.get(row, axpCol))
	if idx <= 0 || hxg == nil || axg == nil || hxp == nil || axp == nil {
		return match.Fill{}, false
	}
	return match.Fill{
		Index:      idx,
		HomeXG:     *hxg,
		AwayXG:     *axg,
		HomeXPts:   *hxp,
		AwayXPts:   *axp,
		Confidence: confidence,
		Source:     source,
	}, true
}
