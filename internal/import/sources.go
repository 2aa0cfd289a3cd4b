package import_pkg

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/match"
	"github.com/epl-xg-merge/internal/normalize"
)

// LeagueEPL is the Understat league code kept at ingestion
const LeagueEPL = "EPL"

// Odds file columns that must be present
var requiredOddsColumns = []string{"Date", "HomeTeam", "AwayTeam", "FTHG", "FTAG"}

// Understat columns that must be present
var requiredUnderstatColumns = []string{"date", "team", "h_a", "scored", "missed", "xG", "xpts", "league"}

// Market-average columns were renamed from BbAv* to Avg* in later seasons; the
// first present name wins.
var (
	avgHomeColumns    = []string{"BbAvH", "AvgH"}
	avgDrawColumns    = []string{"BbAvD", "AvgD"}
	avgAwayColumns    = []string{"BbAvA", "AvgA"}
	avgOver25Columns  = []string{"BbAv>2.5", "Avg>2.5"}
	avgUnder25Columns = []string{"BbAv<2.5", "Avg<2.5"}
)

// FileSummary describes what happened to one odds file
type FileSummary struct {
	Path     string
	Season   string
	Rows     int
	Kept     int
	BadDates int
	Invalid  int
	Dates    normalize.DateReport
	Skipped  string // reason the whole file was skipped, empty when loaded
}

// OddsResult is the concatenation of every usable odds file
type OddsResult struct {
	Records []match.MatchRecord
	Files   []FileSummary
}

// OddsLoader reads a folder of football-data.co.uk season files
type OddsLoader struct {
	Dates *normalize.DateParser
	Teams *normalize.TeamNormalizer
}

// NewOddsLoader returns a loader with the default date parser and alias table
func NewOddsLoader() *OddsLoader {
	return &OddsLoader{
		Dates: normalize.DefaultDateParser(),
		Teams: normalize.DefaultTeamNormalizer(),
	}
}

// LoadFolder loads every *.csv in dir in file name order. Files that are empty or
// lack a required column are skipped with a warning; the call fails only when the
// folder is missing, holds no CSV files, or no file yields a record.
func (l *OddsLoader) LoadFolder(localDebug bool, dir string) (*OddsResult, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, errors.Mark(errors.Newf("odds folder %s", dir), ErrSourceNotFound)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	if len(files) == 0 {
		return nil, errors.Wrapf(ErrNoCSVFiles, "odds folder %s", dir)
	}
	sort.Strings(files)

	log := debug.Logger()
	result := &OddsResult{}
	for _, path := range files {
		summary, records, err := l.LoadFile(localDebug, path)
		if err != nil {
			summary.Skipped = err.Error()
			log.WithField("file", filepath.Base(path)).WithError(err).Warn("Skipping odds file")
		} else {
			log.WithFields(logrus.Fields{
				"file":      filepath.Base(path),
				"season":    summary.Season,
				"records":   summary.Kept,
				"bad_dates": summary.BadDates,
				"invalid":   summary.Invalid,
				"method":    summary.Dates.Method,
			}).Info("Loaded odds file")
		}
		result.Files = append(result.Files, summary)
		result.Records = append(result.Records, records...)
	}

	if len(result.Records) == 0 {
		return result, errors.Wrapf(ErrNoValidFiles, "odds folder %s", dir)
	}
	return result, nil
}

// LoadFile reads one season file. Dates are parsed per file so seasons written in
// different formats do not disturb each other. Rows with no parseable date or that
// fail validation are dropped and counted.
func (l *OddsLoader) LoadFile(localDebug bool, path string) (FileSummary, []match.MatchRecord, error) {
	summary := FileSummary{
		Path:   path,
		Season: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	t, err := readTable(path)
	if err != nil {
		return summary, nil, err
	}
	if len(t.rows) == 0 {
		return summary, nil, errors.Newf("%s is empty", filepath.Base(path))
	}
	if err := t.require(requiredOddsColumns...); err != nil {
		return summary, nil, err
	}

	summary.Rows = len(t.rows)
	dates := l.Dates.ParseColumn(localDebug, t.column("Date"))
	summary.Dates = dates.Report

	records := make([]match.MatchRecord, 0, len(t.rows))
	for i, row := range t.rows {
		if dates.Dates[i] == nil {
			summary.BadDates++
			continue
		}

		rec, ok := l.record(t, row, *dates.Dates[i], summary.Season)
		if !ok {
			summary.Invalid++
			continue
		}
		if err := match.ValidateRecord(rec); err != nil {
			debug.DebugOutput(localDebug, "Dropping row %d of %s: %v", i+2, filepath.Base(path), err)
			summary.Invalid++
			continue
		}
		records = append(records, rec)
	}

	summary.Kept = len(records)
	return summary, records, nil
}

func (l *OddsLoader) record(t *table, row []string, date time.Time, season string) (match.MatchRecord, bool) {
	hg, okH := normalize.ParseInt(t.get(row, "FTHG"))
	ag, okA := normalize.ParseInt(t.get(row, "FTAG"))
	if !okH || !okA {
		return match.MatchRecord{}, false
	}

	result := strings.ToUpper(t.get(row, "FTR"))
	if result == "" {
		result = match.ResultFor(hg, ag)
	}

	return match.MatchRecord{
		Date:              date,
		Season:            season,
		HomeTeam:          l.Teams.Canonical(t.get(row, "HomeTeam")),
		AwayTeam:          l.Teams.Canonical(t.get(row, "AwayTeam")),
		HomeGoals:         hg,
		AwayGoals:         ag,
		Result:            result,
		HomeShots:         normalize.ParseDecimal(t.get(row, "HS")),
		AwayShots:         normalize.ParseDecimal(t.get(row, "AS")),
		HomeShotsOnTarget: normalize.ParseDecimal(t.get(row, "HST")),
		AwayShotsOnTarget: normalize.ParseDecimal(t.get(row, "AST")),
		B365Home:          normalize.ParseDecimal(t.get(row, "B365H")),
		B365Draw:          normalize.ParseDecimal(t.get(row, "B365D")),
		B365Away:          normalize.ParseDecimal(t.get(row, "B365A")),
		AvgHome:           firstDecimal(t, row, avgHomeColumns),
		AvgDraw:           firstDecimal(t, row, avgDrawColumns),
		AvgAway:           firstDecimal(t, row, avgAwayColumns),
		AvgOver25:         firstDecimal(t, row, avgOver25Columns),
		AvgUnder25:        firstDecimal(t, row, avgUnder25Columns),
	}, true
}

func firstDecimal(t *table, row []string, columns []string) *float64 {
	for _, c := range columns {
		if t.has(c) {
			return normalize.ParseDecimal(t.get(row, c))
		}
	}
	return nil
}

// UnderstatSummary counts what the Understat loader kept
type UnderstatSummary struct {
	Rows       int
	LeagueRows int
	Kept       int
	BadDates   int
	BadValues  int
	Dates      normalize.DateReport
}

// UnderstatLoader reads the Understat per-team-per-game export
type UnderstatLoader struct {
	Dates  *normalize.DateParser
	League string
}

// NewUnderstatLoader returns a loader restricted to the Premier League
func NewUnderstatLoader() *UnderstatLoader {
	return &UnderstatLoader{
		Dates:  normalize.DefaultDateParser(),
		League: LeagueEPL,
	}
}

// Load reads the file and keeps rows of the configured league. Team names are kept
// raw; the pairing and index stages canonicalize them.
func (l *UnderstatLoader) Load(localDebug bool, path string) ([]match.TeamStatRow, UnderstatSummary, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	var summary UnderstatSummary

	t, err := readTable(path)
	if err != nil {
		return nil, summary, err
	}
	if err := t.require(requiredUnderstatColumns...); err != nil {
		return nil, summary, err
	}
	summary.Rows = len(t.rows)

	league := *t
	league.rows = nil
	for _, row := range t.rows {
		if t.get(row, "league") == l.League {
			league.rows = append(league.rows, row)
		}
	}
	summary.LeagueRows = len(league.rows)
	if summary.LeagueRows == 0 {
		return nil, summary, errors.Wrapf(ErrNoLeagueRows, "%s in %s", l.League, path)
	}

	dates := l.Dates.ParseColumn(localDebug, league.column("date"))
	summary.Dates = dates.Report

	rows := make([]match.TeamStatRow, 0, len(league.rows))
	for i, row := range league.rows {
		if dates.Dates[i] == nil {
			summary.BadDates++
			continue
		}

		r, ok := statRow(&league, row, *dates.Dates[i])
		if !ok {
			summary.BadValues++
			continue
		}
		rows = append(rows, r)
	}
	summary.Kept = len(rows)

	debug.Logger().WithFields(logrus.Fields{
		"file":    filepath.Base(path),
		"league":  l.League,
		"rows":    summary.Kept,
		"dropped": summary.BadDates + summary.BadValues,
	}).Info("Loaded Understat data")

	return rows, summary, nil
}

func statRow(t *table, row []string, date time.Time) (match.TeamStatRow, bool) {
	scored, okS := normalize.ParseInt(t.get(row, "scored"))
	missed, okM := normalize.ParseInt(t.get(row, "missed"))
	xg := normalize.ParseDecimal(t.get(row, "xG"))
	xpts := normalize.ParseDecimal(t.get(row, "xpts"))
	if !okS || !okM || xg == nil || xpts == nil {
		return match.TeamStatRow{}, false
	}

	r := match.TeamStatRow{
		Date:          date,
		Team:          t.get(row, "team"),
		Venue:         match.Venue(strings.ToLower(t.get(row, "h_a"))),
		GoalsScored:   scored,
		GoalsConceded: missed,
		XG:            *xg,
		XPts:          *xpts,
		League:        t.get(row, "league"),
		Year:          date.Year(),
	}
	if v := normalize.ParseDecimal(t.get(row, "xGA")); v != nil {
		r.XGA = *v
	}
	if v := normalize.ParseDecimal(t.get(row, "npxG")); v != nil {
		r.NPXG = *v
	}
	if y, ok := normalize.ParseInt(t.get(row, "year")); ok {
		r.Year = y
	}
	return r, true
}
