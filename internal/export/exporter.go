package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/epl-xg-merge/internal/match"
	"github.com/epl-xg-merge/internal/normalize"
)

// DateLayout is the day-first date format of every file this package writes
const DateLayout = "02.01.2006"

// Default output file names
const (
	MergedFileName   = "integrated_football_analytics_dataset.csv"
	TemplateFileName = "understat_manual_collection_template.csv"
	ReportFileName   = "found_understat_matches.csv"
)

// MergedColumns is the header of the merged dataset
var MergedColumns = []string{
	"Date", "Team1", "Team2", "G1", "G2", "R",
	"S1", "S2", "ST1", "ST2",
	"W1", "D", "W2", ">2.5", "<2.5",
	"B365H", "B365D", "B365A",
	"Index",
	"xG1", "xG2", "xpts1", "xpts2",
	"pts1", "pts2", "xpts_diff1", "xpts_diff2",
	"Season",
}

// TemplateColumns is the header of the manual-collection template
var TemplateColumns = []string{
	"Date", "HomeTeam", "AwayTeam", "HomeGoals", "AwayGoals", "Result", "Index",
	"Home_xG", "Away_xG", "Home_xpts", "Away_xpts",
	"Notes", "Understat_Date_Found", "Understat_Teams_Found",
}

// ReportColumns is the header of the candidate report
var ReportColumns = []string{
	"Template_Index", "Template_Date", "Template_HomeTeam", "Template_AwayTeam",
	"Template_HomeGoals", "Template_AwayGoals", "Template_Result",
	"Found_Date", "Found_HomeTeam", "Found_AwayTeam", "Found_HomeGoals", "Found_AwayGoals",
	"Home_xG", "Away_xG", "Home_xpts", "Away_xpts",
	"Match_Confidence", "Away_Team_Switched", "Expected_Away_Team", "Found_Away_Team",
	"Score_Match", "Tier", "Notes",
}

// MergedOptions controls how missing statistics are rendered
type MergedOptions struct {
	// SentinelZero writes 0 for missing xG and xpts (and -points for the diffs)
	// and 0 for missing shot and odds cells, like older consumers expect.
	SentinelZero bool
}

// WriteMerged writes the merged dataset in record order.
func WriteMerged(path string, records []match.MergedRecord, opts MergedOptions) error {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, mergedRow(r, opts))
	}
	return writeCSV(path, MergedColumns, rows)
}

// WriteTemplate writes the unmatched rows as a manual-collection template,
// sorted by date then home team.
func WriteTemplate(path string, unmatched []match.MergedRecord) error {
	sorted := make([]match.MergedRecord, len(unmatched))
	copy(sorted, unmatched)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].HomeTeam < sorted[j].HomeTeam
	})

	rows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		rows = append(rows, []string{
			r.Date.Format(DateLayout),
			r.HomeTeam,
			r.AwayTeam,
			strconv.Itoa(r.HomeGoals),
			strconv.Itoa(r.AwayGoals),
			r.Result,
			strconv.Itoa(r.Index),
			"", "", "", "", "", "", "",
		})
	}
	return writeCSV(path, TemplateColumns, rows)
}

// WriteCandidateReport writes one row per finding, highest confidence first.
func WriteCandidateReport(path string, findings []match.Finding) error {
	sorted := make([]match.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Candidate.Confidence > sorted[j].Candidate.Confidence
	})

	rows := make([][]string, 0, len(sorted))
	for _, f := range sorted {
		q, c := f.Query, f.Candidate
		rows = append(rows, []string{
			strconv.Itoa(q.Index),
			q.Date.Format(DateLayout),
			q.HomeTeam,
			q.AwayTeam,
			strconv.Itoa(q.HomeGoals),
			strconv.Itoa(q.AwayGoals),
			q.Result,
			c.Fixture.Date.Format("2006-01-02"),
			c.Fixture.HomeTeam,
			c.Fixture.AwayTeam,
			strconv.Itoa(c.Fixture.HomeGoals),
			strconv.Itoa(c.Fixture.AwayGoals),
			formatFloat(c.Fixture.Stats.HomeXG),
			formatFloat(c.Fixture.Stats.AwayXG),
			formatFloat(c.Fixture.Stats.HomeXPts),
			formatFloat(c.Fixture.Stats.AwayXPts),
			formatFloat(normalize.Round3(c.Confidence)),
			strconv.FormatBool(c.TeamSwitchSuspected),
			q.AwayTeam,
			c.Fixture.AwayTeam,
			strconv.FormatBool(c.ScoreExact),
			strconv.Itoa(c.Tier),
			c.Notes,
		})
	}
	return writeCSV(path, ReportColumns, rows)
}

func mergedRow(r match.MergedRecord, opts MergedOptions) []string {
	optional := func(v *float64) string {
		if v == nil {
			if opts.SentinelZero {
				return "0"
			}
			return ""
		}
		return formatFloat(normalize.Round2(*v))
	}

	diff := func(v *float64, points int) string {
		if v == nil && opts.SentinelZero {
			return formatFloat(float64(-points))
		}
		return optional(v)
	}

	return []string{
		r.Date.Format(DateLayout),
		r.HomeTeam,
		r.AwayTeam,
		strconv.Itoa(r.HomeGoals),
		strconv.Itoa(r.AwayGoals),
		r.Result,
		optional(r.HomeShots),
		optional(r.AwayShots),
		optional(r.HomeShotsOnTarget),
		optional(r.AwayShotsOnTarget),
		optional(r.AvgHome),
		optional(r.AvgDraw),
		optional(r.AvgAway),
		optional(r.AvgOver25),
		optional(r.AvgUnder25),
		optional(r.B365Home),
		optional(r.B365Draw),
		optional(r.B365Away),
		strconv.Itoa(r.Index),
		optional(r.HomeXG),
		optional(r.AwayXG),
		optional(r.HomeXPts),
		optional(r.AwayXPts),
		strconv.Itoa(r.HomePoints),
		strconv.Itoa(r.AwayPoints),
		diff(r.HomeXPtsDiff, r.HomePoints),
		diff(r.AwayXPtsDiff, r.AwayPoints),
		r.Season,
	}
}

func writeCSV(path string, header []string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "create output directory %s", dir)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}
	if err := writer.WriteAll(rows); err != nil {
		return errors.Wrapf(err, "write rows to %s", path)
	}
	return errors.Wrapf(file.Sync(), "sync %s", path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
