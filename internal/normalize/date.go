package normalize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/epl-xg-merge/internal/debug"
)

// Date parsing methods reported in DateReport.Method
const (
	MethodLayout      = "layout"
	MethodDayFirst    = "flexible_day_first"
	MethodLocale      = "flexible_default"
	MethodUnparseable = "none"
)

// DefaultDateLayouts are the explicit layouts tried in order. Single-digit
// day/month verbs also accept zero-padded input.
var DefaultDateLayouts = []string{
	"2/1/06",              // 16/08/14
	"2/1/2006",            // 16/08/2014
	"2-1-06",              // 16-08-14
	"2-1-2006",            // 16-08-2014
	"2006-1-2",            // 2014-08-16
	"1/2/06",              // 08/16/14
	"1/2/2006",            // 08/16/2014
	"2006/1/2",            // 2014/08/16
	"2.1.06",              // 16.08.14
	"2.1.2006",            // 16.08.2014
	"2006-01-02 15:04:05", // 2014-08-16 00:00:00
}

// DateParser turns heterogeneous date columns into calendar dates.
type DateParser struct {
	Layouts          []string
	SampleSize       int
	MinSuccessRate   float64 // a method is accepted above this rate
	CenturyCutoff    time.Time
	EarliestExpected time.Time
	LatestExpected   time.Time
	MaxFailedSamples int
}

// DateReport summarises a column parse. Out-of-range counts are warnings only.
type DateReport struct {
	Method           string
	Layout           string
	Total            int
	Parsed           int
	Failed           int
	SuccessRate      float64
	CenturyCorrected int
	TooOld           int
	TooNew           int
	Earliest         *time.Time
	Latest           *time.Time
	FailedExamples   []string
}

// DateColumn holds one parsed value per input value; nil marks an unparseable cell.
type DateColumn struct {
	Dates  []*time.Time
	Report DateReport
}

// DefaultDateParser returns the parser tuned for EPL seasons 2014-2020.
func DefaultDateParser() *DateParser {
	return &DateParser{
		Layouts:          DefaultDateLayouts,
		SampleSize:       50,
		MinSuccessRate:   0.5,
		CenturyCutoff:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		EarliestExpected: time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC),
		LatestExpected:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		MaxFailedSamples: 5,
	}
}

// ParseColumn parses a whole column. The first layout that parses every value in the
// sample and clears MinSuccessRate over the column is committed. When no layout
// does, day-first flexible parsing and then month-first flexible parsing are tried.
func (p *DateParser) ParseColumn(localDebug bool, raw []string) DateColumn {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	values := make([]string, len(raw))
	for i, v := range raw {
		values[i] = strings.TrimSpace(v)
	}
	sample := p.sample(values)
	debug.DebugOutput(localDebug, "Parsing %d date values, sample of %d", len(values), len(sample))

	var (
		dates  []*time.Time
		method = MethodUnparseable
		layout string
	)

	for _, candidate := range p.Layouts {
		if !allParse(sample, candidate) {
			continue
		}
		parsed := parseAll(values, func(s string) *time.Time { return parseLayout(s, candidate) })
		rate := successRate(parsed, values)
		debug.DebugOutput(localDebug, "Layout %q fits sample, column success %.3f", candidate, rate)
		if rate > p.MinSuccessRate {
			dates, method, layout = parsed, MethodLayout, candidate
			break
		}
	}

	if dates == nil {
		parsed := parseAll(values, parseDayFirst)
		rate := successRate(parsed, values)
		debug.DebugOutput(localDebug, "Day-first flexible parsing success %.3f", rate)
		if rate > p.MinSuccessRate {
			dates, method = parsed, MethodDayFirst
		}
	}

	if dates == nil {
		parsed := parseAll(values, parseMonthFirst)
		rate := successRate(parsed, values)
		debug.DebugOutput(localDebug, "Default flexible parsing success %.3f", rate)
		dates = parsed
		if rate > 0 {
			method = MethodLocale
		}
	}

	report := DateReport{Method: method, Layout: layout, Total: len(values)}
	for i, d := range dates {
		if d == nil {
			report.Failed++
			if values[i] != "" && len(report.FailedExamples) < p.MaxFailedSamples {
				report.FailedExamples = append(report.FailedExamples, values[i])
			}
			continue
		}

		corrected, changed := p.CorrectCentury(*d)
		if changed {
			report.CenturyCorrected++
			dates[i] = &corrected
		}
		p.observe(&report, corrected)
	}
	if report.Total > 0 {
		report.SuccessRate = float64(report.Parsed) / float64(report.Total)
	}

	debug.DebugOutput(localDebug, "Date method=%s parsed=%d failed=%d corrected=%d",
		report.Method, report.Parsed, report.Failed, report.CenturyCorrected)

	return DateColumn{Dates: dates, Report: report}
}

// Parse parses a single value with the explicit layouts, then day-first flexible
// parsing. The century correction is applied. Returns nil when nothing fits.
func (p *DateParser) Parse(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	var parsed *time.Time
	for _, layout := range p.Layouts {
		if parsed = parseLayout(s, layout); parsed != nil {
			break
		}
	}
	if parsed == nil {
		parsed = parseDayFirst(s)
	}
	if parsed == nil {
		return nil
	}

	corrected, _ := p.CorrectCentury(*parsed)
	return &corrected
}

// CorrectCentury moves dates after the cutoff back by 100 years.
func (p *DateParser) CorrectCentury(t time.Time) (time.Time, bool) {
	if t.After(p.CenturyCutoff) {
		return t.AddDate(-100, 0, 0), true
	}
	return t, false
}

func (p *DateParser) observe(report *DateReport, d time.Time) {
	report.Parsed++
	if d.Before(p.EarliestExpected) {
		report.TooOld++
	}
	if d.After(p.LatestExpected) {
		report.TooNew++
	}
	if report.Earliest == nil || d.Before(*report.Earliest) {
		v := d
		report.Earliest = &v
	}
	if report.Latest == nil || d.After(*report.Latest) {
		v := d
		report.Latest = &v
	}
}

func (p *DateParser) sample(values []string) []string {
	out := make([]string, 0, p.SampleSize)
	for _, v := range values {
		if v == "" {
			continue
		}
		out = append(out, v)
		if len(out) == p.SampleSize {
			break
		}
	}
	return out
}

func allParse(sample []string, layout string) bool {
	if len(sample) == 0 {
		return false
	}
	for _, s := range sample {
		if parseLayout(s, layout) == nil {
			return false
		}
	}
	return true
}

func parseAll(values []string, parse func(string) *time.Time) []*time.Time {
	out := make([]*time.Time, len(values))
	for i, v := range values {
		if v == "" {
			continue
		}
		out[i] = parse(v)
	}
	return out
}

func successRate(parsed []*time.Time, values []string) float64 {
	if len(values) == 0 {
		return 0
	}
	ok := 0
	for _, d := range parsed {
		if d != nil {
			ok++
		}
	}
	return float64(ok) / float64(len(values))
}

func parseLayout(s, layout string) *time.Time {
	t, err := time.Parse(layout, s)
	if err != nil {
		return nil
	}
	return calendarDate(t)
}

func parseDayFirst(s string) *time.Time {
	t, err := dateparse.ParseIn(s, time.UTC,
		dateparse.PreferMonthFirst(false),
		dateparse.RetryAmbiguousDateWithSwap(true))
	if err != nil {
		return nil
	}
	return calendarDate(t)
}

func parseMonthFirst(s string) *time.Time {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	return calendarDate(t)
}

// calendarDate drops the time of day and location.
func calendarDate(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
