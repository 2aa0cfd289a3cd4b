package pipeline

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/epl-xg-merge/internal/audit"
	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/export"
	import_pkg "github.com/epl-xg-merge/internal/import"
	"github.com/epl-xg-merge/internal/match"
)

// SearchOptions locates the template, the xG source and the report to write
type SearchOptions struct {
	TemplateFile  string
	UnderstatFile string
	ReportPath    string // empty skips writing the report
}

// ConfidenceDistribution counts findings per confidence bucket
type ConfidenceDistribution struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// SearchReport is the outcome of a candidate search
type SearchReport struct {
	RunID        uuid.UUID
	Queries      int
	Findings     []match.Finding
	NotFound     []match.Query
	Distribution ConfidenceDistribution
	Switched     []match.Finding // first few findings with a suspected team switch
	ReportPath   string
}

// Search runs the fuzzy search for every template row and keeps the best candidate
// per row.
func (r *Runner) Search(ctx context.Context, localDebug bool, opts SearchOptions) (*SearchReport, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)
	defer debug.DebugTiming(localDebug, "search run")()

	queries, _, err := import_pkg.ReadTemplate(localDebug, opts.TemplateFile)
	if err != nil {
		return nil, errors.Wrap(err, "read template")
	}

	rows, _, err := r.understatLoader().Load(localDebug, opts.UnderstatFile)
	if err != nil {
		return nil, errors.Wrap(err, "load understat data")
	}

	report, err := r.SearchQueries(localDebug, queries, match.NewStatPool(rows))
	if err != nil {
		return nil, err
	}

	if opts.ReportPath != "" {
		if err := export.WriteCandidateReport(opts.ReportPath, report.Findings); err != nil {
			return nil, errors.Wrap(err, "write candidate report")
		}
		report.ReportPath = opts.ReportPath
		debug.Logger().WithField("path", opts.ReportPath).Info("Wrote candidate report")
	}

	if r.Store != nil {
		id, err := r.persistSearch(ctx, localDebug, opts, report)
		if err != nil {
			return nil, err
		}
		report.RunID = id
	}

	return report, nil
}

// SearchQueries searches an in-memory pool and summarises the best candidates.
func (r *Runner) SearchQueries(localDebug bool, queries []match.Query, pool *match.StatPool) (*SearchReport, error) {
	results, err := r.Engine().SearchAll(localDebug, queries, pool)
	if err != nil {
		return nil, errors.Wrap(err, "search candidates")
	}

	report := &SearchReport{Queries: len(queries)}
	for i, candidates := range results {
		if len(candidates) == 0 {
			report.NotFound = append(report.NotFound, queries[i])
			continue
		}
		f := match.Finding{Query: queries[i], Candidate: candidates[0]}
		report.Findings = append(report.Findings, f)

		switch ConfidenceBucket(f.Candidate.Confidence) {
		case "high":
			report.Distribution.High++
		case "medium":
			report.Distribution.Medium++
		default:
			report.Distribution.Low++
		}
		if f.Candidate.TeamSwitchSuspected && len(report.Switched) < maxSwitchExamples {
			report.Switched = append(report.Switched, f)
		}
	}

	LogSearch(report)
	return report, nil
}

func (r *Runner) persistSearch(ctx context.Context, localDebug bool, opts SearchOptions, report *SearchReport) (uuid.UUID, error) {
	id, err := r.Store.StartRun(ctx, localDebug, audit.KindSearch, opts.TemplateFile, opts.UnderstatFile, r.Policy)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "start search run")
	}
	if err := r.Store.SaveCandidates(ctx, localDebug, id, report.Findings); err != nil {
		return uuid.Nil, errors.Wrap(err, "save candidates")
	}
	stats := match.CoverageStats{Total: report.Queries, Matched: len(report.Findings)}
	if stats.Total > 0 {
		stats.CoverageRate = float64(stats.Matched) / float64(stats.Total)
	}
	if err := r.Store.FinishRun(ctx, localDebug, id, stats); err != nil {
		return uuid.Nil, errors.Wrap(err, "finish search run")
	}
	return id, nil
}

// LogSearch writes the search summary and the switched-team examples
func LogSearch(report *SearchReport) {
	log := debug.Logger()
	log.WithFields(logrus.Fields{
		"searched":  report.Queries,
		"found":     len(report.Findings),
		"not_found": len(report.NotFound),
		"high":      report.Distribution.High,
		"medium":    report.Distribution.Medium,
		"low":       report.Distribution.Low,
	}).Info("Candidate search finished")

	for _, f := range report.Switched {
		log.WithFields(logrus.Fields{
			"index":      f.Query.Index,
			"expected":   f.Query.AwayTeam,
			"found":      f.Candidate.Fixture.AwayTeam,
			"confidence": f.Candidate.Confidence,
		}).Info("Away team switch suspected")
	}
}
