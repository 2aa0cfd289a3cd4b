package pipeline

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/export"
	import_pkg "github.com/epl-xg-merge/internal/import"
	"github.com/epl-xg-merge/internal/match"
)

// MissingOptions locates the merged dataset and the template to write
type MissingOptions struct {
	MergedFile   string
	TemplatePath string
}

// MissingReport describes the rows that still lack xG
type MissingReport struct {
	Coverage     match.CoverageStats
	Missing      []match.MergedRecord
	MissingYears []match.YearCoverage // Total is the number of missing rows that year
	TemplatePath string
}

// Missing reads a merged dataset, lists the rows without xG and writes the manual
// collection template for them.
func (r *Runner) Missing(ctx context.Context, localDebug bool, opts MissingOptions) (*MissingReport, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	records, err := import_pkg.ReadMerged(localDebug, opts.MergedFile,
		import_pkg.MergedReadOptions{ZeroAsMissing: r.Policy.Output.SentinelZero})
	if err != nil {
		return nil, errors.Wrap(err, "read merged dataset")
	}

	report := &MissingReport{Coverage: match.Coverage(records), TemplatePath: opts.TemplatePath}
	for _, rec := range records {
		if !rec.Matched {
			report.Missing = append(report.Missing, rec)
		}
	}
	report.MissingYears = match.Coverage(report.Missing).ByYear

	LogCoverage(report.Coverage)
	for _, y := range report.MissingYears {
		debug.Logger().WithField("year", y.Year).WithField("missing", y.Total).Info("Missing xG by year")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.TemplatePath != "" {
		if err := export.WriteTemplate(opts.TemplatePath, report.Missing); err != nil {
			return nil, errors.Wrap(err, "write manual template")
		}
		debug.Logger().WithField("path", opts.TemplatePath).WithField("rows", len(report.Missing)).
			Info("Wrote manual collection template")
	}
	return report, nil
}
