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

// BackfillOptions locates the merged dataset, the fill sources and the output
type BackfillOptions struct {
	MergedFile   string
	ReportFile   string // reviewed candidate report, optional
	TemplateFile string // hand-filled template, optional
	OutputPath   string // defaults to MergedFile
	Extra        []match.Fill
}

// BackfillReport is the outcome of a backfill run
type BackfillReport struct {
	RunID      uuid.UUID
	Stats      match.BackfillStats
	Coverage   match.CoverageStats
	OutputPath string
}

// Backfill folds reviewed xG values into a merged dataset. Hand-filled template rows
// are applied before report candidates, so they win when both target a row.
func (r *Runner) Backfill(ctx context.Context, localDebug bool, opts BackfillOptions) (*BackfillReport, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	records, err := import_pkg.ReadMerged(localDebug, opts.MergedFile,
		import_pkg.MergedReadOptions{ZeroAsMissing: r.Policy.Output.SentinelZero})
	if err != nil {
		return nil, errors.Wrap(err, "read merged dataset")
	}

	var fills []match.Fill
	if opts.TemplateFile != "" {
		_, manual, err := import_pkg.ReadTemplate(localDebug, opts.TemplateFile)
		if err != nil {
			return nil, errors.Wrap(err, "read template")
		}
		fills = append(fills, manual...)
	}
	if opts.ReportFile != "" {
		found, err := import_pkg.ReadCandidateReport(localDebug, opts.ReportFile)
		if err != nil {
			return nil, errors.Wrap(err, "read candidate report")
		}
		fills = append(fills, found...)
	}
	fills = append(fills, opts.Extra...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &BackfillReport{
		Stats: match.Backfill(localDebug, records, fills, r.Policy.Backfill.MinConfidence),
	}
	report.Coverage = match.Coverage(records)

	debug.Logger().WithFields(logrus.Fields{
		"fills":          report.Stats.Fills,
		"applied":        report.Stats.Applied,
		"already_has_xg": report.Stats.AlreadyHasXG,
		"low_confidence": report.Stats.LowConfidence,
		"unknown_index":  report.Stats.UnknownIndex,
		"missing_before": report.Stats.MissingBefore,
		"missing_after":  report.Stats.MissingAfter,
	}).Info("Backfill finished")
	LogCoverage(report.Coverage)

	report.OutputPath = opts.OutputPath
	if report.OutputPath == "" {
		report.OutputPath = opts.MergedFile
	}
	if err := export.WriteMerged(report.OutputPath, records,
		export.MergedOptions{SentinelZero: r.Policy.Output.SentinelZero}); err != nil {
		return nil, errors.Wrap(err, "write merged dataset")
	}

	if r.Store != nil {
		id, err := r.persistBackfill(ctx, localDebug, opts, report.Coverage)
		if err != nil {
			return nil, err
		}
		report.RunID = id
	}
	return report, nil
}

// persistBackfill records the run with the coverage after filling. Merged rows are
// not stored again; the merge run keeps them.
func (r *Runner) persistBackfill(ctx context.Context, localDebug bool, opts BackfillOptions, coverage match.CoverageStats) (uuid.UUID, error) {
	source := opts.ReportFile
	if source == "" {
		source = opts.TemplateFile
	}
	id, err := r.Store.StartRun(ctx, localDebug, audit.KindBackfill, opts.MergedFile, source, r.Policy)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "start backfill run")
	}
	if err := r.Store.FinishRun(ctx, localDebug, id, coverage); err != nil {
		return uuid.Nil, errors.Wrap(err, "finish backfill run")
	}
	debug.Logger().WithField("run_id", id).Info("Stored backfill run")
	return id, nil
}
