package pipeline

import (
	"context"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/epl-xg-merge/internal/audit"
	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/export"
	import_pkg "github.com/epl-xg-merge/internal/import"
	"github.com/epl-xg-merge/internal/match"
)

// MergeOptions locates the inputs and outputs of a merge run
type MergeOptions struct {
	OddsDir       string
	UnderstatFile string
	OutputDir     string // empty skips writing files
	WriteTemplate bool
}

// MergeReport is everything a merge run produced
type MergeReport struct {
	RunID        uuid.UUID
	Odds         *import_pkg.OddsResult
	Understat    import_pkg.UnderstatSummary
	StatRows     []match.TeamStatRow
	Pairing      match.PairingStats
	IndexKeys    int
	Result       match.MergeResult
	MergedPath   string
	TemplatePath string
}

// Merge loads both sources, pairs and indexes the xG rows, merges, and writes the
// merged dataset. Coverage is always logged.
func (r *Runner) Merge(ctx context.Context, localDebug bool, opts MergeOptions) (*MergeReport, error) {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)
	defer debug.DebugTiming(localDebug, "merge run")()

	log := debug.Logger()
	report := &MergeReport{}

	// Step 1: Load the odds files
	odds, err := r.oddsLoader().LoadFolder(localDebug, opts.OddsDir)
	if err != nil {
		return nil, errors.Wrap(err, "load odds data")
	}
	report.Odds = odds

	// Step 2: Load the Understat rows
	rows, summary, err := r.understatLoader().Load(localDebug, opts.UnderstatFile)
	if err != nil {
		return nil, errors.Wrap(err, "load understat data")
	}
	report.StatRows, report.Understat = rows, summary

	// Step 3: Pair home and away rows into fixtures
	paired := match.Pair(localDebug, rows, r.Policy.PairingPolicy())
	report.Pairing = paired.Stats
	log.WithFields(logrus.Fields{
		"fixtures":  paired.Stats.Paired,
		"unpaired":  paired.Stats.Unpaired,
		"ambiguous": paired.Stats.Ambiguous,
	}).Info("Paired Understat rows")

	// Step 4: Index fixtures under exact and adjacent-day keys
	index := match.NewIndex(localDebug, r.Teams, paired.Fixtures)
	report.IndexKeys = index.Len()

	// Step 5: Exact-key merge
	report.Result = match.Merge(localDebug, odds.Records, index)
	LogCoverage(report.Result.Stats)

	// Step 6: Outputs
	if opts.OutputDir != "" {
		report.MergedPath = filepath.Join(opts.OutputDir, export.MergedFileName)
		if err := export.WriteMerged(report.MergedPath, report.Result.Records,
			export.MergedOptions{SentinelZero: r.Policy.Output.SentinelZero}); err != nil {
			return nil, errors.Wrap(err, "write merged dataset")
		}
		log.WithField("path", report.MergedPath).Info("Wrote merged dataset")

		if opts.WriteTemplate {
			report.TemplatePath = filepath.Join(opts.OutputDir, export.TemplateFileName)
			if err := export.WriteTemplate(report.TemplatePath, report.Result.Unmatched); err != nil {
				return nil, errors.Wrap(err, "write manual template")
			}
			log.WithField("path", report.TemplatePath).Info("Wrote manual collection template")
		}
	}

	// Step 7: Persist
	if r.Store != nil {
		id, err := r.persistMerge(ctx, localDebug, opts, report.Result)
		if err != nil {
			return nil, err
		}
		report.RunID = id
	}

	return report, nil
}

func (r *Runner) persistMerge(ctx context.Context, localDebug bool, opts MergeOptions, result match.MergeResult) (uuid.UUID, error) {
	id, err := r.Store.StartRun(ctx, localDebug, audit.KindMerge, opts.OddsDir, opts.UnderstatFile, r.Policy)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "start merge run")
	}
	if err := r.Store.SaveMergedRows(ctx, localDebug, id, result.Records); err != nil {
		return uuid.Nil, errors.Wrap(err, "save merged rows")
	}
	if err := r.Store.FinishRun(ctx, localDebug, id, result.Stats); err != nil {
		return uuid.Nil, errors.Wrap(err, "finish merge run")
	}
	debug.Logger().WithField("run_id", id).Info("Stored merge run")
	return id, nil
}

// LogCoverage writes the overall and per-year coverage
func LogCoverage(stats match.CoverageStats) {
	log := debug.Logger()
	log.WithFields(logrus.Fields{
		"total":    stats.Total,
		"matched":  stats.Matched,
		"missing":  stats.Total - stats.Matched,
		"coverage": stats.CoverageRate,
	}).Info("xG coverage")

	for _, y := range stats.ByYear {
		log.WithFields(logrus.Fields{
			"year":     y.Year,
			"total":    y.Total,
			"matched":  y.Matched,
			"coverage": y.CoverageRate,
		}).Info("xG coverage by year")
	}
}
