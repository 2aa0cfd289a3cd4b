package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/epl-xg-merge/internal/audit"
	"github.com/epl-xg-merge/internal/config"
	"github.com/epl-xg-merge/internal/db"
	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/export"
	"github.com/epl-xg-merge/internal/pipeline"
	"github.com/epl-xg-merge/internal/web"
	"github.com/epl-xg-merge/internal/web/handlers"
)

var (
	localDebug bool
	policyFile string
	persist    bool
	dsn        string
)

func main() {
	if err := config.LoadEnv(); err != nil {
		debug.Logger().WithError(err).Warn("Could not load .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create root command
	rootCmd := &cobra.Command{
		Use:           "xgmerge",
		Short:         "Football odds and Understat xG record linkage",
		Long:          `Merges match result and odds CSVs with Understat expected-goals data, reports coverage, and searches candidates for the rows that did not link`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if localDebug {
				debug.Logger().SetLevel(logrus.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&localDebug, "debug", config.GetEnvBool("DEBUG", false), "Enable debug tracing")
	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", config.GetEnv("POLICY_FILE", ""), "YAML file with matching policy overrides")
	rootCmd.PersistentFlags().BoolVar(&persist, "persist", config.GetEnvBool("PERSIST", false), "Store runs in Postgres")
	rootCmd.PersistentFlags().StringVar(&dsn, "database-url", db.DSNFromEnv(), "Postgres connection string")

	// Add subcommands
	rootCmd.AddCommand(createMergeCmd())
	rootCmd.AddCommand(createMissingCmd())
	rootCmd.AddCommand(createSearchCmd())
	rootCmd.AddCommand(createBackfillCmd())
	rootCmd.AddCommand(createMigrateCmd())
	rootCmd.AddCommand(createServeCmd())

	// Execute root command
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		debug.Logger().WithError(err).Error("Command failed")
		if localDebug {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		}
		os.Exit(1)
	}
}

// newRunner loads the policy and, with --persist, opens the run store. The returned
// cleanup closes the database connection.
func newRunner(ctx context.Context) (*pipeline.Runner, *audit.Tracker, func(), error) {
	policy, err := config.LoadPolicy(policyFile)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "load policy")
	}

	if !persist {
		return pipeline.NewRunner(policy, nil, nil), nil, func() {}, nil
	}

	conn, err := db.Open(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := conn.Close(); err != nil {
			debug.Logger().WithError(err).Warn("Closing database")
		}
	}
	tracker := audit.NewTracker(conn.DB)
	return pipeline.NewRunner(policy, nil, tracker), tracker, cleanup, nil
}

func createMergeCmd() *cobra.Command {
	var oddsDir, understatFile, outputDir string
	var noTemplate bool

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge odds files with Understat xG",
		Long:  `Load every odds CSV in a folder, pair the Understat home and away rows, link them by date and team names, and write the merged dataset`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, cleanup, err := newRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := runner.Merge(cmd.Context(), localDebug, pipeline.MergeOptions{
				OddsDir:       oddsDir,
				UnderstatFile: understatFile,
				OutputDir:     outputDir,
				WriteTemplate: !noTemplate,
			})
			if err != nil {
				return err
			}

			stats := report.Result.Stats
			fmt.Printf("\n=== Merge Results ===\n")
			if report.RunID != uuid.Nil {
				fmt.Printf("Run ID: %s\n", report.RunID)
			}
			fmt.Printf("Odds files: %d\n", len(report.Odds.Files))
			fmt.Printf("Understat rows: %d (fixtures %d, unpaired %d)\n",
				len(report.StatRows), report.Pairing.Paired, report.Pairing.Unpaired)
			fmt.Printf("Matches: %d\n", stats.Total)
			fmt.Printf("With xG: %d\n", stats.Matched)
			fmt.Printf("Coverage: %.1f%%\n", stats.CoverageRate*100)
			for _, y := range stats.ByYear {
				fmt.Printf("  %d: %d/%d (%.1f%%)\n", y.Year, y.Matched, y.Total, y.CoverageRate*100)
			}
			fmt.Printf("Merged dataset: %s\n", report.MergedPath)
			if report.TemplatePath != "" {
				fmt.Printf("Manual template: %s\n", report.TemplatePath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&oddsDir, "odds-dir", config.GetEnv("ODDS_DIR", "data/odds"), "Folder of odds CSV files")
	cmd.Flags().StringVar(&understatFile, "understat", config.GetEnv("UNDERSTAT_FILE", "data/understat.csv"), "Understat team-match CSV")
	cmd.Flags().StringVar(&outputDir, "output-dir", config.GetEnv("OUTPUT_DIR", "output"), "Folder for the merged dataset and template")
	cmd.Flags().BoolVar(&noTemplate, "no-template", false, "Do not write the manual collection template")

	return cmd
}

func createMissingCmd() *cobra.Command {
	var mergedFile, templatePath string

	cmd := &cobra.Command{
		Use:   "missing",
		Short: "List matches without xG and write the manual template",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, cleanup, err := newRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := runner.Missing(cmd.Context(), localDebug, pipeline.MissingOptions{
				MergedFile:   mergedFile,
				TemplatePath: templatePath,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Missing xG ===\n")
			fmt.Printf("Matches: %d\n", report.Coverage.Total)
			fmt.Printf("Missing: %d\n", len(report.Missing))
			for _, y := range report.MissingYears {
				fmt.Printf("  %d: %d\n", y.Year, y.Total)
			}
			if report.TemplatePath != "" {
				fmt.Printf("Manual template: %s\n", report.TemplatePath)
			}
			return nil
		},
	}

	outputDir := config.GetEnv("OUTPUT_DIR", "output")
	cmd.Flags().StringVar(&mergedFile, "merged", filepath.Join(outputDir, export.MergedFileName), "Merged dataset")
	cmd.Flags().StringVar(&templatePath, "template", filepath.Join(outputDir, export.TemplateFileName), "Template to write, empty to skip")

	return cmd
}

func createSearchCmd() *cobra.Command {
	var templateFile, understatFile, reportPath string

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search Understat candidates for the template rows",
		Long:  `Fuzzy-search the Understat rows on each template row's date, score the candidates, and write the best one per row to the candidate report`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, _, cleanup, err := newRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := runner.Search(cmd.Context(), localDebug, pipeline.SearchOptions{
				TemplateFile:  templateFile,
				UnderstatFile: understatFile,
				ReportPath:    reportPath,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Candidate Search ===\n")
			fmt.Printf("Searched: %d\n", report.Queries)
			fmt.Printf("Found: %d\n", len(report.Findings))
			fmt.Printf("Not found: %d\n", len(report.NotFound))
			fmt.Printf("Confidence high/medium/low: %d/%d/%d\n",
				report.Distribution.High, report.Distribution.Medium, report.Distribution.Low)
			for _, f := range report.Switched {
				fmt.Printf("  switch? #%d %s vs %s -> %s vs %s (%.2f)\n", f.Query.Index,
					f.Query.HomeTeam, f.Query.AwayTeam,
					f.Candidate.Fixture.HomeTeam, f.Candidate.Fixture.AwayTeam, f.Candidate.Confidence)
			}
			if report.ReportPath != "" {
				fmt.Printf("Report: %s\n", report.ReportPath)
			}
			return nil
		},
	}

	outputDir := config.GetEnv("OUTPUT_DIR", "output")
	cmd.Flags().StringVar(&templateFile, "template", filepath.Join(outputDir, export.TemplateFileName), "Manual collection template")
	cmd.Flags().StringVar(&understatFile, "understat", config.GetEnv("UNDERSTAT_FILE", "data/understat.csv"), "Understat team-match CSV")
	cmd.Flags().StringVar(&reportPath, "report", filepath.Join(outputDir, export.ReportFileName), "Candidate report to write, empty to skip")

	return cmd
}

func createBackfillCmd() *cobra.Command {
	var mergedFile, reportFile, templateFile, outputPath string
	var fromReview bool

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Fold reviewed xG values into the merged dataset",
		Long:  `Fill missing xG in the merged dataset from a hand-filled template, a candidate report, or candidates accepted through the review API`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromReview && !persist {
				return errors.New("--from-review needs --persist")
			}

			runner, tracker, cleanup, err := newRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			opts := pipeline.BackfillOptions{
				MergedFile:   mergedFile,
				ReportFile:   reportFile,
				TemplateFile: templateFile,
				OutputPath:   outputPath,
			}
			if fromReview {
				run, ok, err := tracker.LatestRun(cmd.Context(), audit.KindSearch)
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("no stored search run to take accepted candidates from")
				}
				if opts.Extra, err = tracker.AcceptedFills(cmd.Context(), run.ID); err != nil {
					return err
				}
				debug.Logger().WithField("run_id", run.ID).WithField("accepted", len(opts.Extra)).
					Info("Using reviewed candidates")
			}

			report, err := runner.Backfill(cmd.Context(), localDebug, opts)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Backfill ===\n")
			fmt.Printf("Fills offered: %d\n", report.Stats.Fills)
			fmt.Printf("Applied: %d\n", report.Stats.Applied)
			fmt.Printf("Skipped (already had xG): %d\n", report.Stats.AlreadyHasXG)
			fmt.Printf("Skipped (low confidence): %d\n", report.Stats.LowConfidence)
			fmt.Printf("Skipped (unknown index): %d\n", report.Stats.UnknownIndex)
			fmt.Printf("Missing before/after: %d/%d\n", report.Stats.MissingBefore, report.Stats.MissingAfter)
			fmt.Printf("Coverage: %.1f%%\n", report.Coverage.CoverageRate*100)
			fmt.Printf("Written: %s\n", report.OutputPath)
			return nil
		},
	}

	outputDir := config.GetEnv("OUTPUT_DIR", "output")
	cmd.Flags().StringVar(&mergedFile, "merged", filepath.Join(outputDir, export.MergedFileName), "Merged dataset")
	cmd.Flags().StringVar(&reportFile, "report", "", "Reviewed candidate report")
	cmd.Flags().StringVar(&templateFile, "template", "", "Hand-filled manual template")
	cmd.Flags().StringVar(&outputPath, "output", "", "Where to write the result (defaults to --merged)")
	cmd.Flags().BoolVar(&fromReview, "from-review", false, "Also apply candidates accepted in the latest stored search run")

	return cmd
}

func createMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run store schema",
	}

	withMigrator := func(cmd *cobra.Command, fn func(*db.Migrator) (db.MigrationStatus, error)) error {
		conn, err := db.Open(cmd.Context(), dsn)
		if err != nil {
			return err
		}
		migrator, err := db.NewMigrator(conn)
		if err != nil {
			_ = conn.Close()
			return err
		}
		defer migrator.Close()

		status, err := fn(migrator)
		if err != nil {
			return err
		}
		fmt.Printf("Schema version: %d (dirty=%t, changed=%t)\n", status.Version, status.Dirty, status.Changed)
		return nil
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *db.Migrator) (db.MigrationStatus, error) {
				return m.Down(localDebug, steps)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *db.Migrator) (db.MigrationStatus, error) {
				return m.Up(localDebug)
			})
		},
	})
	migrateCmd.AddCommand(down)
	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *db.Migrator) (db.MigrationStatus, error) {
				return m.Version()
			})
		},
	})

	return migrateCmd
}

func createServeCmd() *cobra.Command {
	var oddsDir, understatFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Merge in memory and serve the review API",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, tracker, cleanup, err := newRunner(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := runner.Merge(cmd.Context(), localDebug, pipeline.MergeOptions{
				OddsDir:       oddsDir,
				UnderstatFile: understatFile,
			})
			if err != nil {
				return err
			}

			var store handlers.ReviewStore
			if tracker != nil {
				store = tracker
			}
			server := web.NewServer(web.ConfigFromEnv(), handlers.NewState(runner, report), store)
			return server.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&oddsDir, "odds-dir", config.GetEnv("ODDS_DIR", "data/odds"), "Folder of odds CSV files")
	cmd.Flags().StringVar(&understatFile, "understat", config.GetEnv("UNDERSTAT_FILE", "data/understat.csv"), "Understat team-match CSV")

	return cmd
}
