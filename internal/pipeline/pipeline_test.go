package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epl-xg-merge/internal/config"
	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/export"
	import_pkg "github.com/epl-xg-merge/internal/import"
	"github.com/epl-xg-merge/internal/match"
)

const oddsCSV = `Date,HomeTeam,AwayTeam,FTHG,FTAG,FTR,B365H,B365D,B365A
10/08/2019,Burnley,Southampton,3,0,H,2.4,3.2,3.1
10/08/2019,Man City,West Ham,5,0,H,1.12,9.0,21.0
17/08/2019,Arsenal,Burnley,2,1,H,1.5,4.4,6.5
18/08/2019,Leicester,Chelsea,1,1,D,2.9,3.4,2.5
`

const understatCSV = `date,team,h_a,scored,missed,xG,xGA,npxG,xpts,league,year
2019-08-10 00:00:00,Burnley,h,3,0,0.911,0.61,0.91,1.714,EPL,2019
2019-08-10 00:00:00,Southampton,a,0,3,0.61,0.911,0.61,0.93,EPL,2019
2019-08-11 00:00:00,Manchester City,h,5,0,3.14,0.2,2.4,2.87,EPL,2019
2019-08-11 00:00:00,West Ham,a,0,5,0.2,3.14,0.2,0.1,EPL,2019
2019-08-18 00:00:00,Leicester,h,1,1,2.1,0.8,1.3,2.0,EPL,2019
2019-08-18 00:00:00,Chelsea FC,a,1,1,0.8,2.1,0.8,0.7,EPL,2019
2019-08-18 00:00:00,Bayern Munich,h,2,2,3.1,0.5,2.3,2.7,Bundesliga,2019
`

type fakeStore struct {
	started    []string
	merged     int
	candidates int
	finished   []match.CoverageStats
}

func (s *fakeStore) StartRun(ctx context.Context, localDebug bool, kind, oddsSource, xgSource string, policy any) (uuid.UUID, error) {
	s.started = append(s.started, kind)
	return uuid.New(), nil
}

func (s *fakeStore) FinishRun(ctx context.Context, localDebug bool, runID uuid.UUID, stats match.CoverageStats) error {
	s.finished = append(s.finished, stats)
	return nil
}

func (s *fakeStore) SaveMergedRows(ctx context.Context, localDebug bool, runID uuid.UUID, records []match.MergedRecord) error {
	s.merged += len(records)
	return nil
}

func (s *fakeStore) SaveCandidates(ctx context.Context, localDebug bool, runID uuid.UUID, findings []match.Finding) error {
	s.candidates += len(findings)
	return nil
}

func setup(t *testing.T) (oddsDir, understat, outDir string) {
	t.Helper()
	root := t.TempDir()
	oddsDir = filepath.Join(root, "odds")
	require.NoError(t, os.MkdirAll(oddsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(oddsDir, "2019-2020.csv"), []byte(oddsCSV), 0644))
	understat = filepath.Join(root, "understat.csv")
	require.NoError(t, os.WriteFile(understat, []byte(understatCSV), 0644))
	return oddsDir, understat, filepath.Join(root, "out")
}

func TestRunnerEndToEnd(t *testing.T) {
	ctx := context.Background()
	oddsDir, understat, outDir := setup(t)
	store := &fakeStore{}
	runner := NewRunner(nil, nil, store)

	merged, err := runner.Merge(ctx, false, MergeOptions{
		OddsDir:       oddsDir,
		UnderstatFile: understat,
		OutputDir:     outDir,
		WriteTemplate: true,
	})
	require.NoError(t, err)

	stats := merged.Result.Stats
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 0.5, stats.CoverageRate)
	assert.Equal(t, 3, merged.Pairing.Paired)
	require.Len(t, merged.Result.Unmatched, 2)
	assert.Equal(t, 3, merged.Result.Unmatched[0].Index)
	assert.Equal(t, 4, merged.Result.Unmatched[1].Index)
	assert.NotEqual(t, uuid.Nil, merged.RunID)
	assert.Equal(t, 4, store.merged)

	// rounded xG on the exact date, adjacent-day fixture for Man City
	burnley := merged.Result.Records[0]
	require.True(t, burnley.Matched)
	assert.Equal(t, 0.91, *burnley.HomeXG)
	assert.Equal(t, 1.71, *burnley.HomeXPts)
	assert.True(t, merged.Result.Records[1].Matched)

	// missing run on the written dataset
	templatePath := filepath.Join(outDir, "again", export.TemplateFileName)
	missing, err := runner.Missing(ctx, false, MissingOptions{MergedFile: merged.MergedPath, TemplatePath: templatePath})
	require.NoError(t, err)
	assert.Len(t, missing.Missing, 2)
	require.Len(t, missing.MissingYears, 1)
	assert.Equal(t, 2019, missing.MissingYears[0].Year)
	assert.Equal(t, 2, missing.MissingYears[0].Total)

	// search over the template
	reportPath := filepath.Join(outDir, export.ReportFileName)
	search, err := runner.Search(ctx, false, SearchOptions{
		TemplateFile:  merged.TemplatePath,
		UnderstatFile: understat,
		ReportPath:    reportPath,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, search.Queries)
	require.Len(t, search.Findings, 1)
	require.Len(t, search.NotFound, 1)
	assert.Equal(t, "Arsenal", search.NotFound[0].HomeTeam)

	found := search.Findings[0]
	assert.Equal(t, 4, found.Query.Index)
	assert.Equal(t, "Chelsea FC", found.Candidate.Fixture.AwayTeam)
	assert.InDelta(t, 1.0, found.Candidate.Confidence, 1e-9)
	assert.Equal(t, 1, search.Distribution.High)
	assert.Equal(t, 1, store.candidates)

	// backfill from the report
	backfill, err := runner.Backfill(ctx, false, BackfillOptions{
		MergedFile: merged.MergedPath,
		ReportFile: reportPath,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, backfill.Stats.Applied)
	assert.Equal(t, 2, backfill.Stats.MissingBefore)
	assert.Equal(t, 1, backfill.Stats.MissingAfter)
	assert.Equal(t, 3, backfill.Coverage.Matched)
	assert.NotEqual(t, uuid.Nil, backfill.RunID)
	require.Len(t, store.finished, 3)
	assert.Equal(t, 3, store.finished[2].Matched)

	records, err := import_pkg.ReadMerged(false, merged.MergedPath, import_pkg.MergedReadOptions{})
	require.NoError(t, err)
	require.True(t, records[3].Matched)
	assert.Equal(t, 2.1, *records[3].HomeXG)

	assert.Equal(t, []string{"merge", "search", "backfill"}, store.started)
}

func TestRunnerMergeSourceErrors(t *testing.T) {
	oddsDir, _, outDir := setup(t)
	runner := NewRunner(nil, nil, nil)

	_, err := runner.Merge(context.Background(), false, MergeOptions{
		OddsDir:       oddsDir,
		UnderstatFile: filepath.Join(outDir, "nope.csv"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, import_pkg.ErrSourceNotFound))
}

func TestSentinelZeroRoundTrip(t *testing.T) {
	ctx := context.Background()
	oddsDir, understat, outDir := setup(t)
	policy := config.DefaultPolicy()
	policy.Output.SentinelZero = true
	runner := NewRunner(policy, nil, nil)

	merged, err := runner.Merge(ctx, false, MergeOptions{OddsDir: oddsDir, UnderstatFile: understat, OutputDir: outDir})
	require.NoError(t, err)

	missing, err := runner.Missing(ctx, false, MissingOptions{MergedFile: merged.MergedPath})
	require.NoError(t, err)
	assert.Len(t, missing.Missing, 2)
}

func TestLogCoverageReportsEveryYear(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	prev := debug.Logger()
	debug.SetLogger(logger)
	defer debug.SetLogger(prev)

	LogCoverage(match.CoverageStats{
		Total:        3,
		Matched:      1,
		CoverageRate: 1.0 / 3.0,
		ByYear: []match.YearCoverage{
			{Year: 2019, Total: 2, Matched: 1, CoverageRate: 0.5},
			{Year: 2020, Total: 1, Matched: 0, CoverageRate: 0},
		},
	})

	entries := hook.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "xG coverage", entries[0].Message)
	assert.Equal(t, 2, entries[0].Data["missing"])
	assert.Equal(t, 2019, entries[1].Data["year"])
	assert.Equal(t, 2020, entries[2].Data["year"])
	assert.Equal(t, 0, entries[2].Data["matched"])
}

func TestConfidenceBucket(t *testing.T) {
	assert.Equal(t, "high", ConfidenceBucket(0.81))
	assert.Equal(t, "medium", ConfidenceBucket(0.8))
	assert.Equal(t, "medium", ConfidenceBucket(0.61))
	assert.Equal(t, "low", ConfidenceBucket(0.6))
}
