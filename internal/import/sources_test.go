package import_pkg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epl-xg-merge/internal/match"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFolder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2015-2016.csv",
		"Div,Date,HomeTeam,AwayTeam,FTHG,FTAG,FTR,HS,AS,HST,AST,B365H,B365D,B365A,BbAvH,BbAvD,BbAvA,BbAv>2.5,BbAv<2.5\n"+
			"E0,08/08/15,Bournemouth,Aston Villa,0,1,A,11,7,2,3,2.0,3.6,4.0,1.95,3.5,4.1,\"2,05\",1.8\n"+
			"E0,08/08/15,Manchester United,Tottenham,1,0,H,9,9,1,4,1.65,4.0,6.0,1.6,3.9,5.8,2.1,1.75\n"+
			"E0,,Chelsea,Swansea,2,2,D,,,,,,,,,,,,\n")
	writeFile(t, dir, "2019-2020.csv",
		"Date,HomeTeam,AwayTeam,FTHG,FTAG,AvgH,AvgD,AvgA,Avg>2.5,Avg<2.5\n"+
			"09/08/2019,Liverpool,Norwich,4,1,1.14,9.5,20,1.4,3.0\n")
	writeFile(t, dir, "broken.csv", "Div,HomeTeam,AwayTeam\nE0,A,B\n")
	writeFile(t, dir, "empty.csv", "")

	loader := NewOddsLoader()
	result, err := loader.LoadFolder(false, dir)
	require.NoError(t, err)
	require.Len(t, result.Records, 3)
	require.Len(t, result.Files, 4)

	first := result.Records[0]
	assert.Equal(t, time.Date(2015, 8, 8, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "2015-2016", first.Season)
	assert.Equal(t, "Bournemouth", first.HomeTeam)
	assert.Equal(t, "A", first.Result)
	require.NotNil(t, first.AvgOver25)
	assert.InDelta(t, 2.05, *first.AvgOver25, 1e-9)
	require.NotNil(t, first.HomeShots)
	assert.Equal(t, 11.0, *first.HomeShots)

	second := result.Records[1]
	assert.Equal(t, "Man United", second.HomeTeam)

	// FTR derived and Avg* columns recognised
	last := result.Records[2]
	assert.Equal(t, time.Date(2019, 8, 9, 0, 0, 0, 0, time.UTC), last.Date)
	assert.Equal(t, "H", last.Result)
	require.NotNil(t, last.AvgHome)
	assert.InDelta(t, 1.14, *last.AvgHome, 1e-9)
	assert.Nil(t, last.B365Home)

	assert.Equal(t, 1, result.Files[0].BadDates)
	assert.Contains(t, result.Files[2].Skipped, "Date")
	assert.NotEmpty(t, result.Files[3].Skipped)
}

func TestLoadFolderErrors(t *testing.T) {
	_, err := NewOddsLoader().LoadFolder(false, filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, ErrSourceNotFound))

	empty := t.TempDir()
	_, err = NewOddsLoader().LoadFolder(false, empty)
	assert.True(t, errors.Is(err, ErrNoCSVFiles))

	bad := t.TempDir()
	writeFile(t, bad, "a.csv", "HomeTeam,AwayTeam\nA,B\n")
	_, err = NewOddsLoader().LoadFolder(false, bad)
	assert.True(t, errors.Is(err, ErrNoValidFiles))
}

func TestLoadFileDropsInconsistentResult(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "2016-2017.csv",
		"Date,HomeTeam,AwayTeam,FTHG,FTAG,FTR\n"+
			"13/08/16,Burnley,Swansea,0,1,H\n"+
			"13/08/16,Everton,Tottenham,1,1,D\n"+
			"13/08/16,Everton,Everton,1,1,D\n")

	summary, records, err := NewOddsLoader().LoadFile(false, path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Everton", records[0].HomeTeam)
	assert.Equal(t, 2, summary.Invalid)
	assert.Equal(t, 3, summary.Rows)
}

func TestReadTableLatin1(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "latin.csv", "Date,HomeTeam\n01/01/20,Atl\xe9tico\n")

	tab, err := readTable(path)
	require.NoError(t, err)
	require.Len(t, tab.rows, 1)
	assert.Equal(t, "Atlético", tab.get(tab.rows[0], "HomeTeam"))
}

func TestUnderstatLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "understat.csv",
		"date,team,h_a,scored,missed,xG,xGA,npxG,xpts,league,year\n"+
			"2019-08-10 00:00:00,Burnley,h,3,0,0.91,0.61,0.91,1.71,EPL,2019\n"+
			"2019-08-10 00:00:00,Southampton,a,0,3,0.61,0.91,0.61,0.93,EPL,2019\n"+
			"2019-08-10 00:00:00,Bayern Munich,h,2,2,3.1,0.5,2.3,2.7,Bundesliga,2019\n"+
			"2019-08-11 00:00:00,Leicester,h,0,0,n/a,0.4,0.4,1.0,EPL,2019\n")

	rows, summary, err := NewUnderstatLoader().Load(false, path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 4, summary.Rows)
	assert.Equal(t, 3, summary.LeagueRows)
	assert.Equal(t, 1, summary.BadValues)

	assert.Equal(t, match.VenueHome, rows[0].Venue)
	assert.Equal(t, time.Date(2019, 8, 10, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, 3, rows[0].GoalsScored)
	assert.InDelta(t, 1.71, rows[0].XPts, 1e-9)
	assert.Equal(t, 2019, rows[1].Year)
}

func TestUnderstatErrors(t *testing.T) {
	_, _, err := NewUnderstatLoader().Load(false, filepath.Join(t.TempDir(), "none.csv"))
	assert.True(t, errors.Is(err, ErrSourceNotFound))

	dir := t.TempDir()
	path := writeFile(t, dir, "understat.csv",
		"date,team,h_a,scored,missed,xG,xGA,npxG,xpts,league,year\n"+
			"2019-08-10,Bayern Munich,h,2,2,3.1,0.5,2.3,2.7,Bundesliga,2019\n")
	_, _, err = NewUnderstatLoader().Load(false, path)
	assert.True(t, errors.Is(err, ErrNoLeagueRows))

	path = writeFile(t, dir, "short.csv", "date,team\n2019-08-10,Burnley\n")
	_, _, err = NewUnderstatLoader().Load(false, path)
	assert.True(t, errors.Is(err, ErrMissingColumn))
}
