package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseColumnLayouts(t *testing.T) {
	p := DefaultDateParser()

	tests := []struct {
		name       string
		input      []string
		wantLayout string
		wantFirst  time.Time
	}{
		{"two digit year", []string{"16/08/14", "23/08/14"}, "2/1/06", day(2014, 8, 16)},
		{"four digit year", []string{"16/08/2014", "23/08/2014"}, "2/1/2006", day(2014, 8, 16)},
		{"iso", []string{"2014-08-16", "2015-05-24"}, "2006-1-2", day(2014, 8, 16)},
		{"us month first", []string{"08/16/14", "08/23/14"}, "1/2/06", day(2014, 8, 16)},
		{"dotted", []string{"16.08.2014", "24.05.2015"}, "2.1.2006", day(2014, 8, 16)},
		{"timestamp", []string{"2014-08-16 00:00:00"}, "2006-01-02 15:04:05", day(2014, 8, 16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col := p.ParseColumn(false, tt.input)
			assert.Equal(t, MethodLayout, col.Report.Method)
			assert.Equal(t, tt.wantLayout, col.Report.Layout)
			require.Len(t, col.Dates, len(tt.input))
			require.NotNil(t, col.Dates[0])
			assert.True(t, tt.wantFirst.Equal(*col.Dates[0]), "got %v", col.Dates[0])
			assert.Equal(t, len(tt.input), col.Report.Parsed)
		})
	}
}

func TestParseColumnSampleCommitsLayout(t *testing.T) {
	p := DefaultDateParser()

	values := make([]string, 0, 52)
	for i := 0; i < 50; i++ {
		values = append(values, "16/08/14")
	}
	values = append(values, "not a date", "")

	col := p.ParseColumn(false, values)
	assert.Equal(t, MethodLayout, col.Report.Method)
	assert.Equal(t, 50, col.Report.Parsed)
	assert.Equal(t, 2, col.Report.Failed)
	assert.Nil(t, col.Dates[50])
	assert.Nil(t, col.Dates[51])
	assert.Equal(t, []string{"not a date"}, col.Report.FailedExamples)
}

func TestParseColumnSkipsLayoutFailingColumn(t *testing.T) {
	p := DefaultDateParser()

	// the sample reads both ways, the rest of the column is month-first only
	values := make([]string, 0, 110)
	for i := 0; i < 50; i++ {
		values = append(values, "05/06/14")
	}
	for i := 0; i < 60; i++ {
		values = append(values, "08/16/14")
	}

	col := p.ParseColumn(false, values)
	assert.Equal(t, MethodLayout, col.Report.Method)
	assert.Equal(t, "1/2/06", col.Report.Layout)
	assert.Equal(t, 110, col.Report.Parsed)
	require.NotNil(t, col.Dates[0])
	assert.True(t, day(2014, 5, 6).Equal(*col.Dates[0]), "got %v", col.Dates[0])
	require.NotNil(t, col.Dates[109])
	assert.True(t, day(2014, 8, 16).Equal(*col.Dates[109]), "got %v", col.Dates[109])
}

func TestParseColumnFallsBackToDayFirst(t *testing.T) {
	p := DefaultDateParser()

	col := p.ParseColumn(false, []string{"16/08/2014", "23/08/2014", "bad"})
	assert.Equal(t, MethodDayFirst, col.Report.Method)
	require.NotNil(t, col.Dates[0])
	assert.True(t, day(2014, 8, 16).Equal(*col.Dates[0]))
	assert.Nil(t, col.Dates[2])
	assert.Equal(t, 1, col.Report.Failed)
}

func TestParseColumnSanityWarnings(t *testing.T) {
	p := DefaultDateParser()

	col := p.ParseColumn(false, []string{"01/01/2009", "01/06/2026", "10/10/2016"})
	assert.Equal(t, 3, col.Report.Parsed)
	assert.Equal(t, 1, col.Report.TooOld)
	assert.Equal(t, 1, col.Report.TooNew)
	require.NotNil(t, col.Report.Earliest)
	require.NotNil(t, col.Report.Latest)
	assert.True(t, day(2009, 1, 1).Equal(*col.Report.Earliest))
	assert.True(t, day(2026, 6, 1).Equal(*col.Report.Latest))
	assert.InDelta(t, 1.0, col.Report.SuccessRate, 1e-9)
}

func TestParseColumnEmpty(t *testing.T) {
	col := DefaultDateParser().ParseColumn(false, nil)
	assert.Empty(t, col.Dates)
	assert.Equal(t, MethodUnparseable, col.Report.Method)
	assert.Zero(t, col.Report.SuccessRate)
}

func TestCenturyCorrection(t *testing.T) {
	p := DefaultDateParser()

	corrected, changed := p.CorrectCentury(day(2114, 8, 16))
	assert.True(t, changed)
	assert.True(t, day(2014, 8, 16).Equal(corrected))

	kept, changed := p.CorrectCentury(day(2019, 5, 12))
	assert.False(t, changed)
	assert.True(t, day(2019, 5, 12).Equal(kept))

	parsed := p.Parse("2114-08-16")
	require.NotNil(t, parsed)
	assert.True(t, day(2014, 8, 16).Equal(*parsed))
}

func TestParseSingle(t *testing.T) {
	p := DefaultDateParser()

	got := p.Parse(" 24.05.2015 ")
	require.NotNil(t, got)
	assert.True(t, day(2015, 5, 24).Equal(*got))

	assert.Nil(t, p.Parse(""))
	assert.Nil(t, p.Parse("nonsense"))
}
