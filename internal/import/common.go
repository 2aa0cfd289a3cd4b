package import_pkg

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"golang.org/x/text/encoding/charmap"
)

// Whole-source failures. Callers match them with errors.Is.
var (
	ErrSourceNotFound = errors.New("source not found")
	ErrNoCSVFiles     = errors.New("no csv files found")
	ErrNoValidFiles   = errors.New("no valid odds data could be loaded")
	ErrNoLeagueRows   = errors.New("no rows for league")
	ErrMissingColumn  = errors.New("missing required column")
)

// table is a CSV file held in memory with a header lookup
type table struct {
	path   string
	header map[string]int
	rows   [][]string
}

// readTable loads a CSV file. Files that are not valid UTF-8 are decoded as Latin-1.
func readTable(path string) (*table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Mark(errors.Wrapf(err, "open %s", path), ErrSourceNotFound)
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	var r io.Reader = bytes.NewReader(data)
	if !utf8.Valid(data) {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse csv %s", path)
	}

	t := &table{path: path, header: make(map[string]int)}
	if len(records) == 0 {
		return t, nil
	}
	for i, name := range records[0] {
		name = strings.TrimSpace(name)
		if _, dup := t.header[name]; !dup {
			t.header[name] = i
		}
	}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// require fails with ErrMissingColumn naming every absent column.
func (t *table) require(columns ...string) error {
	var missing []string
	for _, c := range columns {
		if _, ok := t.header[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return errors.Mark(errors.Newf("%s: %s", filepath.Base(t.path), strings.Join(missing, ", ")), ErrMissingColumn)
	}
	return nil
}

func (t *table) has(column string) bool {
	_, ok := t.header[column]
	return ok
}

// get returns the trimmed cell or "" when the column or cell is absent.
func (t *table) get(row []string, column string) string {
	i, ok := t.header[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) column(name string) []string {
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = t.get(row, name)
	}
	return out
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
