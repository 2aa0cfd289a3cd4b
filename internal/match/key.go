package match

import (
	"fmt"
	"time"

	"github.com/epl-xg-merge/internal/debug"
	"github.com/epl-xg-merge/internal/normalize"
)

const keyDateLayout = "2006-01-02"

// BuildKey derives the join key "{YYYY-MM-DD}_{home}_vs_{away}" from canonical names.
func BuildKey(date time.Time, home, away string) string {
	return fmt.Sprintf("%s_%s_vs_%s", date.Format(keyDateLayout), home, away)
}

// BuildKeyVariants returns the keys for the date, the day after and the day before.
// Only the secondary index uses them.
func BuildKeyVariants(date time.Time, home, away string) []string {
	return []string{
		BuildKey(date, home, away),
		BuildKey(date.AddDate(0, 0, 1), home, away),
		BuildKey(date.AddDate(0, 0, -1), home, away),
	}
}

type indexEntry struct {
	fixture Fixture
	exact   bool
}

// Index maps match keys to paired fixtures. Each fixture is reachable from its own
// date and the adjacent days; a key logged exactly on a date is never replaced by a
// neighbouring day's variant, and otherwise the first fixture inserted wins.
type Index struct {
	teams    *normalize.TeamNormalizer
	entries  map[string]indexEntry
	fixtures int
}

// NewIndex builds the secondary index over paired fixtures.
func NewIndex(localDebug bool, teams *normalize.TeamNormalizer, fixtures []Fixture) *Index {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	ix := &Index{
		teams:   teams,
		entries: make(map[string]indexEntry, len(fixtures)*3),
	}
	for _, f := range fixtures {
		ix.Add(f)
	}

	debug.DebugOutput(localDebug, "Index holds %d keys from %d fixtures", len(ix.entries), ix.fixtures)
	return ix
}

// Add inserts one fixture under its exact key and both ±1 day variants.
func (ix *Index) Add(f Fixture) {
	home, away := ix.teams.Canonical(f.HomeTeam), ix.teams.Canonical(f.AwayTeam)
	for i, key := range BuildKeyVariants(f.Date, home, away) {
		exact := i == 0
		existing, ok := ix.entries[key]
		if ok && (existing.exact || !exact) {
			continue
		}
		ix.entries[key] = indexEntry{fixture: f, exact: exact}
	}
	ix.fixtures++
}

// Key builds the exact primary-side key for a record, canonicalizing both names.
func (ix *Index) Key(date time.Time, home, away string) string {
	return BuildKey(date, ix.teams.Canonical(home), ix.teams.Canonical(away))
}

// Lookup returns the fixture stored under key.
func (ix *Index) Lookup(key string) (Fixture, bool) {
	e, ok := ix.entries[key]
	return e.fixture, ok
}

// Len is the number of keys.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Fixtures is the number of fixtures inserted.
func (ix *Index) Fixtures() int {
	return ix.fixtures
}
