package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTeamAliases maps Understat and odds-file spellings of EPL clubs (2014-2020)
// onto the short names used by the odds files.
var DefaultTeamAliases = map[string]string{
	"Arsenal":                  "Arsenal",
	"Aston Villa":              "Aston Villa",
	"Bournemouth":              "Bournemouth",
	"AFC Bournemouth":          "Bournemouth",
	"Brighton":                 "Brighton",
	"Brighton and Hove Albion": "Brighton",
	"Brighton & Hove Albion":   "Brighton",
	"Burnley":                  "Burnley",
	"Cardiff":                  "Cardiff",
	"Cardiff City":             "Cardiff",
	"Chelsea":                  "Chelsea",
	"Crystal Palace":           "Crystal Palace",
	"Everton":                  "Everton",
	"Fulham":                   "Fulham",
	"Huddersfield":             "Huddersfield",
	"Huddersfield Town":        "Huddersfield",
	"Hull":                     "Hull",
	"Hull City":                "Hull",
	"Leicester":                "Leicester",
	"Leicester City":           "Leicester",
	"Liverpool":                "Liverpool",
	"Manchester City":          "Man City",
	"Man City":                 "Man City",
	"Manchester United":        "Man United",
	"Man United":               "Man United",
	"Man Utd":                  "Man United",
	"Middlesbrough":            "Middlesbrough",
	"Newcastle":                "Newcastle",
	"Newcastle United":         "Newcastle",
	"Norwich":                  "Norwich",
	"Norwich City":             "Norwich",
	"QPR":                      "QPR",
	"Queens Park Rangers":      "QPR",
	"Sheffield United":         "Sheffield United",
	"Southampton":              "Southampton",
	"Stoke":                    "Stoke",
	"Stoke City":               "Stoke",
	"Sunderland":               "Sunderland",
	"Swansea":                  "Swansea",
	"Swansea City":             "Swansea",
	"Tottenham":                "Tottenham",
	"Tottenham Hotspur":        "Tottenham",
	"Watford":                  "Watford",
	"West Bromwich Albion":     "West Brom",
	"West Brom":                "West Brom",
	"West Ham":                 "West Ham",
	"West Ham United":          "West Ham",
	"Wolverhampton Wanderers":  "Wolves",
	"Wolves":                   "Wolves",
}

// DefaultAbbreviations expands colloquial short forms before fuzzy comparison.
var DefaultAbbreviations = map[string]string{
	"Man Utd":  "Manchester United",
	"Man Utd.": "Manchester United",
	"Man City": "Manchester City",
	"Spurs":    "Tottenham",
	"Wolves":   "Wolverhampton Wanderers",
	"Palace":   "Crystal Palace",
	"Boro":     "Middlesbrough",
	"Baggies":  "West Bromwich Albion",
}

// DefaultQualifiers are the club-name tokens dropped by Normalized.
var DefaultQualifiers = []string{"FC", "F.C.", "AFC", "A.F.C.", "United", "City", "Town"}

// distinguishingQualifiers are kept when dropping them would leave a base name
// shared by two clubs, as "Manchester" is by City and United.
var distinguishingQualifiers = map[string]bool{"UNITED": true, "CITY": true, "TOWN": true}

// DefaultTokenExpansions spells out short tokens inside longer names.
var DefaultTokenExpansions = map[string]string{
	"Utd":  "United",
	"Utd.": "United",
}

// minStrippedLength keeps "Man City" from collapsing to "Man".
const minStrippedLength = 4

// TeamNormalizer resolves raw club names to canonical names and scores fuzzy
// similarity between spellings. It is immutable after construction and safe to
// share between goroutines.
type TeamNormalizer struct {
	aliases        map[string]string
	folded         map[string]string
	abbreviations  map[string]string
	qualifiers     map[string]bool
	expansions     map[string]string
	sharedBases    map[string]bool // stripped forms claimed by more than one club
	substringBonus float64
}

// NewTeamNormalizer builds a normalizer from an alias table and an abbreviation table.
// Every canonical name in the alias table also maps to itself.
func NewTeamNormalizer(aliases, abbreviations map[string]string, substringBonus float64) *TeamNormalizer {
	n := &TeamNormalizer{
		aliases:        make(map[string]string, len(aliases)*2),
		folded:         make(map[string]string, len(aliases)*2),
		abbreviations:  make(map[string]string, len(abbreviations)),
		qualifiers:     make(map[string]bool, len(DefaultQualifiers)),
		expansions:     make(map[string]string, len(DefaultTokenExpansions)),
		sharedBases:    make(map[string]bool),
		substringBonus: substringBonus,
	}

	for raw, canonical := range aliases {
		n.aliases[strings.TrimSpace(raw)] = canonical
	}
	for _, canonical := range aliases {
		if _, exists := n.aliases[canonical]; !exists {
			n.aliases[canonical] = canonical
		}
	}
	for raw, canonical := range n.aliases {
		n.folded[foldKey(raw)] = canonical
	}
	for short, long := range abbreviations {
		n.abbreviations[foldKey(short)] = long
	}
	for _, q := range DefaultQualifiers {
		n.qualifiers[strings.ToUpper(q)] = true
	}
	for short, long := range DefaultTokenExpansions {
		n.expansions[strings.ToUpper(short)] = long
	}

	// Base names reachable from two canonical clubs keep their distinguishing qualifier
	owners := make(map[string]map[string]bool)
	claim := func(raw, canonical string) {
		base := foldKey(n.dropQualifiers(n.expandTokens(foldAccents(raw)), nil))
		if owners[base] == nil {
			owners[base] = make(map[string]bool)
		}
		owners[base][canonical] = true
	}
	for raw, canonical := range n.aliases {
		claim(raw, canonical)
	}
	for _, long := range n.abbreviations {
		claim(long, n.Canonical(long))
	}
	for base, clubs := range owners {
		if len(clubs) > 1 {
			n.sharedBases[base] = true
		}
	}

	return n
}

// DefaultTeamNormalizer returns a normalizer over the EPL alias table with the
// standard +0.2 substring bonus.
func DefaultTeamNormalizer() *TeamNormalizer {
	return NewTeamNormalizer(DefaultTeamAliases, DefaultAbbreviations, 0.2)
}

// Canonical maps a raw name through the alias table. Unknown names are returned
// trimmed and otherwise untouched, so Canonical(Canonical(x)) == Canonical(x).
func (n *TeamNormalizer) Canonical(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return ""
	}
	if canonical, ok := n.aliases[name]; ok {
		return canonical
	}
	if canonical, ok := n.folded[foldKey(name)]; ok {
		return canonical
	}
	return name
}

// IsKnown reports whether raw resolves through the alias table.
func (n *TeamNormalizer) IsKnown(raw string) bool {
	name := strings.TrimSpace(raw)
	if name == "" {
		return false
	}
	if _, ok := n.aliases[name]; ok {
		return true
	}
	_, ok := n.folded[foldKey(name)]
	return ok
}

// Normalized returns the lower-case comparison form of a name: abbreviations
// expanded, accents folded and qualifier tokens removed. "United", "City" and
// "Town" stay when the remaining name is shared by two clubs.
func (n *TeamNormalizer) Normalized(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return ""
	}
	if long, ok := n.abbreviations[foldKey(s)]; ok {
		s = long
	}
	s = n.stripQualifiers(n.expandTokens(foldAccents(s)))
	if long, ok := n.abbreviations[foldKey(s)]; ok {
		s = n.stripQualifiers(n.expandTokens(foldAccents(long)))
	}
	return strings.ToLower(s)
}

// Similarity scores two raw names in [0, 1]. Names sharing a canonical form score
// 1.0. Two known clubs are compared on their canonical names; anything else is
// compared on the Normalized forms. A substring relation adds the configured bonus.
func (n *TeamNormalizer) Similarity(a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0.0
	}

	ca, cb := n.Canonical(a), n.Canonical(b)
	if ca == cb {
		return 1.0
	}

	var na, nb string
	if n.IsKnown(a) && n.IsKnown(b) {
		na, nb = strings.ToLower(foldAccents(ca)), strings.ToLower(foldAccents(cb))
	} else {
		na, nb = n.Normalized(a), n.Normalized(b)
	}
	if na == "" || nb == "" {
		return 0.0
	}

	score := LevenshteinRatio(na, nb)
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		score += n.substringBonus
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// BestMatch returns the pool entry most similar to target and its score.
// Ties keep the earliest pool entry; an empty pool yields ("", 0).
func (n *TeamNormalizer) BestMatch(target string, pool []string) (string, float64) {
	best := ""
	bestScore := 0.0
	for _, candidate := range pool {
		score := n.Similarity(target, candidate)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	return best, bestScore
}

func (n *TeamNormalizer) stripQualifiers(s string) string {
	stripped := n.dropQualifiers(s, nil)
	if n.sharedBases[foldKey(stripped)] {
		stripped = n.dropQualifiers(s, distinguishingQualifiers)
	}
	return stripped
}

// dropQualifiers removes qualifier tokens other than those in keep. The input is
// returned whole when the remainder would be shorter than minStrippedLength.
func (n *TeamNormalizer) dropQualifiers(s string, keep map[string]bool) string {
	tokens := strings.Fields(s)
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		upper := strings.ToUpper(token)
		if n.qualifiers[upper] && !keep[upper] {
			continue
		}
		kept = append(kept, token)
	}

	stripped := strings.Join(kept, " ")
	if len([]rune(stripped)) < minStrippedLength {
		return strings.Join(tokens, " ")
	}
	return stripped
}

func (n *TeamNormalizer) expandTokens(s string) string {
	tokens := strings.Fields(s)
	for i, token := range tokens {
		if long, ok := n.expansions[strings.ToUpper(token)]; ok {
			tokens[i] = long
		}
	}
	return strings.Join(tokens, " ")
}

// foldKey is the case, whitespace and accent insensitive lookup key.
func foldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(foldAccents(s)), " "))
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
