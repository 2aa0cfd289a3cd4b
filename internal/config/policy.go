package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/epl-xg-merge/internal/match"
	"github.com/epl-xg-merge/internal/normalize"
)

// EnvPrefix prefixes every policy override read from the environment,
// e.g. XGMERGE_SEARCH_THRESHOLD=0.65
const EnvPrefix = "XGMERGE"

const policyDateLayout = "2006-01-02"

// Policy is the tunable matching configuration
type Policy struct {
	Search   SearchConfig   `mapstructure:"search"`
	Pairing  PairingConfig  `mapstructure:"pairing"`
	Dates    DateConfig     `mapstructure:"dates"`
	Backfill BackfillConfig `mapstructure:"backfill"`
	Output   OutputConfig   `mapstructure:"output"`
}

// SearchConfig mirrors match.SearchPolicy
type SearchConfig struct {
	HomeWeight      float64 `mapstructure:"home_weight" validate:"gte=0,lte=1"`
	AwayWeight      float64 `mapstructure:"away_weight" validate:"gte=0,lte=1"`
	FallbackWeight  float64 `mapstructure:"fallback_weight" validate:"gte=0,lte=1"`
	Threshold       float64 `mapstructure:"threshold" validate:"gte=0,lte=1"`
	SwitchThreshold float64 `mapstructure:"switch_threshold" validate:"gte=0,lte=1"`
	Workers         int     `mapstructure:"workers" validate:"gte=0"`
}

// PairingConfig mirrors match.PairingPolicy
type PairingConfig struct {
	Exclusive bool `mapstructure:"exclusive"`
}

// DateConfig holds the date sanity bounds, formatted YYYY-MM-DD
type DateConfig struct {
	SampleSize       int     `mapstructure:"sample_size" validate:"gt=0"`
	MinSuccessRate   float64 `mapstructure:"min_success_rate" validate:"gte=0,lte=1"`
	CenturyCutoff    string  `mapstructure:"century_cutoff" validate:"required,datetime=2006-01-02"`
	EarliestExpected string  `mapstructure:"earliest_expected" validate:"required,datetime=2006-01-02"`
	LatestExpected   string  `mapstructure:"latest_expected" validate:"required,datetime=2006-01-02"`
}

// BackfillConfig controls how reviewed candidates are folded back
type BackfillConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence" validate:"gte=0,lte=1"`
}

// OutputConfig controls how merged files are written
type OutputConfig struct {
	SentinelZero bool `mapstructure:"sentinel_zero"`
}

// DefaultPolicy returns the documented defaults
func DefaultPolicy() *Policy {
	search := match.DefaultSearchPolicy()
	dates := normalize.DefaultDateParser()
	return &Policy{
		Search: SearchConfig{
			HomeWeight:      search.HomeWeight,
			AwayWeight:      search.AwayWeight,
			FallbackWeight:  search.FallbackWeight,
			Threshold:       search.Threshold,
			SwitchThreshold: search.SwitchThreshold,
			Workers:         search.Workers,
		},
		Pairing: PairingConfig{Exclusive: match.DefaultPairingPolicy().Exclusive},
		Dates: DateConfig{
			SampleSize:       dates.SampleSize,
			MinSuccessRate:   dates.MinSuccessRate,
			CenturyCutoff:    dates.CenturyCutoff.Format(policyDateLayout),
			EarliestExpected: dates.EarliestExpected.Format(policyDateLayout),
			LatestExpected:   dates.LatestExpected.Format(policyDateLayout),
		},
		Backfill: BackfillConfig{MinConfidence: 0.7},
		Output:   OutputConfig{SentinelZero: false},
	}
}

// LoadPolicy reads an optional YAML policy file and applies XGMERGE_* environment
// overrides on top of the defaults. An empty path uses defaults and env only.
func LoadPolicy(path string) (*Policy, error) {
	v := viper.New()
	setDefaults(v, DefaultPolicy())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read policy file %s", path)
		}
	}

	var p Policy
	if err := v.Unmarshal(&p); err != nil {
		return nil, errors.Wrap(err, "decode policy")
	}
	if err := validator.New().Struct(&p); err != nil {
		return nil, errors.Wrap(err, "invalid policy")
	}
	return &p, nil
}

func setDefaults(v *viper.Viper, p *Policy) {
	v.SetDefault("search.home_weight", p.Search.HomeWeight)
	v.SetDefault("search.away_weight", p.Search.AwayWeight)
	v.SetDefault("search.fallback_weight", p.Search.FallbackWeight)
	v.SetDefault("search.threshold", p.Search.Threshold)
	v.SetDefault("search.switch_threshold", p.Search.SwitchThreshold)
	v.SetDefault("search.workers", p.Search.Workers)
	v.SetDefault("pairing.exclusive", p.Pairing.Exclusive)
	v.SetDefault("dates.sample_size", p.Dates.SampleSize)
	v.SetDefault("dates.min_success_rate", p.Dates.MinSuccessRate)
	v.SetDefault("dates.century_cutoff", p.Dates.CenturyCutoff)
	v.SetDefault("dates.earliest_expected", p.Dates.EarliestExpected)
	v.SetDefault("dates.latest_expected", p.Dates.LatestExpected)
	v.SetDefault("backfill.min_confidence", p.Backfill.MinConfidence)
	v.SetDefault("output.sentinel_zero", p.Output.SentinelZero)
}

// SearchPolicy converts the search section for the match engine
func (p *Policy) SearchPolicy() *match.SearchPolicy {
	return &match.SearchPolicy{
		HomeWeight:      p.Search.HomeWeight,
		AwayWeight:      p.Search.AwayWeight,
		FallbackWeight:  p.Search.FallbackWeight,
		Threshold:       p.Search.Threshold,
		SwitchThreshold: p.Search.SwitchThreshold,
		Workers:         p.Search.Workers,
	}
}

// PairingPolicy converts the pairing section
func (p *Policy) PairingPolicy() *match.PairingPolicy {
	return &match.PairingPolicy{Exclusive: p.Pairing.Exclusive}
}

// DateParser builds a date parser from the dates section. The bounds were
// validated by LoadPolicy.
func (p *Policy) DateParser() *normalize.DateParser {
	parser := normalize.DefaultDateParser()
	parser.SampleSize = p.Dates.SampleSize
	parser.MinSuccessRate = p.Dates.MinSuccessRate
	if t, err := time.Parse(policyDateLayout, p.Dates.CenturyCutoff); err == nil {
		parser.CenturyCutoff = t
	}
	if t, err := time.Parse(policyDateLayout, p.Dates.EarliestExpected); err == nil {
		parser.EarliestExpected = t
	}
	if t, err := time.Parse(policyDateLayout, p.Dates.LatestExpected); err == nil {
		parser.LatestExpected = t
	}
	return parser
}
