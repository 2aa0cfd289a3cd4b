package match

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidRecord wraps every record validation failure
var ErrInvalidRecord = errors.New("invalid match record")

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterStructValidation(resultMatchesScore, MatchRecord{})
	})
	return validate
}

// resultMatchesScore rejects a result that disagrees with the goal difference.
func resultMatchesScore(sl validator.StructLevel) {
	rec := sl.Current().Interface().(MatchRecord)
	if rec.Result == "" || rec.HomeGoals < 0 || rec.AwayGoals < 0 {
		return
	}
	if rec.Result != ResultFor(rec.HomeGoals, rec.AwayGoals) {
		sl.ReportError(rec.Result, "Result", "Result", "result_matches_score", "")
	}
}

// ValidateRecord checks non-negative goals, distinct teams and a result consistent
// with the score.
func ValidateRecord(rec MatchRecord) error {
	if err := recordValidator().Struct(rec); err != nil {
		return errors.Mark(errors.Wrapf(err, "%s %s vs %s",
			rec.Date.Format(keyDateLayout), rec.HomeTeam, rec.AwayTeam), ErrInvalidRecord)
	}
	return nil
}
