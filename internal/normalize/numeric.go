package normalize

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal parses a numeric cell, accepting a comma as the decimal separator
// ("1,23" -> 1.23). Empty or malformed cells yield nil.
func ParseDecimal(raw string) *float64 {
	s := CleanDecimal(raw)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// CleanDecimal rewrites a comma decimal separator to a dot. Cells holding both a
// dot and a comma keep the dot and drop the comma as a thousands separator.
func CleanDecimal(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.Contains(s, ".") {
		return strings.ReplaceAll(s, ",", "")
	}
	return strings.Replace(s, ",", ".", 1)
}

// ParseInt parses an integer cell, tolerating a trailing ".0" left by spreadsheets.
func ParseInt(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f := ParseDecimal(s)
	if f == nil || *f != float64(int(*f)) {
		return 0, false
	}
	return int(*f), true
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// RoundPtr is Round2 for optional values.
func RoundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round2(*v)
	return &r
}

// Round3 is used for reported confidences.
func Round3(v float64) float64 {
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}
