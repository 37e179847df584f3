// Package numeric parses loosely formatted numeric input the way it arrives
// from spreadsheets and form fields: thousands separators, percent signs and
// stray whitespace are tolerated, and unparsable input degrades to a
// caller-supplied default instead of an error.
package numeric

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const roundEpsilon = 1e-9

// ParseFloat parses a lenient numeric string. Thousands separators, a percent
// sign and surrounding whitespace are stripped. Returns def when the input is
// empty or unparsable.
func ParseFloat(raw string, def *float64) *float64 {
	s := strings.ReplaceAll(raw, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return &f
}

// ParseFloatValue is ParseFloat over untyped JSON values: numbers pass
// through, strings are parsed leniently, nil and anything else yields def.
func ParseFloatValue(v any, def *float64) *float64 {
	switch x := v.(type) {
	case nil:
		return def
	case float64:
		f := x
		return &f
	case float32:
		f := float64(x)
		return &f
	case int:
		f := float64(x)
		return &f
	case int64:
		f := float64(x)
		return &f
	case json.Number:
		return ParseFloat(x.String(), def)
	case string:
		return ParseFloat(x, def)
	default:
		return ParseFloat(fmt.Sprintf("%v", x), def)
	}
}

// ParseInt parses a lenient integer. Values within 1e-9 of a whole number are
// rounded; anything else is truncated toward zero.
func ParseInt(v any, def *int) *int {
	f := ParseFloatValue(v, nil)
	if f == nil {
		return def
	}
	var n int
	if math.Abs(*f-math.Round(*f)) < roundEpsilon {
		n = int(math.Round(*f))
	} else {
		n = int(*f)
	}
	return &n
}

// ClampPercent clamps a completion percentage to [0, 100].
func ClampPercent(p float64) float64 {
	return math.Max(0.0, math.Min(100.0, p))
}

// RemainingAmount derives the unrecognized contract value from a contract
// amount and a completion percentage. Returns nil when either input is
// undefined.
func RemainingAmount(amount, statusPercent *float64) *float64 {
	if amount == nil || statusPercent == nil {
		return nil
	}
	r := *amount * (1 - ClampPercent(*statusPercent)/100.0)
	return &r
}

// Ptr returns a pointer to v. Convenience for optional numeric fields.
func Ptr[T any](v T) *T { return &v }
