package canon

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/invoice-bench/internal/entity"
)

var (
	reISOCode   = regexp.MustCompile(`^[A-Za-z]{3}|[A-Za-z]{3}$`)
	reNumeric   = regexp.MustCompile(`^[+-]?[0-9][0-9.,]*$`)
	groupMarks  = strings.NewReplacer("'", "", "’", "", " ", "", "\u00a0", "", "\u202f", "")
	nullStrings = map[string]struct{}{"": {}, "null": {}, "none": {}}
)

// Money canonicalizes a money-like value to a float rounded to 2 decimals.
// It returns false when no numeric interpretation remains.
func Money(v entity.Value) (float64, bool) {
	if f, ok := v.Num(); ok {
		return Round2(f), true
	}
	if s, ok := v.Str(); ok {
		return MoneyString(s)
	}
	return 0, false
}

// MoneyString parses amounts such as "1.234,56", "1'234.56", "€ 1 234,56" or "EUR 12".
func MoneyString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if _, isNull := nullStrings[strings.ToLower(s)]; isNull {
		return 0, false
	}
	s = groupMarks.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	s = reISOCode.ReplaceAllString(s, "")
	if !reNumeric.MatchString(s) {
		return 0, false
	}

	s = normalizeSeparators(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return Round2(f), true
}

// normalizeSeparators rewrites s so that '.' is the only (decimal) separator.
func normalizeSeparators(s string) string {
	dots, commas := strings.Count(s, "."), strings.Count(s, ",")
	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case commas > 1:
		return strings.ReplaceAll(s, ",", "")
	case dots > 1:
		return strings.ReplaceAll(s, ".", "")
	case commas == 1:
		return strings.Replace(s, ",", ".", 1)
	default:
		return s
	}
}

// Round2 rounds half away from zero to 2 decimals.
func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Round3 rounds half away from zero to 3 decimals.
func Round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
