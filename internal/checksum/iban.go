package checksum

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	MinLength = 15
	MaxLength = 34
)

var reIBANShape = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]+$`)

// Compact removes all whitespace and upper-cases s.
func Compact(s string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s))
}

// Mod97 computes the ISO 7064 MOD 97-10 remainder of an IBAN-shaped string
// after moving the first four characters to the end. The second result is false
// when s has a character outside A-Z0-9 or is shorter than four characters.
func Mod97(s string) (int, bool) {
	if len(s) < 4 {
		return 0, false
	}
	rearranged := s[4:] + s[:4]
	rem := 0
	for i := 0; i < len(rearranged); i++ {
		c := rearranged[i]
		switch {
		case c >= '0' && c <= '9':
			rem = (rem*10 + int(c-'0')) % 97
		case c >= 'A' && c <= 'Z':
			// letters expand to two digits: A=10 ... Z=35
			rem = (rem*100 + int(c-'A') + 10) % 97
		default:
			return 0, false
		}
	}
	return rem, true
}

// ValidIBAN checks length, shape and the MOD-97 checksum. Whitespace is ignored
// and letters may be lower-case.
func ValidIBAN(s string) bool {
	s = Compact(s)
	if len(s) < MinLength || len(s) > MaxLength {
		return false
	}
	if !reIBANShape.MatchString(s) {
		return false
	}
	rem, ok := Mod97(s)
	return ok && rem == 1
}
