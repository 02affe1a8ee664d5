package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/checksum"
)

// Pattern recognizes one identifier format in raw text.
type Pattern struct {
	Name    string
	Country string // empty for the generic fallback
	// Find locates occurrences in raw text; separators and OCR look-alikes are allowed.
	Find *regexp.Regexp
	// Shape validates the compact, upper-cased form. Nil means no shape constraint.
	Shape *regexp.Regexp
}

// Generic reports whether p is a shape-only fallback.
func (p Pattern) Generic() bool { return p.Country == "" }

// Family is the ordered pattern list of one identifier field.
// Country-specific patterns come before generic ones.
type Family struct {
	Field    constants.Field
	Patterns []Pattern
}

// Specific returns the country-exact patterns in order.
func (f Family) Specific() []Pattern {
	var out []Pattern
	for _, p := range f.Patterns {
		if !p.Generic() {
			out = append(out, p)
		}
	}
	return out
}

// Fallback returns the generic patterns in order.
func (f Family) Fallback() []Pattern {
	var out []Pattern
	for _, p := range f.Patterns {
		if p.Generic() {
			out = append(out, p)
		}
	}
	return out
}

// MatchesShape reports whether a compact value fits any pattern shape of the family.
func (f Family) MatchesShape(compact string) bool {
	for _, p := range f.Patterns {
		if p.Shape != nil && p.Shape.MatchString(compact) {
			return true
		}
	}
	return false
}

// Library holds the pattern families and the per-country facts verification needs.
// It is immutable once built.
type Library struct {
	families    map[constants.Field]Family
	numericBBAN map[string]struct{}
}

// New builds a library from explicit families.
func New(numericBBAN []string, families ...Family) *Library {
	l := &Library{
		families:    make(map[constants.Field]Family, len(families)),
		numericBBAN: make(map[string]struct{}, len(numericBBAN)),
	}
	for _, f := range families {
		ps := make([]Pattern, len(f.Patterns))
		copy(ps, f.Patterns)
		// keep declaration order inside each tier, specific tier first
		sort.SliceStable(ps, func(i, j int) bool { return !ps[i].Generic() && ps[j].Generic() })
		l.families[f.Field] = Family{Field: f.Field, Patterns: ps}
	}
	for _, cc := range numericBBAN {
		l.numericBBAN[strings.ToUpper(cc)] = struct{}{}
	}
	return l
}

// Family returns the patterns registered for field.
func (l *Library) Family(field constants.Field) (Family, bool) {
	f, ok := l.families[field]
	return f, ok
}

// NumericBBAN reports whether bank-account identifiers of the country carry digits only
// after the check digits.
func (l *Library) NumericBBAN(country string) bool {
	_, ok := l.numericBBAN[strings.ToUpper(country)]
	return ok
}

// Candidate is an accepted pattern hit.
type Candidate struct {
	Value   string
	Start   int
	Pattern string
}

// Scan runs every pattern over text and passes each hit to accept. A rejected hit is
// retried from the next rune, so a greedy false positive cannot hide a later
// identifier. Candidates come back ordered by position.
func Scan(ps []Pattern, text string, accept func(p Pattern, raw string) (string, bool)) []Candidate {
	var out []Candidate
	for _, p := range ps {
		pos := 0
		for pos < len(text) {
			loc := p.Find.FindStringIndex(text[pos:])
			if loc == nil {
				break
			}
			start, end := pos+loc[0], pos+loc[1]
			if v, ok := accept(p, text[start:end]); ok {
				out = append(out, Candidate{Value: v, Start: start, Pattern: p.Name})
				pos = end
				continue
			}
			_, size := utf8.DecodeRuneInString(text[start:])
			if size == 0 {
				size = 1
			}
			pos = start + size
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

const lookDigit = `[0-9OoQIl]`

// spaced repeats class n times, allowing one whitespace before each repetition.
func spaced(class string, n int) string {
	return fmt.Sprintf(`(?:\s?%s){%d}`, class, n)
}

func spacedRange(class string, min, max int) string {
	return fmt.Sprintf(`(?:\s?%s){%d,%d}`, class, min, max)
}

// numericIBAN builds the pattern of a country whose BBAN is all digits.
func numericIBAN(cc string, length int) Pattern {
	return Pattern{
		Name:    "iban_" + strings.ToLower(cc),
		Country: cc,
		Find:    regexp.MustCompile(`(?i)\b` + cc + spaced(lookDigit, length-2) + `\b`),
		Shape:   regexp.MustCompile(fmt.Sprintf(`^%s[0-9]{%d}$`, cc, length-2)),
	}
}

var vatPrefixes = []string{
	"AT", "BE", "BG", "CY", "CZ", "DE", "DK", "EE", "EL", "ES", "FI", "FR", "HR", "HU",
	"IE", "IT", "LT", "LU", "LV", "MT", "NL", "PL", "PT", "RO", "SE", "SI", "SK", "XI",
}

// Default returns the built-in library. Bank-account country patterns take their
// lengths from lengths, which callers normally obtain from checksum.DefaultLengths.
func Default(lengths checksum.LengthTable) *Library {
	numeric := []string{"AT", "BE", "DE", "DK", "EE", "ES", "FI", "HR", "HU", "LT", "NO", "PL", "PT", "SE", "SI", "SK", "CZ"}

	bbanMin, bbanMax := checksum.MinLength-4, checksum.MaxLength-4

	var bank []Pattern
	for _, cc := range []string{"DE", "AT", "BE", "DK", "ES", "PL"} {
		if n, ok := lengths[cc]; ok {
			bank = append(bank, numericIBAN(cc, n))
		}
	}
	bank = append(bank,
		Pattern{
			Name:    "iban_ch",
			Country: "CH",
			Find:    regexp.MustCompile(`(?i)\bCH` + spaced(lookDigit, 7) + spaced(`[A-Za-z0-9]`, 12) + `\b`),
			Shape:   regexp.MustCompile(`^CH[0-9]{7}[A-Z0-9]{12}$`),
		},
		Pattern{
			Name:    "iban_li",
			Country: "LI",
			Find:    regexp.MustCompile(`(?i)\bLI` + spaced(lookDigit, 7) + spaced(`[A-Za-z0-9]`, 12) + `\b`),
			Shape:   regexp.MustCompile(`^LI[0-9]{7}[A-Z0-9]{12}$`),
		},
		Pattern{
			Name:    "iban_nl",
			Country: "NL",
			Find:    regexp.MustCompile(`(?i)\bNL` + spaced(lookDigit, 2) + spaced(`[A-Za-z]`, 4) + spaced(lookDigit, 10) + `\b`),
			Shape:   regexp.MustCompile(`^NL[0-9]{2}[A-Z]{4}[0-9]{10}$`),
		},
		Pattern{
			Name:    "iban_lu",
			Country: "LU",
			Find:    regexp.MustCompile(`(?i)\bLU` + spaced(lookDigit, 5) + spaced(`[A-Za-z0-9]`, 13) + `\b`),
			Shape:   regexp.MustCompile(`^LU[0-9]{5}[A-Z0-9]{13}$`),
		},
		Pattern{
			Name:  "iban_generic",
			Find:  regexp.MustCompile(`(?i)\b[A-Z]{2}` + lookDigit + `{2}` + spacedRange(`[A-Za-z0-9]`, bbanMin, bbanMax) + `\b`),
			Shape: regexp.MustCompile(fmt.Sprintf(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{%d,%d}$`, bbanMin, bbanMax)),
		},
	)

	tax := []Pattern{
		{
			Name:    "vat_de",
			Country: "DE",
			Find:    regexp.MustCompile(`(?i)\bDE` + spaced(lookDigit, 9) + `\b`),
			Shape:   regexp.MustCompile(`^DE[0-9]{9}$`),
		},
		{
			Name:    "vat_at",
			Country: "AT",
			Find:    regexp.MustCompile(`(?i)\bATU` + spaced(lookDigit, 8) + `\b`),
			Shape:   regexp.MustCompile(`^ATU[0-9]{8}$`),
		},
		{
			Name:    "uid_ch",
			Country: "CH",
			Find:    regexp.MustCompile(`(?i)\bCHE[-\s]?[0-9]{3}\.?[0-9]{3}\.?[0-9]{3}\b`),
			Shape:   regexp.MustCompile(`^CHE[0-9]{9}$`),
		},
		{
			Name:  "vat_generic",
			Find:  regexp.MustCompile(`\b(?:` + strings.Join(vatPrefixes, "|") + `)[ -]?[0-9][0-9A-Z]{7,11}\b`),
			Shape: regexp.MustCompile(`^(?:` + strings.Join(vatPrefixes, "|") + `)[0-9][0-9A-Z]{7,11}$`),
		},
	}

	return New(numeric,
		Family{Field: constants.BankAccountID, Patterns: bank},
		Family{Field: constants.TaxID, Patterns: tax},
	)
}
