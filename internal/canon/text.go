package canon

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const conjunction = "and"

// legalSuffixes are removed as whole tokens (or whole token sequences).
// Entries are in canonical form: lower-case, no diacritics.
var legalSuffixes = [][]string{
	{"gesellschaft", "mit", "beschrankter", "haftung"},
	{"aktiengesellschaft"},
	{"gmbh"},
	{"ag"},
}

// fold decomposes, drops combining marks and lower-cases.
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), cases.Lower(language.Und), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Text canonicalizes free text and names for comparison: diacritics and case are
// folded, "&"/"und" become "and", legal-entity suffixes and punctuation are
// dropped and whitespace is collapsed.
func Text(s string) string {
	tokens := words(s)
	for {
		next := stripSuffixes(tokens)
		if len(next) == len(tokens) {
			break
		}
		tokens = next
	}
	return strings.Join(tokens, " ")
}

// Tokens returns the word set of s, folded like Text but with legal-entity
// suffixes kept. Name matching compares these sets, so "Mustermann GmbH" carries
// one more token than "Mustermann".
func Tokens(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range words(s) {
		out[tok] = struct{}{}
	}
	return out
}

func words(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	s = fold(s)
	s = strings.ReplaceAll(s, "&", " "+conjunction+" ")
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)

	tokens := strings.Fields(s)
	for i, tok := range tokens {
		if tok == "und" {
			tokens[i] = conjunction
		}
	}
	return tokens
}

func stripSuffixes(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		if n := suffixAt(tokens, i); n > 0 {
			i += n
			continue
		}
		out = append(out, tokens[i])
		i++
	}
	return out
}

func suffixAt(tokens []string, i int) int {
	for _, phrase := range legalSuffixes {
		if i+len(phrase) > len(tokens) {
			continue
		}
		matched := true
		for j, word := range phrase {
			if tokens[i+j] != word {
				matched = false
				break
			}
		}
		if matched {
			return len(phrase)
		}
	}
	return 0
}
