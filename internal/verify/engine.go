package verify

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/canon"
	"github.com/joseph-ayodele/invoice-bench/internal/checksum"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
	"github.com/joseph-ayodele/invoice-bench/internal/patterns"
)

// Action describes what verification did to a field.
type Action string

const (
	ActionNormalized  Action = "normalized"
	ActionInvalidated Action = "invalidated"
	ActionRecovered   Action = "recovered"
)

// Correction is one change applied to a record.
type Correction struct {
	Field   constants.Field
	Action  Action
	Before  string
	After   string
	Pattern string
}

var reLabel = regexp.MustCompile(`(?i)^\s*(?:IBAN|USt[-. ]?Id(?:[-. ]?Nr)?|UID|VAT(?:[-. ]?(?:ID|No|Reg(?:[-. ]?No)?))?|MwSt[-. ]?Nr)\s*\.?\s*[:#]?\s*`)

// Engine repairs identifier fields using the pattern library and the bank-account
// checksum. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	lib       *patterns.Library
	validator *checksum.Validator
}

// NewEngine wires a verification engine. Nil arguments fall back to the defaults.
func NewEngine(lib *patterns.Library, validator *checksum.Validator) *Engine {
	if validator == nil {
		validator = checksum.NewValidator(checksum.DefaultLengths())
	}
	if lib == nil {
		lib = patterns.Default(checksum.DefaultLengths())
	}
	return &Engine{lib: lib, validator: validator}
}

// Verify returns a corrected copy of rec. rec itself is not modified.
func (e *Engine) Verify(rec entity.Record, rawText string) entity.Record {
	out, _ := e.Run(rec, rawText)
	return out
}

// Run is Verify plus the list of applied corrections.
//
// A present value that validates is kept (in normalized form) and never replaced
// from raw text. An invalid present value is dropped and then treated as absent.
// An absent value is recovered from raw text: country-specific patterns first, the
// generic fallback only when no specific pattern yields a valid candidate; among
// the valid candidates of a tier the last one in the text wins.
func (e *Engine) Run(rec entity.Record, rawText string) (entity.Record, []Correction) {
	out := rec.Clone()
	var corrections []Correction

	for _, field := range constants.VerifiedFields() {
		fam, ok := e.lib.Family(field)
		if !ok {
			continue
		}

		cur := out.Get(field)
		if !cur.IsBlank() {
			before := cur.Text()
			if v, ok := e.Normalize(field, before); ok {
				if v != before {
					out[field] = entity.String(v)
					corrections = append(corrections, Correction{Field: field, Action: ActionNormalized, Before: before, After: v})
				}
				continue
			}
			out[field] = entity.Absent()
			corrections = append(corrections, Correction{Field: field, Action: ActionInvalidated, Before: before})
		}

		if strings.TrimSpace(rawText) == "" {
			continue
		}
		if c, ok := e.recover(field, fam, rawText); ok {
			out[field] = entity.String(c.Value)
			corrections = append(corrections, Correction{
				Field:   field,
				Action:  ActionRecovered,
				Before:  cur.Text(),
				After:   c.Value,
				Pattern: c.Pattern,
			})
		}
	}
	return out, corrections
}

func (e *Engine) recover(field constants.Field, fam patterns.Family, rawText string) (patterns.Candidate, bool) {
	accept := func(_ patterns.Pattern, hit string) (string, bool) {
		return e.normalize(field, fam, hit, true)
	}
	for _, tier := range [][]patterns.Pattern{fam.Specific(), fam.Fallback()} {
		if len(tier) == 0 {
			continue
		}
		cands := patterns.Scan(tier, rawText, accept)
		if len(cands) > 0 {
			return cands[len(cands)-1], true
		}
	}
	return patterns.Candidate{}, false
}

// Normalize strips labels and separators from an identifier value, fixes OCR
// look-alikes in digit positions and validates the result. It reports false when
// no valid form exists.
func (e *Engine) Normalize(field constants.Field, value string) (string, bool) {
	fam, ok := e.lib.Family(field)
	if !ok {
		return canon.ID(value), true
	}
	return e.normalize(field, fam, value, false)
}

func (e *Engine) normalize(field constants.Field, fam patterns.Family, value string, fromText bool) (string, bool) {
	// "|" is an OCR look-alike of "1"; canon.ID would drop it.
	value = strings.ReplaceAll(reLabel.ReplaceAllString(value, ""), "|", "I")
	compact := canon.ID(value)
	if compact == "" {
		return "", false
	}
	if field == constants.BankAccountID {
		return e.bankAccount(compact, fromText)
	}
	for _, cand := range uniq(compact, fixLookalikes(compact, prefixLen(compact))) {
		if fam.MatchesShape(cand) {
			return cand, true
		}
	}
	return "", false
}

func (e *Engine) bankAccount(compact string, truncate bool) (string, bool) {
	variants := []string{compact, fixLookalikesRange(compact, 2, 4)}
	if len(compact) >= 2 && e.lib.NumericBBAN(compact[:2]) {
		variants = append(variants, fixLookalikes(compact, 2))
	}
	for _, cand := range uniq(variants...) {
		if truncate {
			if n, ok := e.validator.ExpectedLength(cand); ok && len(cand) > n {
				cand = cand[:n]
			}
		}
		if e.validator.Valid(cand) {
			return cand, true
		}
	}
	return "", false
}

// prefixLen is the length of the alphabetic country prefix of a tax identifier.
func prefixLen(s string) int {
	if strings.HasPrefix(s, "ATU") || strings.HasPrefix(s, "CHE") {
		return 3
	}
	return 2
}

var lookalikes = map[byte]byte{'O': '0', 'Q': '0', 'I': '1', 'L': '1'}

func fixLookalikes(s string, from int) string {
	return fixLookalikesRange(s, from, len(s))
}

func fixLookalikesRange(s string, from, to int) string {
	if from >= len(s) {
		return s
	}
	if to > len(s) {
		to = len(s)
	}
	b := []byte(s)
	for i := from; i < to; i++ {
		if d, ok := lookalikes[b[i]]; ok {
			b[i] = d
		}
	}
	return string(b)
}

func uniq(ss ...string) []string {
	seen := make(map[string]struct{}, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
