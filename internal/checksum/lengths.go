package checksum

// LengthTable maps a two-letter country prefix to the total IBAN length.
type LengthTable map[string]int

// DefaultLengths returns a fresh copy of the SEPA-area IBAN length registry.
func DefaultLengths() LengthTable {
	return LengthTable{
		"AD": 24, "AT": 20, "BE": 16, "BG": 22, "CH": 21, "CY": 28, "CZ": 24,
		"DE": 22, "DK": 18, "EE": 20, "ES": 24, "FI": 18, "FO": 18, "FR": 27,
		"GB": 22, "GI": 23, "GL": 18, "GR": 27, "HR": 21, "HU": 28, "IE": 22,
		"IS": 26, "IT": 27, "LI": 21, "LT": 20, "LU": 20, "LV": 21, "MC": 27,
		"MT": 31, "NL": 18, "NO": 15, "PL": 28, "PT": 25, "RO": 24, "SE": 24,
		"SI": 19, "SK": 24, "SM": 27, "VA": 22,
	}
}

// Validator accepts bank-account identifiers that are checksum-valid and, when the
// country prefix is known, of the expected length.
type Validator struct {
	lengths LengthTable
}

// NewValidator copies lengths; a nil table disables the length filter.
func NewValidator(lengths LengthTable) *Validator {
	cp := make(LengthTable, len(lengths))
	for k, v := range lengths {
		cp[k] = v
	}
	return &Validator{lengths: cp}
}

// ExpectedLength returns the registered length for the country prefix of s.
func (v *Validator) ExpectedLength(s string) (int, bool) {
	if len(s) < 2 {
		return 0, false
	}
	n, ok := v.lengths[s[:2]]
	return n, ok
}

// Valid reports whether s passes both the checksum and the length filter.
func (v *Validator) Valid(s string) bool {
	s = Compact(s)
	if !ValidIBAN(s) {
		return false
	}
	if n, ok := v.ExpectedLength(s); ok && n != len(s) {
		return false
	}
	return true
}
