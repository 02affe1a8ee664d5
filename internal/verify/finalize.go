package verify

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/canon"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
)

const maxRecipientRunes = 80

var poNoiseWords = []string{"erteilt", "am:", "datum"}

var currencySymbols = map[string]string{
	"€":    "EUR",
	"$":    "USD",
	"US$":  "USD",
	"£":    "GBP",
	"FR.":  "CHF",
	"SFR.": "CHF",
	"FR":   "CHF",
	"SFR":  "CHF",
}

// Finalize applies the rule-based cleanup that follows verification: money and
// date fields are canonicalized, descriptive purchase-order text is dropped and
// address tails are cut from party names. Blank fields are left untouched.
func Finalize(rec entity.Record) entity.Record {
	out := rec.Clone()

	for _, f := range []constants.Field{constants.TotalAmount, constants.TaxRate} {
		v := out.Get(f)
		if v.IsBlank() {
			continue
		}
		if n, ok := canon.Money(v); ok {
			out[f] = entity.Number(n)
		} else {
			out[f] = entity.Absent()
		}
	}

	if v := out.Get(constants.InvoiceDate); !v.IsBlank() {
		if d, ok := canon.Date(v.Text()); ok {
			out[constants.InvoiceDate] = entity.String(d)
		} else {
			out[constants.InvoiceDate] = entity.Absent()
		}
	}

	if v := out.Get(constants.PurchaseOrderNumber); !v.IsBlank() {
		po := strings.TrimSpace(v.Text())
		if len(po) > 15 && containsAny(strings.ToLower(po), poNoiseWords) {
			out[constants.PurchaseOrderNumber] = entity.Absent()
		}
	}

	if v := out.Get(constants.RecipientName); v.IsString() && !v.IsBlank() {
		out[constants.RecipientName] = entity.String(cleanRecipient(v.Text()))
	}
	if v := out.Get(constants.VendorName); v.IsString() && !v.IsBlank() {
		out[constants.VendorName] = entity.String(cleanVendor(v.Text()))
	}

	if v := out.Get(constants.Currency); v.IsString() && !v.IsBlank() {
		out[constants.Currency] = entity.String(currencyCode(v.Text()))
	}
	return out
}

func cleanRecipient(name string) string {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(name, " - "):
		parts := strings.SplitN(name, " - ", 2)
		// split at the first dash; the tail decides
		rest := strings.Split(parts[1], " - ")[0]
		if hasDigit(rest) || strings.Contains(strings.ToLower(rest), "str") {
			name = strings.TrimSpace(parts[0])
		}
	case strings.Contains(name, ",") && hasDigit(name[strings.LastIndex(name, ",")+1:]):
		name = strings.TrimSpace(name[:strings.Index(name, ",")])
	case strings.Contains(lower, "handelnd für") || strings.Contains(lower, "c/o"):
		name = strings.TrimSpace(cutBefore(cutBefore(name, "handelnd für"), "c/o"))
	}
	if r := []rune(name); len(r) > maxRecipientRunes {
		name = strings.TrimSpace(string(r[:maxRecipientRunes]))
	}
	return name
}

func cleanVendor(name string) string {
	name = strings.TrimSpace(name)
	for _, marker := range []string{"vertr. d.", "vertreten durch"} {
		if cut := cutBefore(name, marker); cut != name {
			return strings.TrimSpace(cut)
		}
	}
	if i := strings.LastIndex(name, ","); i >= 0 && hasDigit(name[i+1:]) {
		return strings.TrimSpace(name[:strings.Index(name, ",")])
	}
	return name
}

func currencyCode(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if code, ok := currencySymbols[s]; ok {
		return code
	}
	return s
}

// cutBefore returns s up to the first case-insensitive occurrence of marker.
// Offsets are taken from s itself since lower-casing may change byte lengths.
func cutBefore(s, marker string) string {
	n := utf8.RuneCountInString(marker)
	for i := range s {
		end := i
		for k := 0; k < n && end < len(s); k++ {
			_, size := utf8.DecodeRuneInString(s[end:])
			end += size
		}
		if strings.EqualFold(s[i:end], marker) {
			return s[:i]
		}
	}
	return s
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
