package constants

import (
	"strings"
)

// Field is one key of the fixed invoice schema.
type Field string

const (
	InvoiceNumber       Field = "invoice_number"
	InvoiceDate         Field = "invoice_date"
	VendorName          Field = "vendor_name"
	RecipientName       Field = "recipient_name"
	TotalAmount         Field = "total_amount"
	Currency            Field = "currency"
	PurchaseOrderNumber Field = "purchase_order_number"
	TaxID               Field = "tax_id"
	BankAccountID       Field = "bank_account_id"
	TaxRate             Field = "tax_rate"
)

// allFields is the schema in column order. Result files depend on this order.
var allFields = []Field{
	InvoiceNumber,
	InvoiceDate,
	VendorName,
	RecipientName,
	TotalAmount,
	Currency,
	PurchaseOrderNumber,
	TaxID,
	BankAccountID,
	TaxRate,
}

// verifiedFields participate in checksum/pattern verification, in processing order.
var verifiedFields = []Field{TaxID, BankAccountID}

// AllFields returns the schema fields in column order.
func AllFields() []Field {
	out := make([]Field, len(allFields))
	copy(out, allFields)
	return out
}

// VerifiedFields returns the identifier fields the verification engine repairs.
func VerifiedFields() []Field {
	out := make([]Field, len(verifiedFields))
	copy(out, verifiedFields)
	return out
}

// AsStringSlice returns the schema field names in column order.
func AsStringSlice() []string {
	result := make([]string, len(allFields))
	for i, f := range allFields {
		result[i] = string(f)
	}
	return result
}

// ParseField resolves a JSON/CSV key to a schema field. Legacy keys from older
// label sets are accepted as synonyms.
func ParseField(input string) (Field, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]Field{
		"iban":      BankAccountID,
		"ust-id":    TaxID,
		"ust_id":    TaxID,
		"ustid":     TaxID,
		"vat_id":    TaxID,
		"vat-id":    TaxID,
		"po":        PurchaseOrderNumber,
		"po_number": PurchaseOrderNumber,
	}
	if f, ok := synonyms[normalized]; ok {
		return f, true
	}

	for _, f := range allFields {
		if normalized == string(f) {
			return f, true
		}
	}
	return "", false
}
