package match_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
	"github.com/joseph-ayodele/invoice-bench/internal/match"
)

func TestIsMatch_NullConvention(t *testing.T) {
	for _, f := range constants.AllFields() {
		assert.True(t, match.IsMatch(f, entity.String(""), entity.String("null")), f)
		assert.True(t, match.IsMatch(f, entity.Absent(), entity.String(" ")), f)
		assert.True(t, match.IsMatch(f, entity.String("NULL"), entity.Absent()), f)
		assert.False(t, match.IsMatch(f, entity.String(""), entity.String("x")), f)
		assert.False(t, match.IsMatch(f, entity.Absent(), entity.Number(0)), f)
	}
}

func TestIsMatch(t *testing.T) {
	tests := []struct {
		name     string
		field    constants.Field
		expected entity.Value
		actual   entity.Value
		want     bool
	}{
		{name: "partial vendor name", field: constants.VendorName, expected: entity.String("Mustermann GmbH"), actual: entity.String("Mustermann"), want: true},
		{name: "over-long vendor name", field: constants.VendorName, expected: entity.String("Mustermann"), actual: entity.String("Mustermann GmbH"), want: false},
		{name: "recipient case and umlauts", field: constants.RecipientName, expected: entity.String("Müller & Söhne GmbH"), actual: entity.String("MUELLER und Sohne"), want: false},
		{name: "recipient folded", field: constants.RecipientName, expected: entity.String("Müller & Söhne GmbH"), actual: entity.String("muller und söhne"), want: true},
		{name: "name against blank candidate", field: constants.VendorName, expected: entity.String("Mustermann"), actual: entity.Absent(), want: false},
		{name: "money formats", field: constants.TotalAmount, expected: entity.String("1.234,56"), actual: entity.Number(1234.56), want: true},
		{name: "money off by a cent", field: constants.TotalAmount, expected: entity.String("1.234,56"), actual: entity.String("1234.55"), want: false},
		{name: "money against text", field: constants.TaxRate, expected: entity.String("19"), actual: entity.String("neunzehn"), want: false},
		{name: "identifier separators", field: constants.BankAccountID, expected: entity.String("AT61 1904 3002 3457 3201"), actual: entity.String("at61-1904-3002-3457-3201"), want: true},
		{name: "identifier differs", field: constants.TaxID, expected: entity.String("DE123456789"), actual: entity.String("DE123456780"), want: false},
		{name: "date layouts", field: constants.InvoiceDate, expected: entity.String("05.03.2024"), actual: entity.String("2024-03-05"), want: true},
		{name: "date differs", field: constants.InvoiceDate, expected: entity.String("05.03.2024"), actual: entity.String("2024-05-03"), want: false},
		{name: "unparseable dates as text", field: constants.InvoiceDate, expected: entity.String("März 2024"), actual: entity.String("marz 2024"), want: true},
		{name: "free text", field: constants.InvoiceNumber, expected: entity.String("RE-2024/001"), actual: entity.String("re 2024 001"), want: false},
		{name: "free text punctuation", field: constants.InvoiceNumber, expected: entity.String("RE-2024/001"), actual: entity.String("re2024001"), want: true},
		{name: "numeric invoice number", field: constants.InvoiceNumber, expected: entity.Number(4711), actual: entity.String("4711"), want: true},
		{name: "currency", field: constants.Currency, expected: entity.String("EUR"), actual: entity.String("eur"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, match.IsMatch(tt.field, tt.expected, tt.actual))
		})
	}
}

func TestIsNameMatch(t *testing.T) {
	assert.True(t, match.IsNameMatch("", ""))
	assert.False(t, match.IsNameMatch("Mustermann", ""))
	assert.False(t, match.IsNameMatch("", "Mustermann"))
	assert.True(t, match.IsNameMatch("Max Mustermann Handels GmbH", "mustermann handels"))
	assert.False(t, match.IsNameMatch("Max Mustermann", "Erika Mustermann"))
}
