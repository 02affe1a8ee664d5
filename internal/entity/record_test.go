package entity

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-bench/constants"
)

func TestValueBlankAndText(t *testing.T) {
	tests := []struct {
		name      string
		v         Value
		wantBlank bool
		wantText  string
	}{
		{"absent", Absent(), true, ""},
		{"empty string", String("  "), true, "  "},
		{"null literal", String("NULL"), true, "NULL"},
		{"string", String("RE-1"), false, "RE-1"},
		{"zero", Number(0), false, "0"},
		{"fraction", Number(1234.5), false, "1234.5"},
		{"nan is absent", Number(math.NaN()), true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantBlank, tt.v.IsBlank())
			assert.Equal(t, tt.wantText, tt.v.Text())
		})
	}
}

func TestValueOf(t *testing.T) {
	v, err := ValueOf(json.Number("19.5"))
	require.NoError(t, err)
	assert.True(t, v.IsNumber())
	n, _ := v.Num()
	assert.Equal(t, 19.5, n)

	v, err = ValueOf(nil)
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())

	_, err = ValueOf(true)
	assert.Error(t, err)
}

func TestRecordFromMapAliases(t *testing.T) {
	rec, unknown, err := RecordFromMap(map[string]any{
		"iban":         "AT611904300234573201",
		"ust-id":       "DE1",
		"tax_id":       "DE2",
		"total_amount": 12.5,
		"notes":        "x",
		"line_items":   nil,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"line_items", "notes"}, unknown)
	assert.Equal(t, String("AT611904300234573201"), rec.Get(constants.BankAccountID))
	assert.Equal(t, String("DE2"), rec.Get(constants.TaxID), "canonical key wins over alias")
	assert.Equal(t, Number(12.5), rec.Get(constants.TotalAmount))
	assert.True(t, rec.Get(constants.Currency).IsAbsent())
}

func TestCanonicalKeysAliasOrder(t *testing.T) {
	in := map[string]any{"vat_id": "DE2", "ust_id": "DE3", "ust-id": "DE1", "IBAN": "AT61"}
	for i := 0; i < 50; i++ {
		got := CanonicalKeys(in)
		assert.Equal(t, map[string]any{"tax_id": "DE1", "bank_account_id": "AT61"}, got)
	}
}

func TestRecordCloneIsIndependent(t *testing.T) {
	rec := Record{constants.Currency: String("EUR")}
	c := rec.Clone()
	c[constants.Currency] = String("CHF")
	assert.Equal(t, String("EUR"), rec.Get(constants.Currency))
}

func TestRecordJSON(t *testing.T) {
	rec := Record{constants.InvoiceNumber: String("RE-1"), constants.TaxRate: Number(19)}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"invoice_number": "RE-1", "invoice_date": null, "vendor_name": null, "recipient_name": null,
		"total_amount": null, "currency": null, "purchase_order_number": null, "tax_id": null,
		"bank_account_id": null, "tax_rate": 19
	}`, string(b))

	var back Record
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, rec.Get(constants.InvoiceNumber), back.Get(constants.InvoiceNumber))
	assert.Equal(t, rec.Get(constants.TaxRate), back.Get(constants.TaxRate))
}
