package verify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
	"github.com/joseph-ayodele/invoice-bench/internal/verify"
)

func TestEngineRun_BankAccount(t *testing.T) {
	engine := verify.NewEngine(nil, nil)

	tests := []struct {
		name        string
		current     entity.Value
		raw         string
		want        entity.Value
		wantActions []verify.Action
		wantPattern string
	}{
		{
			name:        "recovers ocr look-alike from raw text",
			current:     entity.Absent(),
			raw:         "Bitte überweisen Sie an IBAN AT6l 1904 3002 3457 3201 bis zum 31.01.2024",
			want:        entity.String("AT611904300234573201"),
			wantActions: []verify.Action{verify.ActionRecovered},
			wantPattern: "iban_at",
		},
		{
			name:        "recovers lower-case ocr text",
			current:     entity.Absent(),
			raw:         "iban: at61 1904 3002 3457 3201",
			want:        entity.String("AT611904300234573201"),
			wantActions: []verify.Action{verify.ActionRecovered},
			wantPattern: "iban_at",
		},
		{
			name:        "recovers lower-case swiss account",
			current:     entity.Absent(),
			raw:         "konto ch93 0076 2011 6238 5295 7",
			want:        entity.String("CH9300762011623852957"),
			wantActions: []verify.Action{verify.ActionRecovered},
			wantPattern: "iban_ch",
		},
		{
			name:        "null literal counts as absent",
			current:     entity.String("null"),
			raw:         "IBAN: DE89 3704 0044 0532 0130 00",
			want:        entity.String("DE89370400440532013000"),
			wantActions: []verify.Action{verify.ActionRecovered},
			wantPattern: "iban_de",
		},
		{
			name:        "valid value is normalized and never overwritten",
			current:     entity.String("IBAN: AT61 1904 3002 3457 3201"),
			raw:         "IBAN DE89 3704 0044 0532 0130 00",
			want:        entity.String("AT611904300234573201"),
			wantActions: []verify.Action{verify.ActionNormalized},
		},
		{
			name:    "valid compact value is left as is",
			current: entity.String("AT611904300234573201"),
			raw:     "IBAN DE89 3704 0044 0532 0130 00",
			want:    entity.String("AT611904300234573201"),
		},
		{
			name:        "look-alike in check digits of current value",
			current:     entity.String("AT6I1904300234573201"),
			want:        entity.String("AT611904300234573201"),
			wantActions: []verify.Action{verify.ActionNormalized},
		},
		{
			name:        "invalid value is replaced from raw text",
			current:     entity.String("AT611904300234573202"),
			raw:         "Konto: DE89 3704 0044 0532 0130 00",
			want:        entity.String("DE89370400440532013000"),
			wantActions: []verify.Action{verify.ActionInvalidated, verify.ActionRecovered},
			wantPattern: "iban_de",
		},
		{
			name:        "invalid value without raw text becomes absent",
			current:     entity.String("AT611904300234573202"),
			want:        entity.Absent(),
			wantActions: []verify.Action{verify.ActionInvalidated},
		},
		{
			name:        "last specific candidate wins",
			current:     entity.Absent(),
			raw:         "Alt: AT61 1904 3002 3457 3201\nNeu: DE89 3704 0044 0532 0130 00\nDanke",
			want:        entity.String("DE89370400440532013000"),
			wantActions: []verify.Action{verify.ActionRecovered},
			wantPattern: "iban_de",
		},
		{
			name:        "specific tier beats a later generic candidate",
			current:     entity.Absent(),
			raw:         "AT61 1904 3002 3457 3201 / GB29 NWBK 6016 1331 9268 19.",
			want:        entity.String("AT611904300234573201"),
			wantActions: []verify.Action{verify.ActionRecovered},
			wantPattern: "iban_at",
		},
		{
			name:        "generic fallback when no specific pattern matches",
			current:     entity.Absent(),
			raw:         "Bank: GB29 NWBK 6016 1331 9268 19.",
			want:        entity.String("GB29NWBK60161331926819"),
			wantActions: []verify.Action{verify.ActionRecovered},
			wantPattern: "iban_generic",
		},
		{
			name:    "checksum-invalid candidate is ignored",
			current: entity.Absent(),
			raw:     "IBAN AT62 1904 3002 3457 3201",
			want:    entity.Absent(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := entity.Record{
				constants.BankAccountID: tt.current,
				constants.VendorName:    entity.String("Mustermann GmbH"),
			}
			snapshot := in.Clone()

			got, corrections := engine.Run(in, tt.raw)

			assert.Equal(t, tt.want, got.Get(constants.BankAccountID))
			assert.Equal(t, entity.String("Mustermann GmbH"), got.Get(constants.VendorName))
			assert.Equal(t, snapshot, in, "input record must not change")

			var actions []verify.Action
			var pattern string
			for _, c := range corrections {
				if c.Field != constants.BankAccountID {
					continue
				}
				actions = append(actions, c.Action)
				if c.Action == verify.ActionRecovered {
					pattern = c.Pattern
				}
			}
			assert.Equal(t, tt.wantActions, actions)
			assert.Equal(t, tt.wantPattern, pattern)
		})
	}
}

func TestEngineRun_TaxID(t *testing.T) {
	engine := verify.NewEngine(nil, nil)

	tests := []struct {
		name    string
		current entity.Value
		raw     string
		want    entity.Value
	}{
		{name: "label and spaces stripped", current: entity.String("USt-IdNr.: DE 123 456 789"), want: entity.String("DE123456789")},
		{name: "letter o in digits", current: entity.String("ATU1234567O"), want: entity.String("ATU12345670")},
		{name: "swiss uid", current: entity.String("CHE-123.456.789"), want: entity.String("CHE123456789")},
		{name: "recovered from raw text", current: entity.Absent(), raw: "UID: ATU12345678\nIBAN AT61 1904 3002 3457 3201", want: entity.String("ATU12345678")},
		{name: "garbage dropped", current: entity.String("n/a 12"), want: entity.Absent()},
		{name: "nothing found", current: entity.Absent(), raw: "Vielen Dank für Ihren Einkauf", want: entity.Absent()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Verify(entity.Record{constants.TaxID: tt.current}, tt.raw)
			assert.Equal(t, tt.want, got.Get(constants.TaxID))
		})
	}
}

func TestEngineNormalize(t *testing.T) {
	engine := verify.NewEngine(nil, nil)

	v, ok := engine.Normalize(constants.BankAccountID, "at61 1904 3002 3457 3201")
	require.True(t, ok)
	assert.Equal(t, "AT611904300234573201", v)

	_, ok = engine.Normalize(constants.BankAccountID, "AT61 1904")
	assert.False(t, ok)

	// numeric BBAN lets every look-alike in the body be repaired
	v, ok = engine.Normalize(constants.BankAccountID, "DE89 37O4 0044 0532 0l30 00")
	require.True(t, ok)
	assert.Equal(t, "DE89370400440532013000", v)

	v, ok = engine.Normalize(constants.InvoiceNumber, "re-2024/01")
	require.True(t, ok)
	assert.Equal(t, "RE202401", v)
}

func TestEngineVerifyWithoutRawText(t *testing.T) {
	engine := verify.NewEngine(nil, nil)
	in := entity.Record{constants.InvoiceNumber: entity.String("R-1")}

	got, corrections := engine.Run(in, "")
	assert.Empty(t, corrections)
	assert.Equal(t, in, got)
}
