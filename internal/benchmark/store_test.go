package benchmark

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
	"github.com/joseph-ayodele/invoice-bench/internal/extract"
	"github.com/joseph-ayodele/invoice-bench/internal/match"
)

func sampleRow(doc, variant string) ResultRow {
	ref := entity.Record{constants.InvoiceNumber: entity.String("RE-1"), constants.TotalAmount: entity.Number(10)}
	cand := entity.Record{constants.InvoiceNumber: entity.String("RE-1"), constants.TotalAmount: entity.Number(11)}
	return ResultRow{
		Key:        Key{Document: doc, Variant: variant},
		Scorecard:  match.Score(ref, cand),
		Timings:    extract.Timings{Extraction: time.Second, Processing: 500 * time.Millisecond}.Normalized(),
		PageCount:  2,
		RunID:      "run-1",
		FinishedAt: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestResultStoreAppendAndReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenResultStore(dir, "x", nil)
	require.NoError(t, err)
	require.NoError(t, store.Append(sampleRow("inv-1", "a")))
	require.NoError(t, store.Append(sampleRow("inv-2", "a")))
	require.NoError(t, store.Close())

	store, err = OpenResultStore(dir, "x", nil)
	require.NoError(t, err)
	defer store.Close()

	keys, err := store.CompletedKeys()
	require.NoError(t, err)
	assert.Equal(t, map[Key]struct{}{{"inv-1", "a"}: {}, {"inv-2", "a"}: {}}, keys)

	header, rows, err := ReadTable(SummaryPath(dir, "x"), nil)
	require.NoError(t, err)
	assert.Equal(t, SummaryHeader(), header, "header is written once")
	require.Len(t, rows, 2)

	row := rows[0]
	col := func(name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		return "<missing>"
	}
	assert.Equal(t, "1", col(string(constants.InvoiceNumber)))
	assert.Equal(t, "0", col(string(constants.TotalAmount)))
	assert.Equal(t, "0.9", col(ColAccuracy))
	assert.Equal(t, "false", col(ColAccepted))
	assert.Equal(t, "1.000", col(ColExtraction))
	assert.Equal(t, "1.500", col(ColTotal))
	assert.Equal(t, "2", col(ColPageCount))
	assert.Equal(t, "2024-03-05T10:00:00Z", col(ColFinishedAt))

	_, details, err := ReadTable(DetailsPath(dir, "x"), nil)
	require.NoError(t, err)
	assert.Len(t, details, 2*len(constants.AllFields()))
	assert.Equal(t, []string{"inv-1", "a", "total_amount", "10", "11", "0", "run-1"}, details[4])
}

func TestResultStoreRepairsPartialLine(t *testing.T) {
	dir := t.TempDir()
	path := SummaryPath(dir, "x")
	good := strings.Join(sampleRow("inv-1", "a").summaryRecord(), ",")
	content := strings.Join(SummaryHeader(), ",") + "\n" + good + "\ninv-2,a,1,0,1"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, rows, err := ReadTable(path, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "a trailing line without newline is ignored on read")

	store, err := OpenResultStore(dir, "x", nil)
	require.NoError(t, err)
	keys, err := store.CompletedKeys()
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	require.NoError(t, store.Append(sampleRow("inv-2", "a")))
	require.NoError(t, store.Close())

	_, rows, err = ReadTable(path, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "inv-2", rows[1][0])
}

func TestOpenResultStoreRejectsForeignHeader(t *testing.T) {
	dir := t.TempDir()
	legacy := "document,variant,accuracy,precision,recall,f1,success,duration\ninv-0,a,0.9,1,0.8,0.889,1,2.5\n"
	require.NoError(t, os.WriteFile(SummaryPath(dir, "x"), []byte(legacy), 0o644))

	_, err := OpenResultStore(dir, "x", nil)
	require.Error(t, err)
	assert.True(t, common.IsFatal(err))

	data, err := os.ReadFile(SummaryPath(dir, "x"))
	require.NoError(t, err)
	assert.Equal(t, legacy, string(data), "legacy file is left untouched")

	aggs, err := AggregateFile(SummaryPath(dir, "x"), nil)
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, 1, aggs[0].Tasks)
}

func TestOpenResultStoreRejectsForeignDetailsHeader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(DetailsPath(dir, "x"), []byte("document,variant,field\n"), 0o644))

	_, err := OpenResultStore(dir, "x", nil)
	assert.True(t, common.IsFatal(err))
}

func TestReadTableSkipsRowsOfWrongWidth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	require.NoError(t, os.WriteFile(path, []byte("document,variant,accuracy\na,v,1\nb,v\nc,v,0.5\n"), 0o644))

	_, rows, err := ReadTable(path, nil)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "v", "1"}, {"c", "v", "0.5"}}, rows)

	header, rows, err := ReadTable(filepath.Join(t.TempDir(), "missing.csv"), nil)
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Nil(t, rows)
}

func TestAppendFailureIsFatal(t *testing.T) {
	store, err := OpenResultStore(t.TempDir(), "x", nil)
	require.NoError(t, err)
	require.NoError(t, store.details.f.Close())

	err = store.Append(sampleRow("inv-1", "a"))
	require.Error(t, err)
	assert.True(t, common.IsFatal(err))
}

func TestAggregateRows(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		rows   [][]string
		check  func(t *testing.T, got []VariantAggregate)
	}{
		{
			name:   "current columns",
			header: []string{"document", "variant", "invoice_number", "accuracy", "precision", "recall", "f1", "accepted", "extraction_duration", "processing_duration", "total_duration"},
			rows: [][]string{
				{"d1", "b", "1", "1", "1", "1", "1", "true", "1.000", "0.500", "1.500"},
				{"d2", "b", "0", "0.5", "0.5", "0.5", "0.5", "false", "3.000", "0.500", "3.500"},
				{"d1", "a", "1", "0.8", "0.8", "0.8", "0.8", "true", "1.000", "1.000", "2.000"},
			},
			check: func(t *testing.T, got []VariantAggregate) {
				require.Len(t, got, 2)
				assert.Equal(t, "a", got[0].Variant)
				b := got[1]
				assert.Equal(t, 2, b.Tasks)
				assert.Equal(t, 0.75, b.MeanAccuracy)
				assert.Equal(t, 0.5, b.AcceptanceRate)
				assert.Equal(t, 2.0, b.MeanExtraction)
				assert.Equal(t, 0.5, b.MeanProcessing)
				assert.Equal(t, 2.5, b.MeanTotal)
				assert.Equal(t, 0.5, b.FieldAccuracy[constants.InvoiceNumber])
			},
		},
		{
			name:   "legacy success and duration",
			header: []string{"filename", "pipeline", "accuracy", "precision", "recall", "f1", "success", "duration"},
			rows: [][]string{
				{"d1", "ocr", "1", "1", "1", "1", "True", "4"},
				{"d2", "ocr", "0", "0", "0", "0", "False", "2"},
			},
			check: func(t *testing.T, got []VariantAggregate) {
				require.Len(t, got, 1)
				assert.Equal(t, 0.5, got[0].AcceptanceRate)
				assert.Equal(t, 0.0, got[0].MeanExtraction)
				assert.Equal(t, 3.0, got[0].MeanProcessing)
				assert.Equal(t, 3.0, got[0].MeanTotal)
			},
		},
		{
			name:   "last row of a key wins and bad rows are skipped",
			header: []string{"document", "variant", "accuracy", "precision", "recall", "f1", "acceptance"},
			rows: [][]string{
				{"d1", "v", "0", "0", "0", "0", "0"},
				{"d1", "v", "1", "1", "1", "1", "1"},
				{"d2", "v", "n/a", "0", "0", "0", "0"},
			},
			check: func(t *testing.T, got []VariantAggregate) {
				require.Len(t, got, 1)
				assert.Equal(t, 1, got[0].Tasks)
				assert.Equal(t, 1.0, got[0].MeanF1)
			},
		},
		{
			name:   "rounded to three decimals",
			header: []string{"document", "variant", "accuracy", "precision", "recall", "f1", "accepted"},
			rows: [][]string{
				{"d1", "v", "1", "1", "1", "1", "1"},
				{"d2", "v", "0", "0", "0", "0", "0"},
				{"d3", "v", "0", "0", "0", "0", "0"},
			},
			check: func(t *testing.T, got []VariantAggregate) {
				assert.Equal(t, 0.333, got[0].MeanAccuracy)
				assert.Equal(t, 0.333, got[0].AcceptanceRate)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AggregateRows(tt.header, tt.rows, nil)
			require.NoError(t, err)
			tt.check(t, got)
		})
	}
}

func TestAggregateRowsMissingColumn(t *testing.T) {
	_, err := AggregateRows([]string{"document", "variant", "accuracy"}, nil, nil)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestWriteAggregateCSVAndWorkbook(t *testing.T) {
	dir := t.TempDir()
	aggs := []VariantAggregate{{
		Variant: "a", Tasks: 2, MeanAccuracy: 0.95, MeanF1: 0.9, MeanTotal: 1.5, AcceptanceRate: 0.5,
		FieldAccuracy: map[constants.Field]float64{constants.TaxID: 1},
	}}

	path := AggregatePath(dir, "x")
	require.NoError(t, WriteAggregateCSV(path, aggs))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		strings.Join(AggregateHeader(), ",")+"\na,2,0.95,0,0,0.9,0,0,1.5,0.5\n",
		string(data))

	f, err := BuildWorkbook(aggs)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{sheetVariants, sheetFields}, f.GetSheetList())

	v, err := f.GetCellValue(sheetVariants, "A2")
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	v, err = f.GetCellValue(sheetFields, "B1")
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	v, err = f.GetCellValue(sheetFields, "A9")
	require.NoError(t, err)
	assert.Equal(t, string(constants.TaxID), v)
	v, err = f.GetCellValue(sheetFields, "B9")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	require.NoError(t, ExportXLSX(WorkbookPath(dir, "x"), aggs, nil))
}
