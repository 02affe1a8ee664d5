package benchmark_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/benchmark"
	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
	"github.com/joseph-ayodele/invoice-bench/internal/extract"
	mock_extract "github.com/joseph-ayodele/invoice-bench/internal/extract/mocks"
	"github.com/joseph-ayodele/invoice-bench/internal/repository"
	mock_repository "github.com/joseph-ayodele/invoice-bench/internal/repository/mocks"
)

type workspace struct {
	docs, labels, replay, out string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	root := t.TempDir()
	w := workspace{
		docs:   filepath.Join(root, "docs"),
		labels: filepath.Join(root, "labels"),
		replay: filepath.Join(root, "replay"),
		out:    filepath.Join(root, "out"),
	}
	for _, d := range []string{w.docs, w.labels, w.replay} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return w
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (w workspace) config(variants ...string) common.BenchmarkConfig {
	return common.BenchmarkConfig{
		DocumentsDir: w.docs,
		LabelsDir:    w.labels,
		OutputDir:    w.out,
		RunLabel:     "test",
		Variants:     variants,
		Workers:      1,
		QueueSize:    8,
		SkipHidden:   true,
		ExportXLSX:   true,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

// fakeLedger records ledger calls.
type fakeLedger struct {
	mu       sync.Mutex
	started  []repository.RunRecord
	finished []repository.RunRecord
	failures []repository.TaskFailure
	err      error
}

func (f *fakeLedger) StartRun(_ context.Context, run repository.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, run)
	return f.err
}

func (f *fakeLedger) FinishRun(_ context.Context, run repository.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, run)
	return f.err
}

func (f *fakeLedger) RecordFailure(_ context.Context, fl repository.TaskFailure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, fl)
	return f.err
}

func TestOrchestratorRecoversIBANFromRawText(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := newWorkspace(t)
	writeFile(t, filepath.Join(w.docs, "inv-1.pdf"), "%PDF")
	writeFile(t, filepath.Join(w.labels, "inv-1.json"), "{}")

	refs := mock_repository.NewMockReferenceRepository(ctrl)
	refs.EXPECT().Load(gomock.Any(), "inv-1").Return(entity.Record{
		constants.TotalAmount:   entity.String("1.234,56"),
		constants.BankAccountID: entity.String("AT611904300234573201"),
	}, nil)

	extractor := mock_extract.NewMockExtractor(ctrl)
	extractor.EXPECT().Extract(gomock.Any(), filepath.Join(w.docs, "inv-1.pdf"), "ocr").Return(extract.Extraction{
		Record:  entity.Record{constants.TotalAmount: entity.String("1234,56")},
		RawText: "Rechnung\nSumme EUR 1.234,56\nIBAN AT6l 1904 3002 3457 3201\n",
		Timings: extract.Timings{Extraction: 1500 * time.Millisecond, Processing: 250 * time.Millisecond},
	}, nil)

	orch := benchmark.New(w.config("ocr"), extractor, refs, nil, nil, nil)
	stats, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, 1, stats.Persisted)
	assert.Equal(t, 0, stats.Failed)

	details := readLines(t, benchmark.DetailsPath(w.out, "test"))
	var ibanRow string
	for _, l := range details {
		if strings.Contains(l, ",bank_account_id,") {
			ibanRow = l
		}
	}
	assert.True(t, strings.HasPrefix(ibanRow, "inv-1,ocr,bank_account_id,AT611904300234573201,AT611904300234573201,1,"), ibanRow)

	summary := readLines(t, benchmark.SummaryPath(w.out, "test"))
	require.Len(t, summary, 2)
	assert.Equal(t, strings.Join(benchmark.SummaryHeader(), ","), summary[0])
	assert.True(t, strings.HasPrefix(summary[1], "inv-1,ocr,1,1,1,1,1,1,1,1,1,1,1,1,1,1,true,1.500,0.250,1.750,0,"), summary[1])
}

func TestOrchestratorTaskFailureIsRetriedNextPass(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := newWorkspace(t)
	writeFile(t, filepath.Join(w.docs, "inv-1.pdf"), "%PDF")
	writeFile(t, filepath.Join(w.labels, "inv-1.json"), "{}")

	refs := mock_repository.NewMockReferenceRepository(ctrl)
	refs.EXPECT().Load(gomock.Any(), "inv-1").Return(entity.Record{}, nil).Times(3)

	extractor := mock_extract.NewMockExtractor(ctrl)
	extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), "good").Return(extract.Extraction{Record: entity.Record{}}, nil)
	boom := common.NewAppError("EXTRACT_HTTP", "status 502", common.ErrExtraction)
	extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), "flaky").Return(extract.Extraction{}, boom)
	extractor.EXPECT().Extract(gomock.Any(), gomock.Any(), "flaky").Return(extract.Extraction{Record: entity.Record{}}, nil)

	ledger := &fakeLedger{}
	orch := benchmark.New(w.config("good", "flaky"), extractor, refs, nil, ledger, nil)

	first, err := orch.Run(context.Background())
	require.NoError(t, err, "a task failure never fails the pass")
	assert.Equal(t, 2, first.Queued)
	assert.Equal(t, 1, first.Persisted)
	assert.Equal(t, 1, first.Failed)

	require.Len(t, ledger.failures, 1)
	assert.Equal(t, "flaky", ledger.failures[0].Variant)
	assert.Contains(t, ledger.failures[0].Error, "status 502")
	require.Len(t, ledger.finished, 1)
	assert.Equal(t, constants.RunStatusCompleted, ledger.finished[0].Status)
	assert.Equal(t, first.RunID, ledger.started[0].RunID)

	second, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Queued)
	assert.Equal(t, 1, second.Persisted)
	assert.Equal(t, 1, second.Discover.Completed)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestOrchestratorLedgerErrorsAreNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := newWorkspace(t)
	writeFile(t, filepath.Join(w.docs, "inv-1.pdf"), "%PDF")
	writeFile(t, filepath.Join(w.labels, "inv-1.json"), "{}")

	refs := mock_repository.NewMockReferenceRepository(ctrl)
	refs.EXPECT().Load(gomock.Any(), "inv-1").Return(nil, common.NewAppError("INVALID_REFERENCE", "inv-1.json", common.ErrValidation))
	extractor := mock_extract.NewMockExtractor(ctrl)

	ledger := &fakeLedger{err: errors.New("ledger down")}
	stats, err := benchmark.New(w.config("v1"), extractor, refs, nil, ledger, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Len(t, ledger.failures, 1)
}

func TestOrchestratorCanceledContextDispatchesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	w := newWorkspace(t)
	writeFile(t, filepath.Join(w.docs, "inv-1.pdf"), "%PDF")
	writeFile(t, filepath.Join(w.labels, "inv-1.json"), "{}")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := benchmark.New(w.config("v1"), mock_extract.NewMockExtractor(ctrl), mock_repository.NewMockReferenceRepository(ctrl), nil, nil, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

const replayPayload = `{
  "fields": {
    "invoice_number": "RE-2024-01",
    "invoice_date": "5.3.2024",
    "vendor_name": "Muster",
    "recipient_name": "Beispiel AG, Hauptstr. 1",
    "total_amount": "1.234,56",
    "currency": "€",
    "purchase_order_number": null,
    "tax_id": null,
    "iban": "AT61 1904 3002 3457 3201",
    "tax_rate": "20"
  },
  "raw_text": "USt-IdNr. ATU12345678",
  "timings": {"extraction": 2.0, "processing": 0.5},
  "page_count": 1
}`

const reference = `{
  "invoice_number": "RE-2024-01",
  "invoice_date": "05.03.2024",
  "vendor_name": "Muster GmbH",
  "recipient_name": "Beispiel AG",
  "total_amount": 1234.56,
  "currency": "EUR",
  "purchase_order_number": null,
  "tax_id": "ATU12345678",
  "bank_account_id": "AT611904300234573201",
  "tax_rate": 20
}`

func TestOrchestratorResumable(t *testing.T) {
	w := newWorkspace(t)
	for _, doc := range []string{"inv-1", "inv-2"} {
		writeFile(t, filepath.Join(w.docs, doc+".pdf"), "%PDF")
		writeFile(t, filepath.Join(w.labels, doc+".json"), reference)
		for _, variant := range []string{"a", "b"} {
			writeFile(t, filepath.Join(w.replay, variant, doc+".json"), replayPayload)
		}
	}
	writeFile(t, filepath.Join(w.docs, "unlabeled.pdf"), "%PDF")

	cfg := w.config("a", "b")
	cfg.Workers = 3
	orch := benchmark.New(cfg, extract.NewReplayExtractor(w.replay, nil), repository.NewReferenceRepository(w.labels, nil), nil, nil, nil)

	first, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, first.Persisted)
	assert.Equal(t, 1, first.Discover.Unlabeled)

	aggs, err := orch.Aggregate(context.Background())
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, "a", aggs[0].Variant)
	assert.Equal(t, 2, aggs[0].Tasks)
	assert.Equal(t, 1.0, aggs[0].MeanAccuracy)
	assert.Equal(t, 1.0, aggs[0].AcceptanceRate)
	assert.Equal(t, 2.5, aggs[0].MeanTotal)
	assert.Equal(t, 1.0, aggs[1].FieldAccuracy[constants.TaxID])

	summaryBefore := readLines(t, benchmark.SummaryPath(w.out, "test"))
	aggregateBefore, err := os.ReadFile(benchmark.AggregatePath(w.out, "test"))
	require.NoError(t, err)

	second, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Queued)
	assert.Equal(t, 0, second.Persisted)
	assert.Equal(t, 4, second.Discover.Completed)

	_, err = orch.Aggregate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, summaryBefore, readLines(t, benchmark.SummaryPath(w.out, "test")))
	aggregateAfter, err := os.ReadFile(benchmark.AggregatePath(w.out, "test"))
	require.NoError(t, err)
	assert.Equal(t, string(aggregateBefore), string(aggregateAfter))

	_, err = os.Stat(benchmark.WorkbookPath(w.out, "test"))
	assert.NoError(t, err)
}
