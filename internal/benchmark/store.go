package benchmark

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/canon"
	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/extract"
	"github.com/joseph-ayodele/invoice-bench/internal/match"
)

// Column names of the store files.
const (
	ColDocument   = "document"
	ColVariant    = "variant"
	ColAccuracy   = "accuracy"
	ColPrecision  = "precision"
	ColRecall     = "recall"
	ColF1         = "f1"
	ColAccepted   = "accepted"
	ColExtraction = "extraction_duration"
	ColProcessing = "processing_duration"
	ColTotal      = "total_duration"
	ColPageCount  = "page_count"
	ColRunID      = "run_id"
	ColFinishedAt = "finished_at"
)

// SummaryHeader is the header of the result store.
func SummaryHeader() []string {
	h := []string{ColDocument, ColVariant}
	h = append(h, constants.AsStringSlice()...)
	return append(h,
		ColAccuracy, ColPrecision, ColRecall, ColF1, ColAccepted,
		ColExtraction, ColProcessing, ColTotal, ColPageCount, ColRunID, ColFinishedAt,
	)
}

// DetailsHeader is the header of the per-field detail file.
func DetailsHeader() []string {
	return []string{ColDocument, ColVariant, "field", "expected", "observed", "match", ColRunID}
}

func SummaryPath(dir, label string) string   { return filepath.Join(dir, "summary_"+label+".csv") }
func DetailsPath(dir, label string) string   { return filepath.Join(dir, "details_"+label+".csv") }
func AggregatePath(dir, label string) string { return filepath.Join(dir, "results_"+label+".csv") }
func WorkbookPath(dir, label string) string  { return filepath.Join(dir, "results_"+label+".xlsx") }

// ResultRow is everything persisted for one completed task.
type ResultRow struct {
	Key
	Scorecard  match.Scorecard
	Timings    extract.Timings
	PageCount  int
	RunID      string
	FinishedAt time.Time
}

func (r ResultRow) summaryRecord() []string {
	rec := []string{r.Document, r.Variant}
	for _, f := range constants.AllFields() {
		v, _ := r.Scorecard.Verdict(f)
		rec = append(rec, flag(v.Match))
	}
	return append(rec,
		formatFloat(r.Scorecard.Accuracy),
		formatFloat(r.Scorecard.Precision),
		formatFloat(r.Scorecard.Recall),
		formatFloat(r.Scorecard.F1),
		strconv.FormatBool(r.Scorecard.Accepted),
		formatSeconds(r.Timings.Extraction),
		formatSeconds(r.Timings.Processing),
		formatSeconds(r.Timings.Total),
		strconv.Itoa(r.PageCount),
		r.RunID,
		r.FinishedAt.UTC().Format(time.RFC3339),
	)
}

func (r ResultRow) detailRecords() [][]string {
	out := make([][]string, 0, len(r.Scorecard.Verdicts))
	for _, v := range r.Scorecard.Verdicts {
		out = append(out, []string{
			r.Document, r.Variant, string(v.Field), v.Expected.Text(), v.Observed.Text(), flag(v.Match), r.RunID,
		})
	}
	return out
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(canon.Round3(f), 'f', -1, 64)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(canon.Round3(d.Seconds()), 'f', 3, 64)
}

// ResultStore appends result rows to the summary and details CSV files. It is
// safe for concurrent use; rows are serialized through one append point.
type ResultStore struct {
	mu      sync.Mutex
	summary *csvFile
	details *csvFile
	log     *slog.Logger
}

type csvFile struct {
	path string
	f    *os.File
	w    *csv.Writer
}

// OpenResultStore opens (or creates) the store files of label under dir. A
// half-written trailing line left by a crash is cut off before appending.
func OpenResultStore(dir, label string, logger *slog.Logger) (*ResultStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.PersistenceError("create output dir", err)
	}
	summary, err := openCSV(SummaryPath(dir, label), SummaryHeader(), logger)
	if err != nil {
		return nil, err
	}
	details, err := openCSV(DetailsPath(dir, label), DetailsHeader(), logger)
	if err != nil {
		_ = summary.f.Close()
		return nil, err
	}
	return &ResultStore{summary: summary, details: details, log: logger}, nil
}

func openCSV(path string, header []string, logger *slog.Logger) (*csvFile, error) {
	if err := repairTail(path, logger); err != nil {
		return nil, common.PersistenceError("repair "+filepath.Base(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, common.PersistenceError("open "+filepath.Base(path), err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, common.PersistenceError("stat "+filepath.Base(path), err)
	}
	cf := &csvFile{path: path, f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := cf.write([][]string{header}); err != nil {
			_ = f.Close()
			return nil, err
		}
		return cf, nil
	}
	if err := checkHeader(path, header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return cf, nil
}

// checkHeader refuses to append to a file written with different columns, such
// as a legacy summary. Rows appended there would be unreadable as results.
func checkHeader(path string, want []string) error {
	f, err := os.Open(path)
	if err != nil {
		return common.PersistenceError("open "+filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	got, err := r.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return common.PersistenceError("read header of "+filepath.Base(path), err)
	}
	if !slices.Equal(got, want) {
		return common.PersistenceError("header of "+filepath.Base(path),
			fmt.Errorf("columns %v do not match %v; use a new run label", got, want))
	}
	return nil
}

func (c *csvFile) write(records [][]string) error {
	for _, rec := range records {
		if err := c.w.Write(rec); err != nil {
			return common.PersistenceError("write "+filepath.Base(c.path), err)
		}
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return common.PersistenceError("flush "+filepath.Base(c.path), err)
	}
	return nil
}

// repairTail truncates path after its last newline.
func repairTail(path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return nil
	}
	keep := bytes.LastIndexByte(data, '\n') + 1
	logger.Warn("bench.store.partial_line", "path", path, "dropped_bytes", len(data)-keep)
	return os.Truncate(path, int64(keep))
}

// Append persists one task. Its detail rows are flushed before its summary row,
// so a summary row never exists without details.
func (s *ResultStore) Append(row ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.details.write(row.detailRecords()); err != nil {
		return err
	}
	if err := s.summary.write([][]string{row.summaryRecord()}); err != nil {
		return err
	}
	s.log.Debug("bench.store.append", "document", row.Document, "variant", row.Variant, "run_id", row.RunID)
	return nil
}

// CompletedKeys re-derives the set of persisted task keys from the summary file.
func (s *ResultStore) CompletedKeys() (map[Key]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, rows, err := ReadTable(s.summary.path, s.log)
	if err != nil {
		return nil, common.PersistenceError("read summary", err)
	}
	keys := make(map[Key]struct{}, len(rows))
	for _, r := range rows {
		keys[Key{Document: r[0], Variant: r[1]}] = struct{}{}
	}
	return keys, nil
}

// Close flushes and closes both files.
func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, c := range []*csvFile{s.details, s.summary} {
		c.w.Flush()
		errs = append(errs, c.w.Error(), c.f.Close())
	}
	return errors.Join(errs...)
}

// ReadTable reads a CSV file with a header row. A trailing line without a newline
// and rows whose width differs from the header are skipped with a warning. Every
// returned row has at least two columns.
func ReadTable(path string, logger *slog.Logger) ([]string, [][]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if n := len(data); n > 0 && data[n-1] != '\n' {
		keep := bytes.LastIndexByte(data, '\n') + 1
		logger.Warn("bench.store.partial_line", "path", path, "dropped_bytes", n-keep)
		data = data[:keep]
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 2 {
		return nil, nil, fmt.Errorf("header of %s has %d columns", filepath.Base(path), len(header))
	}

	var rows [][]string
	for row := 2; ; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return header, rows, fmt.Errorf("row %d: %w", row, err)
		}
		if len(rec) != len(header) {
			logger.Warn("bench.store.bad_row", "path", path, "row", row, "columns", len(rec), "want", len(header))
			continue
		}
		rows = append(rows, rec)
	}
	return header, rows, nil
}
