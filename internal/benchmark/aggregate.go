package benchmark

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/canon"
	"github.com/joseph-ayodele/invoice-bench/internal/common"
)

// legacyDuration is the single timing column of older result files.
const legacyDuration = "duration"

var acceptedAliases = []string{ColAccepted, "success", "acceptance"}

// VariantAggregate is one row of the aggregate file.
type VariantAggregate struct {
	Variant        string
	Tasks          int
	MeanAccuracy   float64
	MeanPrecision  float64
	MeanRecall     float64
	MeanF1         float64
	MeanExtraction float64 // seconds
	MeanProcessing float64
	MeanTotal      float64
	AcceptanceRate float64
	// FieldAccuracy is the share of tasks in which each field matched.
	FieldAccuracy  map[constants.Field]float64
}

// AggregateHeader is the header of the aggregate file.
func AggregateHeader() []string {
	return []string{
		"variant", "tasks", "mean_accuracy", "mean_precision", "mean_recall", "mean_f1",
		"mean_extraction_duration", "mean_processing_duration", "mean_total_duration", "acceptance_rate",
	}
}

type columns map[string]int

func (c columns) find(names ...string) (int, bool) {
	for _, n := range names {
		if i, ok := c[n]; ok {
			return i, true
		}
	}
	return 0, false
}

type sums struct {
	tasks                         int
	acc, prec, rec, f1            float64
	extraction, processing, total float64
	accepted                      int
	fieldHits                     map[constants.Field]int
	fieldSeen                     map[constants.Field]int
}

// AggregateFile reads the whole result store at path and computes one aggregate
// per variant, sorted by variant. Columns are looked up by header name; the first
// two columns are always the task key. When a key occurs more than once the last
// row wins.
func AggregateFile(path string, logger *slog.Logger) ([]VariantAggregate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	header, rows, err := ReadTable(path, logger)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if header == nil {
		return nil, nil
	}
	return AggregateRows(header, rows, logger)
}

// AggregateRows is AggregateFile over rows already read.
func AggregateRows(header []string, rows [][]string, logger *slog.Logger) ([]VariantAggregate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cols := make(columns, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	metric := map[string]int{}
	for _, name := range []string{ColAccuracy, ColPrecision, ColRecall, ColF1} {
		i, ok := cols.find(name)
		if !ok {
			return nil, common.NewAppError("AGGREGATE", "missing column "+name, common.ErrValidation)
		}
		metric[name] = i
	}
	acceptedCol, ok := cols.find(acceptedAliases...)
	if !ok {
		return nil, common.NewAppError("AGGREGATE", "missing column "+ColAccepted, common.ErrValidation)
	}
	extractionCol, hasExtraction := cols.find(ColExtraction)
	processingCol, hasProcessing := cols.find(ColProcessing)
	totalCol, hasTotal := cols.find(ColTotal)
	legacyCol, hasLegacy := cols.find(legacyDuration)

	fieldCols := map[constants.Field]int{}
	for _, f := range constants.AllFields() {
		if i, ok := cols.find(string(f)); ok {
			fieldCols[f] = i
		}
	}

	// last row of a key wins
	latest := make(map[Key]int, len(rows))
	for i, r := range rows {
		latest[Key{Document: r[0], Variant: r[1]}] = i
	}

	byVariant := map[string]*sums{}
	for i, r := range rows {
		key := Key{Document: r[0], Variant: r[1]}
		if latest[key] != i {
			logger.Debug("bench.aggregate.superseded", "document", key.Document, "variant", key.Variant)
			continue
		}

		acc, err1 := parseFloat(r[metric[ColAccuracy]])
		prec, err2 := parseFloat(r[metric[ColPrecision]])
		rec, err3 := parseFloat(r[metric[ColRecall]])
		f1, err4 := parseFloat(r[metric[ColF1]])
		accepted, err5 := parseBool(r[acceptedCol])
		if err := firstErr(err1, err2, err3, err4, err5); err != nil {
			logger.Warn("bench.aggregate.bad_row", "document", key.Document, "variant", key.Variant, "error", err)
			continue
		}

		var extraction, processing, total float64
		switch {
		case hasTotal:
			total = parseOrZero(r[totalCol])
			if hasExtraction {
				extraction = parseOrZero(r[extractionCol])
			}
			if hasProcessing {
				processing = parseOrZero(r[processingCol])
			}
		case hasLegacy:
			total = parseOrZero(r[legacyCol])
			processing = total
		}

		s := byVariant[key.Variant]
		if s == nil {
			s = &sums{fieldHits: map[constants.Field]int{}, fieldSeen: map[constants.Field]int{}}
			byVariant[key.Variant] = s
		}
		s.tasks++
		s.acc += acc
		s.prec += prec
		s.rec += rec
		s.f1 += f1
		s.extraction += extraction
		s.processing += processing
		s.total += total
		if accepted {
			s.accepted++
		}
		for f, c := range fieldCols {
			hit, err := parseFloat(r[c])
			if err != nil {
				continue
			}
			s.fieldSeen[f]++
			if hit >= 1 {
				s.fieldHits[f]++
			}
		}
	}

	out := make([]VariantAggregate, 0, len(byVariant))
	for variant, s := range byVariant {
		n := float64(s.tasks)
		agg := VariantAggregate{
			Variant:        variant,
			Tasks:          s.tasks,
			MeanAccuracy:   canon.Round3(s.acc / n),
			MeanPrecision:  canon.Round3(s.prec / n),
			MeanRecall:     canon.Round3(s.rec / n),
			MeanF1:         canon.Round3(s.f1 / n),
			MeanExtraction: canon.Round3(s.extraction / n),
			MeanProcessing: canon.Round3(s.processing / n),
			MeanTotal:      canon.Round3(s.total / n),
			AcceptanceRate: canon.Round3(float64(s.accepted) / n),
			FieldAccuracy:  make(map[constants.Field]float64, len(s.fieldSeen)),
		}
		for f, seen := range s.fieldSeen {
			agg.FieldAccuracy[f] = canon.Round3(float64(s.fieldHits[f]) / float64(seen))
		}
		out = append(out, agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variant < out[j].Variant })
	return out, nil
}

// WriteAggregateCSV replaces the aggregate file at path. The file is written to
// a temporary name first and renamed into place.
func WriteAggregateCSV(path string, aggs []VariantAggregate) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".results-*.csv")
	if err != nil {
		return common.PersistenceError("create aggregate", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	_ = w.Write(AggregateHeader())
	for _, a := range aggs {
		_ = w.Write([]string{
			a.Variant,
			strconv.Itoa(a.Tasks),
			formatFloat(a.MeanAccuracy),
			formatFloat(a.MeanPrecision),
			formatFloat(a.MeanRecall),
			formatFloat(a.MeanF1),
			formatFloat(a.MeanExtraction),
			formatFloat(a.MeanProcessing),
			formatFloat(a.MeanTotal),
			formatFloat(a.AcceptanceRate),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return common.PersistenceError("write aggregate", err)
	}
	if err := tmp.Close(); err != nil {
		return common.PersistenceError("close aggregate", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return common.PersistenceError("rename aggregate", err)
	}
	return nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseOrZero(s string) float64 {
	f, err := parseFloat(s)
	if err != nil {
		return 0
	}
	return f
}

// parseBool accepts true/false, 1/0 and the Python spellings True/False.
func parseBool(s string) (bool, error) {
	return strconv.ParseBool(strings.TrimSpace(s))
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
