package benchmark

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/common"
)

const (
	sheetVariants = "Variants"
	sheetFields   = "Fields"
)

// BuildWorkbook lays out the aggregates as a workbook: one row per variant on the
// Variants sheet and one column per variant on the Fields sheet.
func BuildWorkbook(aggs []VariantAggregate) (*excelize.File, error) {
	f := excelize.NewFile()
	// NewFile starts with Sheet1
	if err := f.SetSheetName("Sheet1", sheetVariants); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(sheetFields); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(sheetVariants)
	f.SetActiveSheet(activeIndex)

	set := func(sheet string, col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	for i, h := range AggregateHeader() {
		set(sheetVariants, i+1, 1, h)
	}
	for r, a := range aggs {
		row := r + 2
		for c, v := range []any{
			a.Variant, a.Tasks, a.MeanAccuracy, a.MeanPrecision, a.MeanRecall, a.MeanF1,
			a.MeanExtraction, a.MeanProcessing, a.MeanTotal, a.AcceptanceRate,
		} {
			set(sheetVariants, c+1, row, v)
		}
	}

	set(sheetFields, 1, 1, "field")
	for c, a := range aggs {
		set(sheetFields, c+2, 1, a.Variant)
	}
	for r, field := range constants.AllFields() {
		row := r + 2
		set(sheetFields, 1, row, string(field))
		for c, a := range aggs {
			if acc, ok := a.FieldAccuracy[field]; ok {
				set(sheetFields, c+2, row, acc)
			}
		}
	}

	_ = f.SetColWidth(sheetVariants, "A", "A", 24)
	_ = f.SetColWidth(sheetVariants, "B", "J", 16)
	_ = f.SetColWidth(sheetFields, "A", "A", 24)
	return f, nil
}

// ExportXLSX writes the aggregate workbook to path.
func ExportXLSX(path string, aggs []VariantAggregate, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	f, err := BuildWorkbook(aggs)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("export.xlsx.close_failed", "error", err)
		}
	}()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return common.PersistenceError("xlsx write", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return common.PersistenceError("xlsx save", err)
	}

	logger.Info("export.xlsx.ok",
		"path", path,
		"variants", len(aggs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
