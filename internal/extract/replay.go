package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/schema"
)

// ReplayExtractor serves recorded extraction payloads from disk. The payload for
// document "<docs>/a/invoice-7.pdf" and variant "tesseract" lives at
// "<dir>/tesseract/invoice-7.json".
type ReplayExtractor struct {
	dir    string
	schema *schema.Schema
	logger *slog.Logger
}

func NewReplayExtractor(dir string, logger *slog.Logger) *ReplayExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplayExtractor{dir: dir, schema: schema.Payload(), logger: logger}
}

// PayloadPath returns where the payload of (documentPath, variant) is expected.
func (r *ReplayExtractor) PayloadPath(documentPath, variant string) string {
	stem := strings.TrimSuffix(filepath.Base(documentPath), filepath.Ext(documentPath))
	return filepath.Join(r.dir, variant, stem+".json")
}

func (r *ReplayExtractor) Extract(ctx context.Context, documentPath, variant string) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	start := time.Now()
	path := r.PayloadPath(documentPath, variant)

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Extraction{}, common.NewAppError("REPLAY_MISSING", path, errors.Join(common.ErrExtraction, common.ErrNotFound))
		}
		return Extraction{}, common.NewAppError("REPLAY_READ", path, errors.Join(common.ErrExtraction, err))
	}

	ext, sanitized, err := decodePayload(r.schema, raw)
	if err != nil {
		r.logger.Warn("extract.replay.invalid", "path", path, "error", err)
		return Extraction{}, fmt.Errorf("replay %s: %w", filepath.Base(path), errors.Join(common.ErrExtraction, err))
	}
	if len(sanitized) > 0 {
		r.logger.Warn("extract.replay.sanitized", "path", path, "changed", sanitized)
	}
	if len(ext.Dropped) > 0 {
		r.logger.Debug("extract.replay.unknown_keys", "path", path, "keys", ext.Dropped)
	}

	r.logger.Debug("extract.replay.ok",
		"document", filepath.Base(documentPath),
		"variant", variant,
		"page_count", ext.PageCount,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return ext, nil
}

var _ Extractor = (*ReplayExtractor)(nil)
