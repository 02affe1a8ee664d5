package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-bench/constants"
)

// ScanDirectory walks root and returns the matching files sorted by path.
// Unreadable entries below root are counted as failed and skipped; an unreadable
// root is an error.
func ScanDirectory(ctx context.Context, root string, opts ScanOptions, logger *slog.Logger) ([]Document, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	match := opts.Match
	if match == nil {
		match = constants.IsDocumentExt
	}

	var docs []Document
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn("ingest.scan.unreadable", "path", path, "error", walkErr)
			stats.Failed++
			return nil
		}
		if path != root && opts.SkipHidden && IsHidden(path) {
			stats.Skipped++
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if !match(ext) {
			stats.Skipped++
			return nil
		}
		stats.Matched++
		docs = append(docs, Document{Path: path, Stem: Stem(path), Ext: ext})
		return nil
	})
	if err != nil {
		return docs, stats, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, stats, nil
}
