package benchmark

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/ingest"
)

// DiscoverConfig names the inputs of a pass.
type DiscoverConfig struct {
	DocumentsDir string
	LabelsDir    string
	Variants     []string
	SkipHidden   bool
}

// DiscoverStats summarizes a discovery pass.
type DiscoverStats struct {
	Documents  int // documents with a reference record
	Unlabeled  int // documents without one
	Duplicates int // documents whose stem was already taken
	Completed  int // tasks already in the result store
	Queued     int
}

// Discover pairs every labelled document with every variant and returns the
// tasks whose key is not in completed, in state Queued. Documents are matched
// to reference records by file stem; the first document of a stem wins.
func Discover(ctx context.Context, cfg DiscoverConfig, completed map[Key]struct{}, logger *slog.Logger) ([]Task, DiscoverStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var stats DiscoverStats

	labels, _, err := ingest.ScanDirectory(ctx, cfg.LabelsDir, ingest.ScanOptions{
		SkipHidden: cfg.SkipHidden,
		Match:      ingest.IsReferenceExt,
	}, logger)
	if err != nil {
		return nil, stats, fmt.Errorf("scan labels: %w", err)
	}
	labelled := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		labelled[l.Stem] = struct{}{}
	}

	docs, dirStats, err := ingest.ScanDirectory(ctx, cfg.DocumentsDir, ingest.ScanOptions{SkipHidden: cfg.SkipHidden}, logger)
	if err != nil {
		return nil, stats, fmt.Errorf("scan documents: %w", err)
	}

	var tasks []Task
	seen := make(map[string]string, len(docs))
	for _, d := range docs {
		if prev, dup := seen[d.Stem]; dup {
			logger.Warn("bench.discover.duplicate", "document", d.Stem, "path", d.Path, "kept", prev)
			stats.Duplicates++
			continue
		}
		seen[d.Stem] = d.Path
		if _, ok := labelled[d.Stem]; !ok {
			logger.Debug("bench.discover.unlabeled", "document", d.Stem)
			stats.Unlabeled++
			continue
		}
		stats.Documents++

		for _, variant := range cfg.Variants {
			key := Key{Document: d.Stem, Variant: variant}
			if _, done := completed[key]; done {
				stats.Completed++
				continue
			}
			t := Task{Key: key, DocumentPath: d.Path, Status: constants.TaskStatusDiscovered}
			if err := t.advance(constants.TaskStatusQueued); err != nil {
				return nil, stats, err
			}
			tasks = append(tasks, t)
		}
	}
	stats.Queued = len(tasks)

	logger.Info("bench.discover.done",
		"scanned", dirStats.Scanned,
		"documents", stats.Documents,
		"unlabeled", stats.Unlabeled,
		"duplicates", stats.Duplicates,
		"completed", stats.Completed,
		"queued", stats.Queued,
	)
	return tasks, stats, nil
}
