package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/invoice-bench/internal/benchmark"
	"github.com/joseph-ayodele/invoice-bench/internal/checksum"
	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/extract"
	"github.com/joseph-ayodele/invoice-bench/internal/patterns"
	repo "github.com/joseph-ayodele/invoice-bench/internal/repository"
	"github.com/joseph-ayodele/invoice-bench/internal/verify"
)

// NewExtractor builds the extraction collaborator selected by cfg.Mode.
func NewExtractor(cfg common.ExtractConfig, logger *slog.Logger) (extract.Extractor, error) {
	switch cfg.Mode {
	case common.ExtractModeReplay:
		return extract.NewReplayExtractor(cfg.ReplayDir, logger), nil
	case common.ExtractModeHTTP:
		return extract.NewHTTPExtractor(extract.HTTPConfig{
			URL:       cfg.URL,
			APIKey:    cfg.APIKey,
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			Burst:     cfg.Burst,
		}, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown extract mode %q", cfg.Mode), common.ErrConfig)
	}
}

// Bench bundles an orchestrator with the resources it holds.
type Bench struct {
	Orchestrator *benchmark.Orchestrator
	ledger       *repo.Ledger
	logger       *slog.Logger
}

// NewBench wires extraction, references, verification and the optional ledger
// into an orchestrator.
func NewBench(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Bench, error) {
	if logger == nil {
		logger = slog.Default()
	}
	extractor, err := NewExtractor(cfg.Extract, logger)
	if err != nil {
		return nil, err
	}
	ledger, err := ConnectLedger(ctx, cfg.Ledger, logger)
	if err != nil {
		return nil, err
	}

	lengths := checksum.DefaultLengths()
	engine := verify.NewEngine(patterns.Default(lengths), checksum.NewValidator(lengths))
	refs := repo.NewReferenceRepository(cfg.Benchmark.LabelsDir, logger)

	// a nil *Ledger must not become a non-nil interface
	var runLedger benchmark.RunLedger
	if ledger != nil {
		runLedger = ledger
	}
	return &Bench{
		Orchestrator: benchmark.New(cfg.Benchmark, extractor, refs, engine, runLedger, logger),
		ledger:       ledger,
		logger:       logger,
	}, nil
}

// Close releases the ledger connection, if any.
func (b *Bench) Close() {
	if b.ledger != nil {
		b.ledger.Close()
	}
}
