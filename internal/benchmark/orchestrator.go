package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/async"
	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/extract"
	"github.com/joseph-ayodele/invoice-bench/internal/match"
	"github.com/joseph-ayodele/invoice-bench/internal/repository"
	"github.com/joseph-ayodele/invoice-bench/internal/verify"
)

// RunLedger records passes and task failures for auditing.
type RunLedger interface {
	StartRun(ctx context.Context, run repository.RunRecord) error
	FinishRun(ctx context.Context, run repository.RunRecord) error
	RecordFailure(ctx context.Context, f repository.TaskFailure) error
}

// RunStats summarizes one pass.
type RunStats struct {
	RunID     string
	Discover  DiscoverStats
	Queued    int
	Persisted int
	Failed    int
	Skipped   int // queued but never dispatched or handled
	Elapsed   time.Duration
}

// Orchestrator runs benchmark passes: discovery, dispatch to a worker pool,
// scoring and persistence.
type Orchestrator struct {
	cfg        common.BenchmarkConfig
	extractor  extract.Extractor
	references repository.ReferenceRepository
	engine     *verify.Engine
	ledger     RunLedger
	logger     *slog.Logger
	now        func() time.Time
}

// New wires an orchestrator. ledger may be nil; a nil engine uses the default
// pattern library and country-length table.
func New(
	cfg common.BenchmarkConfig,
	extractor extract.Extractor,
	references repository.ReferenceRepository,
	engine *verify.Engine,
	ledger RunLedger,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if engine == nil {
		engine = verify.NewEngine(nil, nil)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Orchestrator{
		cfg:        cfg,
		extractor:  extractor,
		references: references,
		engine:     engine,
		ledger:     ledger,
		logger:     logger,
		now:        time.Now,
	}
}

// pass is the state shared by the workers of one Run.
type pass struct {
	runID     string
	store     *ResultStore
	persisted atomic.Int64
	failed    atomic.Int64
}

// Run performs one pass over every task not yet in the result store. Task
// failures are logged and left for the next pass; only a persistence failure
// is returned as an error. Cancelling ctx stops dispatching; tasks already
// handed to a worker run to completion.
func (o *Orchestrator) Run(ctx context.Context) (RunStats, error) {
	start := o.now()
	p := &pass{runID: uuid.NewString()}
	stats := RunStats{RunID: p.runID}
	logger := o.logger.With("run_id", p.runID)

	store, err := OpenResultStore(o.cfg.OutputDir, o.cfg.RunLabel, logger)
	if err != nil {
		return stats, err
	}
	p.store = store
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("bench.store.close_failed", "error", err)
		}
	}()

	completed, err := store.CompletedKeys()
	if err != nil {
		return stats, err
	}
	tasks, dstats, err := Discover(ctx, DiscoverConfig{
		DocumentsDir: o.cfg.DocumentsDir,
		LabelsDir:    o.cfg.LabelsDir,
		Variants:     o.cfg.Variants,
		SkipHidden:   o.cfg.SkipHidden,
	}, completed, logger)
	stats.Discover = dstats
	if err != nil {
		return stats, fmt.Errorf("discover: %w", err)
	}
	stats.Queued = len(tasks)

	o.startRun(ctx, logger, repository.RunRecord{RunID: p.runID, Label: o.cfg.RunLabel, StartedAt: start, Queued: len(tasks)})

	pool := async.NewWorkerPool[Task](o.handler(p, logger), logger,
		async.WithWorkers(o.cfg.Workers),
		async.WithQueueSize(o.cfg.QueueSize),
		async.WithProcessTimeout(o.cfg.TaskTimeout),
	)

	dispatched := 0
dispatch:
	for _, t := range tasks {
		select {
		case <-ctx.Done():
			logger.Warn("bench.dispatch.canceled", "dispatched", dispatched, "queued", len(tasks))
			break dispatch
		default:
		}
		if err := pool.Enqueue(ctx, t); err != nil {
			if !errors.Is(err, common.ErrQueueClosed) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logger.Error("bench.dispatch.failed", "error", err)
			}
			break dispatch
		}
		dispatched++
	}

	// in-flight tasks finish on their own context
	fatal := pool.Shutdown(context.Background())

	stats.Persisted = int(p.persisted.Load())
	stats.Failed = int(p.failed.Load())
	stats.Skipped = stats.Queued - stats.Persisted - stats.Failed
	stats.Elapsed = o.now().Sub(start)

	status := constants.RunStatusCompleted
	if fatal != nil || ctx.Err() != nil {
		status = constants.RunStatusAborted
	}
	o.finishRun(logger, repository.RunRecord{
		RunID:      p.runID,
		FinishedAt: o.now(),
		Persisted:  stats.Persisted,
		Failed:     stats.Failed,
		Status:     status,
	})

	logger.Info("bench.run.done",
		"status", status,
		"queued", stats.Queued,
		"persisted", stats.Persisted,
		"failed", stats.Failed,
		"skipped", stats.Skipped,
		"elapsed_ms", stats.Elapsed.Milliseconds(),
	)
	if fatal != nil {
		return stats, fatal
	}
	return stats, nil
}

func (o *Orchestrator) handler(p *pass, logger *slog.Logger) async.Handler[Task] {
	return func(ctx context.Context, workerID int, t Task) error {
		start := o.now()
		tlog := logger.With("document", t.Document, "variant", t.Variant, "worker_id", workerID)

		row, err := o.execute(common.WithLogger(common.WithRunID(ctx, p.runID), tlog), p.runID, &t)
		if err != nil {
			p.failed.Add(1)
			tlog.Warn("bench.task.failed", "error", err, "elapsed_ms", o.now().Sub(start).Milliseconds())
			o.recordFailure(tlog, repository.TaskFailure{
				RunID:    p.runID,
				Document: t.Document,
				Variant:  t.Variant,
				Error:    err.Error(),
				FailedAt: o.now(),
			})
			return nil
		}

		if err := p.store.Append(row); err != nil {
			return fmt.Errorf("persist %s: %w", t.Key, err)
		}
		if err := t.advance(constants.TaskStatusPersisted); err != nil {
			return err
		}
		p.persisted.Add(1)

		tlog.Info("bench.task.ok",
			"accuracy", row.Scorecard.Accuracy,
			"f1", row.Scorecard.F1,
			"accepted", row.Scorecard.Accepted,
			"elapsed_ms", o.now().Sub(start).Milliseconds(),
		)
		return nil
	}
}

// execute moves t from Queued to Scored. On failure t goes back to Queued.
func (o *Orchestrator) execute(ctx context.Context, runID string, t *Task) (row ResultRow, err error) {
	if err := t.advance(constants.TaskStatusRunning); err != nil {
		return ResultRow{}, err
	}
	defer func() {
		if err != nil {
			_ = t.advance(constants.TaskStatusQueued)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	logger := common.LoggerFromContext(ctx, o.logger)

	ref, err := o.references.Load(ctx, t.Document)
	if err != nil {
		return ResultRow{}, fmt.Errorf("load reference: %w", err)
	}
	ext, err := o.extractor.Extract(ctx, t.DocumentPath, t.Variant)
	if err != nil {
		return ResultRow{}, fmt.Errorf("extract: %w", err)
	}

	verified, corrections := o.engine.Run(ext.Record, ext.RawText)
	for _, c := range corrections {
		logger.Info("verify."+string(c.Field)+"."+string(c.Action),
			"before", c.Before,
			"after", c.After,
			"pattern", c.Pattern,
		)
	}
	cand := verify.Finalize(verified)

	sc := match.Score(ref, cand)
	if err := t.advance(constants.TaskStatusScored); err != nil {
		return ResultRow{}, err
	}
	return ResultRow{
		Key:        t.Key,
		Scorecard:  sc,
		Timings:    ext.Timings.Normalized(),
		PageCount:  ext.PageCount,
		RunID:      runID,
		FinishedAt: o.now(),
	}, nil
}

// Aggregate recomputes the aggregate CSV (and workbook, when enabled) from the
// whole result store.
func (o *Orchestrator) Aggregate(ctx context.Context) ([]VariantAggregate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := o.now()
	aggs, err := AggregateFile(SummaryPath(o.cfg.OutputDir, o.cfg.RunLabel), o.logger)
	if err != nil {
		return nil, err
	}
	if err := WriteAggregateCSV(AggregatePath(o.cfg.OutputDir, o.cfg.RunLabel), aggs); err != nil {
		return nil, err
	}
	if o.cfg.ExportXLSX {
		if err := ExportXLSX(WorkbookPath(o.cfg.OutputDir, o.cfg.RunLabel), aggs, o.logger); err != nil {
			return aggs, err
		}
	}
	o.logger.Info("bench.aggregate.ok", "variants", len(aggs), "elapsed_ms", o.now().Sub(start).Milliseconds())
	return aggs, nil
}

func (o *Orchestrator) startRun(ctx context.Context, logger *slog.Logger, run repository.RunRecord) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.StartRun(ctx, run); err != nil {
		logger.Warn("bench.ledger.failed", "op", "start_run", "error", err)
	}
}

func (o *Orchestrator) finishRun(logger *slog.Logger, run repository.RunRecord) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.FinishRun(context.Background(), run); err != nil {
		logger.Warn("bench.ledger.failed", "op", "finish_run", "error", err)
	}
}

func (o *Orchestrator) recordFailure(logger *slog.Logger, f repository.TaskFailure) {
	if o.ledger == nil {
		return
	}
	if err := o.ledger.RecordFailure(context.Background(), f); err != nil {
		logger.Warn("bench.ledger.failed", "op", "record_failure", "error", err)
	}
}

var _ RunLedger = (*repository.Ledger)(nil)
