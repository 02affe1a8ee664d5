package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/common"
)

const (
	tableRuns     = "bench_runs"
	tableFailures = "bench_task_failures"
)

// Ledger is the optional audit trail of benchmark passes. Resumability never
// depends on it.
type Ledger struct {
	db      *sql.DB
	drv     *entsql.Driver
	pool    *pgxpool.Pool
	dialect string
	log     *slog.Logger
}

// RunRecord is one row of bench_runs.
type RunRecord struct {
	RunID      string
	Label      string
	StartedAt  time.Time
	FinishedAt time.Time
	Queued     int
	Persisted  int
	Failed     int
	Status     constants.RunStatus
}

// TaskFailure is one row of bench_task_failures.
type TaskFailure struct {
	RunID    string
	Document string
	Variant  string
	Error    string
	FailedAt time.Time
}

func (l *Ledger) builder() *entsql.DialectBuilder {
	return entsql.Dialect(l.dialect)
}

func (l *Ledger) timeType() string {
	if l.dialect == dialect.Postgres {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}

func (l *Ledger) exec(ctx context.Context, op, query string, args []any) error {
	if err := l.drv.Exec(ctx, query, args, nil); err != nil {
		l.log.Error("ledger."+op+".failed", "error", err)
		return common.NewAppError("LEDGER", op, fmt.Errorf("%w: %w", common.ErrPersistence, err))
	}
	return nil
}

const (
	ddlRuns = `CREATE TABLE IF NOT EXISTS "bench_runs" (
	"run_id" TEXT NOT NULL,
	"label" TEXT NOT NULL,
	"started_at" %[1]s NOT NULL,
	"finished_at" %[1]s NULL,
	"queued" INTEGER NOT NULL DEFAULT 0,
	"persisted" INTEGER NOT NULL DEFAULT 0,
	"failed" INTEGER NOT NULL DEFAULT 0,
	"status" TEXT NOT NULL,
	PRIMARY KEY ("run_id")
)`
	ddlFailures = `CREATE TABLE IF NOT EXISTS "bench_task_failures" (
	"run_id" TEXT NOT NULL,
	"document" TEXT NOT NULL,
	"variant" TEXT NOT NULL,
	"error" TEXT NOT NULL,
	"failed_at" %[1]s NOT NULL,
	PRIMARY KEY ("run_id", "document", "variant")
)`
)

// CreateTables creates the ledger tables when they do not exist yet.
func (l *Ledger) CreateTables(ctx context.Context) error {
	if err := l.exec(ctx, "create_runs", fmt.Sprintf(ddlRuns, l.timeType()), nil); err != nil {
		return err
	}
	return l.exec(ctx, "create_failures", fmt.Sprintf(ddlFailures, l.timeType()), nil)
}

// StartRun inserts the row of a pass that has just been queued.
func (l *Ledger) StartRun(ctx context.Context, run RunRecord) error {
	query, args := l.builder().Insert(tableRuns).
		Columns("run_id", "label", "started_at", "queued", "status").
		Values(run.RunID, run.Label, run.StartedAt.UTC(), run.Queued, string(constants.RunStatusRunning)).
		Query()
	if err := l.exec(ctx, "start_run", query, args); err != nil {
		return err
	}
	l.log.Debug("ledger.run.started", "run_id", run.RunID, "queued", run.Queued)
	return nil
}

// FinishRun stores the final counters and status of a pass.
func (l *Ledger) FinishRun(ctx context.Context, run RunRecord) error {
	query, args := l.builder().Update(tableRuns).
		Set("finished_at", run.FinishedAt.UTC()).
		Set("persisted", run.Persisted).
		Set("failed", run.Failed).
		Set("status", string(run.Status)).
		Where(entsql.EQ("run_id", run.RunID)).
		Query()
	if err := l.exec(ctx, "finish_run", query, args); err != nil {
		return err
	}
	l.log.Debug("ledger.run.finished", "run_id", run.RunID, "status", run.Status)
	return nil
}

// RecordFailure stores why a task of a pass failed.
func (l *Ledger) RecordFailure(ctx context.Context, f TaskFailure) error {
	query, args := l.builder().Insert(tableFailures).
		Columns("run_id", "document", "variant", "error", "failed_at").
		Values(f.RunID, f.Document, f.Variant, f.Error, f.FailedAt.UTC()).
		Query()
	return l.exec(ctx, "record_failure", query, args)
}

// Run reads back the counters of one pass. Timestamps are not returned.
func (l *Ledger) Run(ctx context.Context, runID string) (RunRecord, error) {
	query, args := l.builder().
		Select("label", "queued", "persisted", "failed", "status").
		From(entsql.Table(tableRuns)).
		Where(entsql.EQ("run_id", runID)).
		Query()

	var rows entsql.Rows
	if err := l.drv.Query(ctx, query, args, &rows); err != nil {
		return RunRecord{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return RunRecord{}, fmt.Errorf("query run: %w", err)
		}
		return RunRecord{}, common.NewAppError("RUN_NOT_FOUND", runID, common.ErrNotFound)
	}
	run := RunRecord{RunID: runID}
	var status string
	if err := rows.Scan(&run.Label, &run.Queued, &run.Persisted, &run.Failed, &status); err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = constants.RunStatus(status)
	return run, nil
}

// CountFailures returns how many task failures a pass recorded.
func (l *Ledger) CountFailures(ctx context.Context, runID string) (int, error) {
	query, args := l.builder().
		Select(entsql.Count("*")).
		From(entsql.Table(tableFailures)).
		Where(entsql.EQ("run_id", runID)).
		Query()

	var rows entsql.Rows
	if err := l.drv.Query(ctx, query, args, &rows); err != nil {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	defer rows.Close()

	n, err := entsql.ScanInt(rows)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count failures: %w", err)
	}
	return n, nil
}
