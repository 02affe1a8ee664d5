package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/invoice-bench/internal/common"
)

// Open connects the run ledger. Postgres DSNs go through a pgx pool wrapped as
// *sql.DB; any other DSN is treated as a SQLite database path.
func Open(ctx context.Context, cfg common.LedgerConfig, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Postgres() {
		logger.Info("opening sqlite ledger", "path", cfg.DSN)
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			logger.Error("failed to open sqlite ledger", "error", err)
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// one writer at a time
		db.SetMaxOpenConns(1)
		l := NewLedger(db, dialect.SQLite, logger)
		if err := l.HealthCheck(ctx, cfg.DialTimeout); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping sqlite: %w", err)
		}
		return l, nil
	}

	logger.Info("connecting to ledger database")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse ledger dsn", "error", err)
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "invoice-bench"

	dialCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		logger.Error("failed to connect to ledger database", "error", err)
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Wrap pool as *sql.DB for the ent driver
	l := NewLedger(stdlib.OpenDBFromPool(pool), dialect.Postgres, logger)
	l.pool = pool
	if err := l.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		l.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("successfully connected to ledger database")
	return l, nil
}

// NewLedger wraps an open database. name is an ent dialect (dialect.Postgres or dialect.SQLite).
func NewLedger(db *sql.DB, name string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		db:      db,
		drv:     entsql.OpenDB(name, db),
		dialect: name,
		log:     logger,
	}
}

// Close closes the database connections gracefully.
func (l *Ledger) Close() {
	l.log.Info("closing ledger connections")
	if err := l.drv.Close(); err != nil {
		l.log.Error("failed to close ledger driver", "error", err)
	}
	if l.pool != nil {
		l.pool.Close()
	}
	l.log.Info("ledger connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (l *Ledger) HealthCheck(ctx context.Context, timeout time.Duration) error {
	l.log.Debug("pinging ledger database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return l.db.PingContext(ctx)
}
