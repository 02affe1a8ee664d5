package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/invoice-bench/internal/common"
	repo "github.com/joseph-ayodele/invoice-bench/internal/repository"
)

// ConnectLedger opens the run ledger and creates its tables. It returns nil
// without error when no DSN is configured.
func ConnectLedger(ctx context.Context, cfg common.LedgerConfig, logger *slog.Logger) (*repo.Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		logger.Debug("run ledger disabled")
		return nil, nil
	}
	ledger, err := repo.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to ledger", "error", err)
		return nil, err
	}
	if err := ledger.CreateTables(ctx); err != nil {
		ledger.Close()
		return nil, err
	}
	logger.Info("run ledger ready", "postgres", cfg.Postgres())
	return ledger, nil
}
