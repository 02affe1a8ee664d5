package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/invoice-bench/internal/common"
)

// PassFunc runs one benchmark pass.
type PassFunc func(ctx context.Context) error

// Daemon runs passes one at a time. Triggers that arrive while a pass is running
// collapse into a single follow-up pass.
type Daemon struct {
	pass    PassFunc
	health  *health.Server
	trigger chan struct{}
	logger  *slog.Logger
}

func NewDaemon(pass PassFunc, hs *health.Server, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		pass:    pass,
		health:  hs,
		trigger: make(chan struct{}, 1),
		logger:  logger,
	}
}

// Trigger schedules a pass. It never blocks.
func (d *Daemon) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Run runs an initial pass and then one pass per (coalesced) trigger until ctx
// is done. A fatal pass error marks the health service NOT_SERVING and is
// returned; other pass errors are logged.
func (d *Daemon) Run(ctx context.Context) error {
	d.setStatus(healthpb.HealthCheckResponse_SERVING)
	d.Trigger()
	passes := 0
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon.stopped", "passes", passes)
			return nil
		case <-d.trigger:
		}

		passes++
		start := time.Now()
		err := d.pass(ctx)
		switch {
		case err == nil:
			d.logger.Info("daemon.pass.done", "pass", passes, "elapsed_ms", time.Since(start).Milliseconds())
		case common.IsFatal(err):
			d.logger.Error("daemon.pass.fatal", "pass", passes, "error", err)
			d.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
			return err
		default:
			d.logger.Warn("daemon.pass.failed", "pass", passes, "error", err)
		}
	}
}

func (d *Daemon) setStatus(s healthpb.HealthCheckResponse_ServingStatus) {
	if d.health != nil {
		d.health.SetServingStatus("", s)
	}
}
