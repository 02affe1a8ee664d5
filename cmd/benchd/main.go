package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/ingest"
	"github.com/joseph-ayodele/invoice-bench/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	if err := cfg.ValidateDaemon(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bench, err := server.NewBench(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up benchmark", "error", err)
		os.Exit(1)
	}
	defer bench.Close()

	// gRPC server
	grpcServer := grpc.NewServer()
	// Health service
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.Watch.GRPCAddr)
	if err != nil {
		logger.Error("listen failed", "addr", cfg.Watch.GRPCAddr, "error", err)
		os.Exit(1)
	}
	logger.Info("gRPC health serving", "addr", cfg.Watch.GRPCAddr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc serve failed", "error", err)
			stop()
		}
	}()

	daemon := server.NewDaemon(func(ctx context.Context) error {
		if _, err := bench.Orchestrator.Run(ctx); err != nil {
			return err
		}
		_, err := bench.Orchestrator.Aggregate(ctx)
		return err
	}, hs, logger)

	events, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:      []string{cfg.Benchmark.DocumentsDir, cfg.Benchmark.LabelsDir},
		SkipHidden: cfg.Benchmark.SkipHidden,
		Debounce:   cfg.Watch.Debounce,
	}, logger)
	if err != nil {
		logger.Error("failed to start watcher", "error", err)
		grpcServer.Stop()
		bench.Close()
		os.Exit(1)
	}
	go func() {
		for {
			select {
			case batch, ok := <-events:
				if !ok {
					return
				}
				logger.Info("daemon.change.detected", "files", len(batch))
				daemon.Trigger()
			case err, ok := <-watchErrs:
				if !ok {
					return
				}
				logger.Warn("daemon.watch.error", "error", err)
			}
		}
	}()

	runErr := daemon.Run(ctx)

	logger.Info("shutting down...")
	grpcServer.GracefulStop()
	if runErr != nil {
		logger.Error("daemon stopped on fatal error", "error", runErr)
		bench.Close()
		os.Exit(1)
	}
	fmt.Println("stopped.")
}
