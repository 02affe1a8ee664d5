package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/invoice-bench/internal/benchmark"
	"github.com/joseph-ayodele/invoice-bench/internal/common"
	"github.com/joseph-ayodele/invoice-bench/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	cfg := common.LoadConfig()

	// CLI flags override the environment for one-off runs
	var (
		docs          = flag.String("docs", cfg.Benchmark.DocumentsDir, "directory of benchmark documents")
		labels        = flag.String("labels", cfg.Benchmark.LabelsDir, "directory of reference records (<stem>.json)")
		out           = flag.String("out", cfg.Benchmark.OutputDir, "output directory for result files")
		variants      = flag.String("variants", "", "comma-separated pipeline variants (overrides BENCH_VARIANTS)")
		workers       = flag.Int("workers", cfg.Benchmark.Workers, "concurrent workers; 1 runs tasks in order")
		label         = flag.String("label", cfg.Benchmark.RunLabel, "run label used in output file names")
		replay        = flag.String("replay", "", "replay directory; selects replay extraction")
		aggregateOnly = flag.Bool("aggregate-only", false, "only recompute the aggregate from the existing results")
	)
	flag.Parse()

	cfg.Benchmark.DocumentsDir = *docs
	cfg.Benchmark.LabelsDir = *labels
	cfg.Benchmark.OutputDir = *out
	cfg.Benchmark.Workers = *workers
	cfg.Benchmark.RunLabel = *label
	if *variants != "" {
		cfg.Benchmark.Variants = common.SplitList(*variants)
	}
	if *replay != "" {
		cfg.Extract.Mode = common.ExtractModeReplay
		cfg.Extract.ReplayDir = *replay
	}

	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	validate := cfg.Validate
	if *aggregateOnly {
		validate = cfg.ValidateAggregate
	}
	if err := validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bench, err := server.NewBench(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up benchmark", "error", err)
		os.Exit(1)
	}
	defer bench.Close()

	var stats benchmark.RunStats
	if !*aggregateOnly {
		logger.Info("starting benchmark pass",
			"documents", cfg.Benchmark.DocumentsDir,
			"variants", cfg.Benchmark.Variants,
			"workers", cfg.Benchmark.Workers,
		)
		stats, err = bench.Orchestrator.Run(ctx)
		if err != nil {
			logger.Error("benchmark pass failed", "error", err)
			bench.Close()
			os.Exit(1)
		}
	}

	// the aggregate is recomputed even when the pass was interrupted
	aggs, err := bench.Orchestrator.Aggregate(context.Background())
	if err != nil {
		logger.Error("failed to aggregate results", "error", err)
		bench.Close()
		os.Exit(1)
	}

	fmt.Printf("Benchmark pass complete!\n")
	if !*aggregateOnly {
		fmt.Printf("- Run: %s\n", stats.RunID)
		fmt.Printf("- Tasks queued: %d (already done: %d)\n", stats.Queued, stats.Discover.Completed)
		fmt.Printf("- Persisted: %d\n", stats.Persisted)
		fmt.Printf("- Failed (retried next run): %d\n", stats.Failed)
	}
	for _, a := range aggs {
		fmt.Printf("- %-24s tasks=%-4d accuracy=%.3f f1=%.3f accepted=%.3f\n", a.Variant, a.Tasks, a.MeanAccuracy, a.MeanF1, a.AcceptanceRate)
	}
	fmt.Printf("- Output: %s\n", benchmark.AggregatePath(cfg.Benchmark.OutputDir, cfg.Benchmark.RunLabel))
}
