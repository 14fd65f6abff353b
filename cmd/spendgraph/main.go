// Command spendgraph runs the transaction extraction pipeline: it streams a
// flat CSV export through the configured entity stores and writes normalized
// entity and transaction-chunk JSON artifacts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"spendgraph/internal/blob"
	"spendgraph/internal/config"
	"spendgraph/internal/persistence"
	"spendgraph/internal/pipeline"
)

var exitFunc = os.Exit

func main() {
	configPath := flag.String("config", "config.yaml", "path to the pipeline configuration file")
	inputPath := flag.String("input", "", "path to the CSV export to process")
	outputDir := flag.String("output", "", "override for the configured output directory")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		exitFunc(1)
		return
	}
	defer func() { _ = logger.Sync() }()

	if *inputPath == "" {
		logger.Error("missing required -input flag")
		exitFunc(2)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *inputPath, *outputDir, logger); err != nil {
		logger.Error("run failed", zap.Error(err))
		exitFunc(1)
	}
}

func run(ctx context.Context, configPath, inputPath, outputDir string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if outputDir != "" {
		cfg.Output.Directory = outputDir
	}

	artifacts, err := blob.Open(ctx, cfg.Blob, cfg.Output.Directory)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}

	checkpoint, err := persistence.Open(ctx, cfg.Checkpoint)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	if checkpoint != nil {
		defer func() { _ = checkpoint.Close() }()
	}

	input, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = input.Close() }()

	metrics := pipeline.NewMetrics(prometheus.DefaultRegisterer)
	orchestrator, err := pipeline.New(cfg, artifacts, checkpoint, nil, metrics, logger)
	if err != nil {
		return err
	}

	summary, runErr := orchestrator.Run(ctx, input)
	if encoded, err := json.MarshalIndent(summary, "", "  "); err == nil {
		fmt.Println(string(encoded))
	}
	return runErr
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
