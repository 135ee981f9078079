package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"pinksync/internal/bootstrap"
	"pinksync/internal/config"
	"pinksync/internal/logger"
	"pinksync/internal/worker"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	mode := flag.String("mode", "", "loop or batch; overrides WORKER_MODE")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		fmt.Printf("Warning: could not load %s: %v\n", *envFile, err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.WorkerMode = *mode
		if err := cfg.Validate(); err != nil {
			fmt.Printf("Invalid -mode: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Encoding:   cfg.LogEncoding,
		OutputPath: cfg.LogOutput,
		Service:    cfg.ServiceName,
		Env:        cfg.Env,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log.Info("Configuration loaded", cfg.LogFields()...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to build components", zap.Error(err))
	}

	var runErr error
	switch cfg.WorkerMode {
	case config.WorkerModeBatch:
		runErr = runBatch(ctx, cfg, components, log)
	default:
		runErr = runLoop(ctx, cfg, components, log)
	}

	if err := components.Close(); err != nil {
		log.Error("Failed to close components", zap.Error(err))
	}
	if runErr != nil {
		log.Error("Worker exited with error", zap.Error(runErr))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Worker exited")
}

// runLoop polls the queue until the process is signalled. Jobs already
// claimed run to completion before Run returns.
func runLoop(ctx context.Context, cfg *config.Config, c *bootstrap.Components, log *zap.Logger) error {
	pool := c.NewPool(cfg.WorkerConcurrency)
	reaper := c.NewReaper()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reaper.Run(ctx)
	}()

	log.Info("Worker pool started", zap.Int("concurrency", cfg.WorkerConcurrency))
	err := pool.Run(ctx)
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runBatch drains at most BATCH_MAX_JOBS jobs within BATCH_MAX_DURATION and
// exits, for schedulers that start the worker periodically.
func runBatch(ctx context.Context, cfg *config.Config, c *bootstrap.Components, log *zap.Logger) error {
	if _, err := c.NewReaper().Sweep(ctx); err != nil {
		log.Warn("Reaper sweep before batch failed", zap.Error(err))
	}

	result, err := c.NewPool(cfg.WorkerConcurrency).ProcessBatch(ctx, cfg.BatchMaxJobs, cfg.BatchMaxDuration)
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}
	log.Info("Batch finished",
		zap.Int("processed", result.Processed),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed),
		zap.Int("abandoned", result.Abandoned),
		zap.Int64("duration_ms", result.DurationMs),
		zap.Bool("queue_empty", result.QueueEmpty),
	)

	if cfg.PushgatewayURL != "" {
		if err := worker.PushMetrics(cfg.PushgatewayURL, log); err != nil {
			log.Warn("Failed to push batch metrics", zap.Error(err))
		}
	}
	return nil
}
