package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kapu/blockext-go/internal/app"
	"github.com/kapu/blockext-go/internal/config"
	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	buildTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "extd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Block extension daemon starting",
		zap.String("host", cfg.Host.BaseURL),
		zap.String("log_level", cfg.Logging.Level),
	)

	buildCtx, cancelBuild := context.WithTimeout(context.Background(), buildTimeout)
	container, err := app.Build(buildCtx, cfg, logger)
	cancelBuild()
	if err != nil {
		logger.Error("Failed to assemble extension services", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return container.Start(gctx) })

	logger.Info("Extensions attached, waiting for signals")
	runErr := g.Wait()
	if runErr != nil {
		logger.Error("Extension runtime error", zap.Error(runErr))
	} else {
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := container.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return runErr
}
