package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/all-mute/tg-sleepwatch/internal/app"
	"github.com/all-mute/tg-sleepwatch/internal/config"
	"github.com/all-mute/tg-sleepwatch/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(cfg, log)
	if err != nil {
		log.Error("init failed", zap.Error(err))
		return err
	}
	if err := a.Run(context.Background()); err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}
	return nil
}
