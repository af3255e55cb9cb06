// cmd/monofid/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/monofi/monofid/internal/config"
	"github.com/monofi/monofid/internal/daemon"
	"github.com/monofi/monofid/internal/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting monofid", zap.String("config", *configPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner, err := daemon.NewRunner(cfg, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize daemon", zap.Error(err))
	}

	if err := runner.Run(ctx); err != nil {
		log.Fatal("Daemon exited with error", zap.Error(err))
	}
}
