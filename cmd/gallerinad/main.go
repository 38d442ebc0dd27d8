package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"gallerina/internal/config"
	"gallerina/internal/daemon"
	"gallerina/internal/dirindex"
	"gallerina/internal/jobs"
	"gallerina/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/gallerina/config.toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return
	}

	var index *dirindex.Index
	if cfg.Index.Enabled {
		index, err = dirindex.Open(cfg)
		if err != nil {
			logger.Error("open directory index", logging.Error(err))
			_ = store.Close()
			return
		}
	}

	d, err := daemon.New(cfg, store, index, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("gallerinad shutting down")
}
