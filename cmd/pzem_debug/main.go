// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/app"
	"github.com/rziguihassene-ctrl/Raspberry-DHT22-PZEM-004T-Serveur-web-SQLLite/internal/config"
)

func main() {
	configPath := flag.String("config", "surveillance_config.txt", "path to the KEY=VALUE config file")
	count := flag.Int("n", 1, "number of dumps, 0 for continuous")
	interval := flag.Duration("interval", time.Second, "pause between dumps")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunPZEMDebug(ctx, cfg, logger, os.Stdout, *count, *interval); err != nil {
		logger.WithError(err).Fatal("pzem_debug failed")
	}
}
