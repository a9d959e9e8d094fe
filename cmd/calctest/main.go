// Copyright 2026 OSIsoft, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// calctest runs the event-triggered calculation scenario end to end against
// a Data Archive: it provisions the configured tags, launches the engine
// executable, injects values, verifies the outputs and tears the tags down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/archive"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/config"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/engine"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/env"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/harness"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/logger"
	"github.com/osisoft/sample-event-triggered-calculation-go/pkg/metrics"
)

func main() {
	// Initialize the global logger first thing
	logger.Initialize()
	log := logger.For(logger.ComponentHarness)

	engineCmd := flag.String("engine", "", "engine executable to launch (required)")
	flag.Parse()

	if *engineCmd == "" {
		log.Error("No engine executable given, use -engine")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load the config named by CONFIG_PATH (default config.json)
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Errorw("Failed to load config", "error", err)
		os.Exit(1)
	}
	log.Infow("Loaded config", "archive", cfg.DataArchiveAddress, "contexts", len(cfg.Contexts))

	// Start the metrics server (if enabled)
	metricsPort, err := env.GetAsInt("METRICS_PORT", false, 0)
	if err != nil {
		log.Errorw("Failed to read METRICS_PORT", "error", err)
		os.Exit(1)
	}
	if metricsPort > 0 {
		server := metrics.SetupMetricsEndpoint(fmt.Sprintf(":%d", metricsPort))
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Errorw("Failed to shutdown metrics server", "error", err)
			}
		}()
	}

	// Pacing can be overridden per run, e.g. WRITE_INTERVAL=2s KEEP_TAGS=1.
	opts, err := harness.OptionsFromEnv()
	if err != nil {
		log.Errorw("Failed to read options from environment", "error", err)
		os.Exit(1)
	}

	client := archive.NewDataArchive(cfg.DataArchiveAddress)
	h := harness.New(cfg, client, opts)

	if err := h.Run(ctx, engine.Command(*engineCmd, flag.Args()...)); err != nil {
		log.Errorw("Scenario failed", "error", err)
		_ = logger.Sync()
		os.Exit(1)
	}

	log.Info("Scenario passed")
	_ = logger.Sync()
}
