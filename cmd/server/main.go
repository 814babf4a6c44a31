// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	// Kennel timezones must resolve even in scratch containers without
	// a system zoneinfo database.
	_ "time/tzdata"

	"github.com/harrierpack/trailhound/internal/alerting"
	"github.com/harrierpack/trailhound/internal/api"
	"github.com/harrierpack/trailhound/internal/config"
	"github.com/harrierpack/trailhound/internal/database"
	"github.com/harrierpack/trailhound/internal/health"
	"github.com/harrierpack/trailhound/internal/intake"
	"github.com/harrierpack/trailhound/internal/journal"
	"github.com/harrierpack/trailhound/internal/logging"
	"github.com/harrierpack/trailhound/internal/merge"
	"github.com/harrierpack/trailhound/internal/metrics"
	"github.com/harrierpack/trailhound/internal/models"
	"github.com/harrierpack/trailhound/internal/reconcile"
	"github.com/harrierpack/trailhound/internal/resolver"
	"github.com/harrierpack/trailhound/internal/scrape"
	"github.com/harrierpack/trailhound/internal/supervisor"
	"github.com/harrierpack/trailhound/internal/supervisor/services"
)

// version is stamped at release time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize zerolog with configuration
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().Str("version", version).Msg("Starting Trailhound with supervisor tree")
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Bool("journal_enabled", cfg.Journal.Enabled).
		Msg("Configuration loaded")

	// Hot-reload the log level when the config file changes. Everything
	// else stays fixed until restart.
	if configPath := config.FindConfigFile(); configPath != "" {
		err := config.WatchConfigFile(configPath, func() {
			newCfg, err := config.Load()
			if err != nil {
				logging.Err(err).Msg("Config reload failed; keeping current settings")
				return
			}
			logging.SetLevelString(newCfg.Logging.Level)
			logging.Info().Str("level", newCfg.Logging.Level).Msg("Log level reloaded from config file")
		})
		if err != nil {
			logging.Warn().Err(err).Str("path", configPath).Msg("Config file watch unavailable")
		}
	}

	// Initialize the DuckDB catalog store (runs schema migrations)
	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// Seed the built-in kennel pattern rules on first start. The seeder
	// is a no-op once the table has rows, so operator edits survive
	// restarts.
	if cfg.Pipeline.SeedPatternRules {
		seeded, err := db.SeedPatternRules(context.Background(), resolver.DefaultPatternRules())
		if err != nil {
			// Close database before fatal exit to ensure defer runs
			if closeErr := db.Close(); closeErr != nil {
				logging.Error().Err(closeErr).Msg("Error closing database")
			}
			logging.Fatal().Err(err).Msg("Failed to seed kennel pattern rules")
		}
		if seeded > 0 {
			logging.Info().Int("rules", seeded).Msg("Seeded default kennel pattern rules")
		}
	}

	// Load the pattern table once; the resolver, merge engine, and
	// reconciler all share it.
	rules, err := db.ListPatternRules(context.Background())
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing database")
		}
		logging.Fatal().Err(err).Msg("Failed to load kennel pattern rules")
	}
	patterns, err := resolver.NewPatternTable(rules)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error().Err(closeErr).Msg("Error closing database")
		}
		logging.Fatal().Err(err).Msg("Failed to compile kennel pattern rules")
	}
	logging.Info().Int("rules", len(rules)).Msg("Kennel pattern table ready")

	// Assemble the ingestion pipeline
	merger := merge.New(db, patterns, cfg.Pipeline.ResolverCacheSize, cfg.Pipeline.ErrorCap)
	recon := reconcile.New(db, patterns, cfg.Pipeline.ResolverCacheSize)
	analyzer := health.New(db, cfg.Health)
	var notifier alerting.Notifier
	if cfg.Alerting.WebhookEnabled {
		notifier = alerting.NewWebhookNotifier(cfg.Alerting)
		logging.Info().Str("url", cfg.Alerting.WebhookURL).Msg("Alert webhook notifier enabled")
	}
	alertManager := alerting.NewManager(db, notifier)
	pipelineRunner := scrape.NewRunner(db, merger, recon, analyzer, alertManager, cfg.Pipeline)
	logging.Info().
		Int("reconcile_window_days", cfg.Pipeline.ReconcileWindowDays).
		Int("error_cap", cfg.Pipeline.ErrorCap).
		Msg("Ingestion pipeline assembled")

	// Open the crash journal and replay anything a previous run left
	// unconfirmed. Replay runs before the intake consumer starts so
	// recovered payloads and live payloads cannot interleave.
	var jrnl *journal.Journal
	if cfg.Journal.Enabled {
		jrnl, err = journal.Open(cfg.Journal)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open crash journal")
		}
		defer func() {
			if err := jrnl.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing crash journal")
			}
		}()
		logging.Info().
			Str("path", cfg.Journal.Path).
			Int64("pending", jrnl.PendingCount()).
			Msg("Crash journal opened")

		if cfg.Journal.ReplayOnStartup {
			replayHandler := journal.HandlerFunc(func(ctx context.Context, payload *models.ScrapePayload) error {
				_, err := pipelineRunner.Run(ctx, payload)
				if errors.Is(err, scrape.ErrUnknownSource) {
					// The source was deleted since the payload was
					// journaled. Confirm the entry so it does not
					// replay forever.
					logging.Warn().Int64("source_id", payload.SourceID).Msg("Dropping journaled payload for unknown source")
					return nil
				}
				return err
			})
			if _, err := jrnl.Replay(context.Background(), replayHandler); err != nil {
				// Failed entries stay pending for the next start, so a
				// partial replay is not fatal.
				logging.Error().Err(err).Msg("Journal replay did not complete")
			}
		}
	} else {
		logging.Info().Msg("Crash journal disabled (TRAILHOUND_JOURNAL_ENABLED=false)")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	startTime := time.Now()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.AppUptime.Set(time.Since(startTime).Seconds())
			}
		}
	}()

	// Create supervisor tree; sutureslog bridges its events to zerolog
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// Initialize NATS intake (optional). The journal pointer must not
	// be wrapped in the interface while nil or the consumer would see a
	// non-nil journal backed by nothing.
	var payloadJournal intake.PayloadJournal
	if jrnl != nil {
		payloadJournal = jrnl
	}
	intakeComponents, err := InitIntake(cfg, pipelineRunner, payloadJournal)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS intake")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Data layer services
	if jrnl != nil {
		tree.AddDataService(services.NewJournalGCService(jrnl, cfg.Journal.GCInterval))
		logging.Info().Dur("interval", cfg.Journal.GCInterval).Msg("Journal GC added to supervisor tree")
	}

	// Messaging layer services
	if intakeComponents != nil {
		tree.AddMessagingService(services.NewIntakeService(intakeComponents, 10*time.Second))
		logging.Info().Msg("NATS intake added to supervisor tree")
	}

	// API layer services
	handler := api.NewHandler(db, cfg.API)
	router := api.NewRouter(handler, cfg.API)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
