// Command scanner runs the scanning control plane: the tick-loop
// scheduler, the discovery/ingest/matching pipeline, the feedback-signal
// observer, and the Prometheus metrics endpoint, all against a single
// sqlite database. Styled after the teacher's cmd/pulse/main.go (cobra
// root command, zerolog setup, signal-driven graceful shutdown) but
// without the web UI / WebSocket surface this service has no need of.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/divavault/scanner-core/internal/admin"
	"github.com/divavault/scanner-core/internal/cleanup"
	"github.com/divavault/scanner-core/internal/config"
	"github.com/divavault/scanner-core/internal/observer"
	"github.com/divavault/scanner-core/internal/providers"
	"github.com/divavault/scanner-core/internal/providers/aidetection"
	"github.com/divavault/scanner-core/internal/providers/facedetection"
	"github.com/divavault/scanner-core/internal/providers/matchscoring"
	"github.com/divavault/scanner-core/internal/resilience"
	"github.com/divavault/scanner-core/internal/scheduler"
	"github.com/divavault/scanner-core/internal/storage"
)

// Version information (set at build time with -ldflags).
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "scanner",
	Short:   "Scanning control plane for contributor face-matching",
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		run()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scanner %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.LogLevel != "" {
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}

	log.Info().Str("db", cfg.DatabasePath).Msg("starting scanning control plane")

	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	limiters := resilience.NewRegistry()
	breakers := resilience.NewBreakerRegistry()

	registry := providers.NewRegistry(cfg.FaceDetectionProvider, cfg.AIDetectionProvider, cfg.MatchScoringProvider)
	registry.RegisterFaceDetection("insightface", func() (providers.FaceDetectionProvider, error) {
		return facedetection.NewInsightFace(cfg.InsightFaceEndpoint), nil
	})
	registry.RegisterAIDetection("hive", func() (providers.AIDetectionProvider, error) {
		return aidetection.NewHive(cfg.HiveAPIKey, limiters.Get("hive"), breakers.Get("hive")), nil
	})
	registry.RegisterMatchScoring("static", func() (providers.MatchScorerProvider, error) {
		return matchscoring.NewStatic(cfg.Thresholds.Low, cfg.Thresholds.Medium, cfg.Thresholds.High), nil
	})
	registry.RegisterMatchScoring("ml", func() (providers.MatchScorerProvider, error) {
		defaults := matchscoring.Static{Low: cfg.Thresholds.Low, Medium: cfg.Thresholds.Medium, High: cfg.Thresholds.High}
		return matchscoring.NewML(db.ModelState, defaults), nil
	})

	obs := observer.New(db.Signals)

	sweeper := &cleanup.Sweeper{
		Images:        db.Images,
		Jobs:          db.Jobs,
		Notifications: db.Notifications,
		ScratchDir:    cfg.Ingest.ScratchDir,
		Retention:     cfg.Retention,
	}

	if err := seedJobs(db, cfg); err != nil {
		log.Error().Err(err).Msg("seed jobs failed, continuing with whatever jobs already exist")
	}

	tiersRef := config.NewTierTableRef(cfg.Tiers)
	thresholdsRef := config.NewThresholdsRef(cfg.Thresholds)

	owner := fmt.Sprintf("scanner-%d", os.Getpid())
	sched := scheduler.New(db.Jobs, schedulerConfig(cfg), owner)
	registerRunners(sched, db, cfg, tiersRef, thresholdsRef, registry, obs, limiters, breakers, sweeper)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startMetricsServer(ctx, cfg.MetricsAddr)
	startHealthServer(ctx, cfg.HealthAddr, db)
	startAdminServer(ctx, cfg.AdminAddr, db.Matches, obs)
	stopWatcher := startConfigWatcher(ctx, tiersRef, thresholdsRef)

	go func() {
		if err := sched.Run(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler stopped with error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutdown signal received, draining")
	sched.Stop()
	cancel()
	stopWatcher()
	time.Sleep(cfg.Scheduler.ShutdownGrace)
	obs.Shutdown()
	log.Info().Msg("shutdown complete")
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		TickInterval:        cfg.Scheduler.TickInterval,
		StaleJobMaxAge:      cfg.Scheduler.StaleJobMaxAge,
		ShutdownGrace:       cfg.Scheduler.ShutdownGrace,
		DueJobsLimitPerKind: cfg.Scheduler.DueJobsLimitPerKind,
		ConcurrencyPerKind:  cfg.Scheduler.ConcurrencyPerKind,
	}
}

// startHealthServer exposes a trivial liveness endpoint, separate from the
// Prometheus /metrics surface, so an orchestrator's health probe doesn't
// need to scrape and parse metrics.
func startHealthServer(ctx context.Context, addr string, db *storage.DB) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("db unavailable: " + err.Error()))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info().Str("component", "health_server").Str("addr", addr).Msg("health endpoint listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Str("component", "health_server").Msg("health server stopped unexpectedly")
		}
	}()
}

// startAdminServer exposes the match-review endpoint an admin UI calls to
// confirm or dismiss a match (spec §6 review-signal mapping), separate
// from the health/metrics ports so it can sit behind different network
// exposure in production.
func startAdminServer(ctx context.Context, addr string, matches admin.MatchStore, obs *observer.Observer) {
	handler := admin.NewHandler(matches, obs)
	mux := http.NewServeMux()
	handler.Mount(mux)

	srv := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		log.Info().Str("component", "admin_server").Str("addr", addr).Msg("admin endpoint listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Err(err).Str("component", "admin_server").Msg("admin server stopped unexpectedly")
		}
	}()
}

// startConfigWatcher watches the env file config.Load reads from and
// hot-swaps the tier table/thresholds into tiersRef/thresholdsRef on
// change, so operators can tune threshold boundaries without a restart
// (spec §4.K); tier flags are not read from the env file, so the tier
// table stays at its defaults. If the watch can't be established (e.g.
// the env file's directory doesn't exist) it logs and runs without hot-reload
// rather than failing startup over an optional feature. The returned
// func stops the watcher and must be called before process exit.
func startConfigWatcher(ctx context.Context, tiersRef *config.TierTableRef, thresholdsRef *config.ThresholdsRef) func() {
	envFile := os.Getenv("SCANNER_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}

	w, err := config.NewWatcher(envFile, tiersRef, thresholdsRef)
	if err != nil {
		log.Warn().Err(err).Str("component", "config_watcher").Str("path", envFile).Msg("config hot-reload unavailable")
		return func() {}
	}

	stopCh := make(chan struct{})
	go w.Run(stopCh)
	go func() {
		<-ctx.Done()
		close(stopCh)
	}()

	log.Info().Str("component", "config_watcher").Str("path", envFile).Msg("watching for config changes")
	return func() { w.Close() }
}

// seedJobs ensures every contributor has a contributor_scan job, every
// configured platform has a platform_crawl job, and a single cleanup job
// exists, so a fresh database starts ticking without manual setup.
func seedJobs(db *storage.DB, cfg *config.Config) error {
	ids, err := db.Contributors.AllIDs()
	if err != nil {
		return fmt.Errorf("seedJobs: list contributors: %w", err)
	}
	for _, id := range ids {
		contributor, err := db.Contributors.Get(id)
		if err != nil || contributor == nil {
			continue
		}
		flags := cfg.Tiers.Lookup(string(contributor.Tier.Normalize()))
		interval := flags.ReverseImageIntervalHours
		if interval <= 0 {
			interval = 24
		}
		if _, err := db.Jobs.Upsert("contributor_scan", id, interval); err != nil {
			return fmt.Errorf("seedJobs: upsert contributor_scan for %s: %w", id, err)
		}
	}

	for _, p := range cfg.Platforms {
		if _, err := db.Jobs.Upsert("platform_crawl", p.Name, 6); err != nil {
			return fmt.Errorf("seedJobs: upsert platform_crawl for %s: %w", p.Name, err)
		}
	}

	if _, err := db.Jobs.Upsert("cleanup", "default", 24); err != nil {
		return fmt.Errorf("seedJobs: upsert cleanup: %w", err)
	}

	if _, err := db.Jobs.Upsert("mapper", "default", 24); err != nil {
		return fmt.Errorf("seedJobs: upsert mapper: %w", err)
	}
	return nil
}
