package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	tphttp "github.com/Strob0t/TaskPilot/internal/adapter/http"
	"github.com/Strob0t/TaskPilot/internal/adapter/memory"
	tpnats "github.com/Strob0t/TaskPilot/internal/adapter/nats"
	tpotel "github.com/Strob0t/TaskPilot/internal/adapter/otel"
	"github.com/Strob0t/TaskPilot/internal/adapter/postgres"
	"github.com/Strob0t/TaskPilot/internal/adapter/ristretto"
	"github.com/Strob0t/TaskPilot/internal/config"
	"github.com/Strob0t/TaskPilot/internal/domain/rule"
	"github.com/Strob0t/TaskPilot/internal/logger"
	"github.com/Strob0t/TaskPilot/internal/middleware"
	"github.com/Strob0t/TaskPilot/internal/port/decisionstore"
	"github.com/Strob0t/TaskPilot/internal/port/messagequeue"
	"github.com/Strob0t/TaskPilot/internal/resilience"
	"github.com/Strob0t/TaskPilot/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	// CLI flags apply to the initial load only; SIGHUP re-reads file + env.
	holder := config.NewHolder(cfg, cfgPath)

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"store", cfg.Engine.Store,
		"rules_file", cfg.Engine.RulesFile,
	)

	ctx := context.Background()

	// --- Telemetry ---
	shutdownOTel, err := tpotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownOTel(shutdownCtx)
	}()

	metrics, err := tpotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Rule set ---
	rs, err := rule.LoadFromFile(cfg.Engine.RulesFile)
	if err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	slog.Info("rules loaded", "rules", rs.Len(), "destinations", len(rs.Destinations()))

	// --- Decision store ---
	var store decisionstore.Store
	switch cfg.Engine.Store {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		slog.Info("postgres connected, migrations applied")
		store = postgres.NewStore(pool)
	case "memory":
		slog.Warn("using in-memory decision store; history is lost on restart")
		store = memory.NewStore()
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Engine.Store)
	}

	// --- Message queue (optional) ---
	var queue messagequeue.Queue
	if cfg.NATS.URL != "" {
		q, err := tpnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = q.Drain() }()
		queue = q
	} else {
		slog.Info("nats url empty, event publication disabled")
	}

	// --- Cache ---
	reportCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer reportCache.Close()

	// --- Services ---
	router := service.NewRouter(rs, service.WithMetrics(metrics))
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	recorder := service.NewRecorder(store, queue, breaker)
	feedback := service.NewFeedbackCollector(store, queue, service.WithFeedbackMetrics(metrics))
	calibrator := service.NewCalibrator(store, reportCache, cfg.Cache.ReportTTL,
		service.WithCalibrationWindow(cfg.Calibration.Window),
		service.WithCalibrationMetrics(metrics))

	// --- HTTP ---
	handlers := &tphttp.Handlers{
		Router:     router,
		Recorder:   recorder,
		Feedback:   feedback,
		Calibrator: calibrator,
		Queue:      queue,
		RulesFile:  cfg.Engine.RulesFile,
	}

	r := chi.NewRouter()
	r.Use(tphttp.CORS(cfg.Server.CORSOrigin))
	r.Use(tphttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(tphttp.Logger)
	r.Use(tpotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	tphttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown; SIGHUP reloads config and rules in place.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	}()

	for {
		sig := <-sigCh
		if sig != syscall.SIGHUP {
			break
		}
		reload(holder, router)
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// reload re-reads the config file and the rules file it names. Either step
// failing keeps the running state untouched.
func reload(holder *config.Holder, router *service.Router) {
	if err := holder.Reload(); err != nil {
		slog.Error("config reload failed, keeping previous config", "error", err)
		return
	}
	rulesFile := holder.Get().Engine.RulesFile
	data, err := os.ReadFile(rulesFile)
	if err != nil {
		slog.Error("rules reload failed", "path", rulesFile, "error", err)
		return
	}
	if err := router.Reload(data); err != nil {
		slog.Error("rules reload rejected, keeping previous rule set", "error", err)
		return
	}
	slog.Info("reload complete", "rules", router.RuleSet().Len())
}
