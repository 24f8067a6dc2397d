// Appraisal - game account marketplace with instant buyback pricing.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gametrade/appraisal/internal/api"
	"github.com/gametrade/appraisal/internal/assessor"
	"github.com/gametrade/appraisal/internal/auth"
	"github.com/gametrade/appraisal/internal/buyback"
	"github.com/gametrade/appraisal/internal/bus"
	"github.com/gametrade/appraisal/internal/cache"
	"github.com/gametrade/appraisal/internal/domain"
	"github.com/gametrade/appraisal/internal/policy"
	"github.com/gametrade/appraisal/internal/repository"
	"github.com/gametrade/appraisal/internal/stats"
	"github.com/gametrade/appraisal/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("APPRAISAL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting appraisal",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for cluster mode via environment
	if os.Getenv("APPRAISAL_MODE") == "cluster" {
		cfg = domain.ClusterConfig()
		slog.Info("running in cluster mode")
	}
	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize rule Snapshot
	snapshot := assessor.NewSnapshot()
	if err := loadRulesFromDatabase(ctx, repo, snapshot); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule snapshot initialized", "rules_count", snapshot.Count())

	// Initialize acceptance Policy
	pol, err := policy.NewService(ctx, repo)
	if err != nil {
		slog.Error("failed to initialize buyback policy", "error", err)
		os.Exit(1)
	}
	slog.Info("buyback policy initialized", "expression", pol.Expression())

	// Initialize Auth and seed the admin account from the environment
	authMgr := auth.NewManager(repo, cacheImpl, cfg.Auth)
	if loginID := os.Getenv("APPRAISAL_ADMIN_LOGIN"); loginID != "" {
		password := os.Getenv("APPRAISAL_ADMIN_PASSWORD")
		if password == "" {
			slog.Error("APPRAISAL_ADMIN_LOGIN set without APPRAISAL_ADMIN_PASSWORD")
			os.Exit(1)
		}
		if err := authMgr.EnsureAdmin(ctx, loginID, password); err != nil {
			slog.Error("failed to seed admin account", "error", err)
			os.Exit(1)
		}
		slog.Info("admin account ensured", "login_id", loginID)
	}

	// Initialize Buyback Processor and Stats
	processor := buyback.NewProcessor(snapshot, pol, repo, busImpl)
	statsSvc := stats.NewService(repo, cacheImpl)

	// Initialize notification Worker
	notifyWorker := worker.NewWorker(busImpl, nil)
	if err := notifyWorker.Start(); err != nil {
		slog.Error("failed to start notification worker", "error", err)
	} else {
		slog.Info("notification worker started")
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, snapshot, pol, processor, statsSvc, authMgr, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("appraisal is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	if err := notifyWorker.Stop(); err != nil {
		slog.Error("failed to stop notification worker", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("appraisal shutdown complete")
}

// applyEnvOverrides lets single settings be changed without a full
// cluster config.
func applyEnvOverrides(cfg *domain.Config) {
	if host := os.Getenv("APPRAISAL_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("APPRAISAL_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = n
		}
	}
	if path := os.Getenv("APPRAISAL_SQLITE_PATH"); path != "" {
		cfg.Repository.SQLitePath = path
	}
	if host := os.Getenv("APPRAISAL_POSTGRES_HOST"); host != "" {
		cfg.Repository.Driver = "postgres"
		cfg.Repository.PostgresHost = host
		if db := os.Getenv("APPRAISAL_POSTGRES_DB"); db != "" {
			cfg.Repository.PostgresDB = db
		}
		if user := os.Getenv("APPRAISAL_POSTGRES_USER"); user != "" {
			cfg.Repository.PostgresUser = user
		}
		if pass := os.Getenv("APPRAISAL_POSTGRES_PASSWORD"); pass != "" {
			cfg.Repository.PostgresPassword = pass
		}
	}
	if addr := os.Getenv("APPRAISAL_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if url := os.Getenv("APPRAISAL_NATS_URL"); url != "" {
		cfg.EventBus.NATSUrl = url
	}
}

// loadRulesFromDatabase loads assessment rules into the snapshot.
// Rules are configured via the admin API - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, snapshot *assessor.Snapshot) error {
	dbRules, err := repo.ListRules(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start empty - rules can be added via the admin API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		snapshot.Reload(dbRules)
		return nil
	}

	slog.Info("no rules in database - configure via POST /admin/rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  =============================================")
	fmt.Println("                 APPRAISAL")
	fmt.Println("     Game account marketplace & buyback")
	fmt.Println("  =============================================")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /rules                 - Active assessment rules")
	fmt.Println("    POST /estimate              - Price an account")
	fmt.Println("    POST /buyback               - Submit a buyback request")
	fmt.Println("    GET  /listings              - Browse published listings")
	fmt.Println("    GET  /campaign              - Current campaign banner")
	fmt.Println("    POST /admin/login           - Admin sign-in")
	fmt.Println("    GET  /health                - Health check")
	fmt.Println()
}
