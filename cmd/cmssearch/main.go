package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/analytics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/indexer"
	logpkg "github.com/ArtisanPack-UI/cms-framework-sub002/internal/logger"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/mcp"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/metrics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/scorer"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/searcher"
	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/storage"
	chiTransport "github.com/ArtisanPack-UI/cms-framework-sub002/internal/transport/chi"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version information and exit")
	serveMCP := flag.Bool("mcp", false, "serve MCP tools over stdio instead of HTTP")
	reindexOnly := flag.Bool("reindex", false, "run a full reindex from the configured sources and exit")
	rollback := flag.Bool("rollback", false, "roll back the most recent schema migration and exit")
	configPath := flag.String("config", "", "path to a YAML config file (default: config/$ENV.yaml)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("CMS Search Service\n")
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	// Load configuration based on ENV
	env := config.GetEnv()

	var (
		cfg config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting CMS search service",
		zap.String("version", version),
		zap.String("env", env),
		zap.String("db_path", cfg.Database.Path),
		zap.String("build_mode", storage.BuildMode),
		zap.Bool("mcp", *serveMCP),
	)

	if err := ensureDir(cfg.Database.Path); err != nil {
		logger.Fatal("Failed to create database directory", zap.Error(err))
	}
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open index store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	if *rollback {
		version, err := store.RollbackSchema(context.Background())
		if err != nil {
			logger.Fatal("Schema rollback failed", zap.Error(err))
		}
		logger.Info("Rolled back schema migration", zap.String("version", version))
		return
	}

	metrics.RegisterSearchMetrics()

	// Composition root
	analyticsOpts := analytics.OptionsFromConfig(cfg.Analytics)
	analyticsSvc := analytics.New(store, analyticsOpts, logger)
	defer analyticsSvc.Close()

	scoringOpts := scorer.OptionsFromConfig(cfg.Scoring)
	searchSvc := searcher.NewSearcher(store, searcher.Options{
		Config:   cfg,
		Scorer:   scorer.New(scoringOpts),
		Recorder: analyticsSvc,
		Logger:   logger,
	})

	sources, err := indexer.RegistryFromConfig(cfg.Sources)
	if err != nil {
		logger.Fatal("Invalid source configuration", zap.Error(err))
	}
	indexOpts := indexer.OptionsFromConfig(cfg.Indexer)
	indexOpts.Logger = logger.Named("indexer")
	indexOpts.OnChange = searchSvc.InvalidateCache
	idx := indexer.New(store, sources, indexOpts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *reindexOnly {
		stats, err := idx.ReindexAll(ctx)
		if err != nil {
			logger.Fatal("Reindex failed", zap.Error(err))
		}
		logger.Info("Reindex finished",
			zap.Int("indexed", stats.Indexed),
			zap.Int("failed", stats.Failed),
			zap.Int("removed", stats.Removed))
		return
	}

	go runRetention(ctx, analyticsSvc, time.Duration(cfg.Analytics.PruneIntervalMin)*time.Minute, logger)

	if *serveMCP {
		server := mcp.NewServer(searchSvc, analyticsSvc, idx, logger)
		errChan := make(chan error, 1)
		go func() {
			logger.Info("MCP server ready, listening on stdio")
			errChan <- server.Serve(ctx)
		}()

		select {
		case <-ctx.Done():
			logger.Info("Received shutdown signal")
		case err := <-errChan:
			if err != nil {
				logger.Error("MCP server error", zap.Error(err))
			}
		}
		logger.Info("Server stopped")
		return
	}

	api := chiTransport.NewServer(searchSvc, analyticsSvc, idx, chiTransport.NewAPIKeys(cfg.HTTP.APIKeys), logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.Handler(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// runRetention prunes expired search logs once at startup and then on every tick.
func runRetention(ctx context.Context, svc *analytics.Service, every time.Duration, logger *zap.Logger) {
	prune := func() {
		if _, err := svc.Prune(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("Search log retention failed", zap.Error(err))
		}
	}

	prune()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(dbPath), 0o755)
}
