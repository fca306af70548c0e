package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fleetlens/internal/analysis"
	"fleetlens/internal/api"
	"fleetlens/internal/api/handlers"
	"fleetlens/internal/banner"
	"fleetlens/internal/config"
	"fleetlens/internal/detect"
	"fleetlens/internal/discovery"
	"fleetlens/internal/enrich"
	parsers "fleetlens/internal/parser"
	"fleetlens/internal/parser/evtx"
	"fleetlens/internal/parser/textlog"
	"fleetlens/internal/store"

	"github.com/pterm/pterm"
)

func main() {
	// Initialize logger with INFO level for production as a sensible default
	// We'll reconfigure the level after loading the configuration (LOG_LEVEL)
	logger := pterm.DefaultLogger.WithLevel(pterm.LogLevelInfo)

	// Print banner
	banner.Print()

	logger.Info("Initializing FleetLens - Fleet Log Analysis...")

	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		logger.WithCaller().Fatal("Failed to load configuration", logger.Args("error", err))
	}

	// Apply configured log level from environment variable LOG_LEVEL (default: info)
	// Supported values: trace, debug, info, warn, error, fatal
	lvl := strings.ToLower(cfg.LogLevel)
	var ptermLevel pterm.LogLevel
	switch lvl {
	case "trace":
		ptermLevel = pterm.LogLevelTrace
	case "debug":
		ptermLevel = pterm.LogLevelDebug
	case "info":
		ptermLevel = pterm.LogLevelInfo
	case "warn", "warning":
		ptermLevel = pterm.LogLevelWarn
	case "error":
		ptermLevel = pterm.LogLevelError
	case "fatal":
		ptermLevel = pterm.LogLevelFatal
	default:
		ptermLevel = pterm.LogLevelInfo
	}
	logger = pterm.DefaultLogger.WithLevel(ptermLevel)
	logger.Debug("Log level set", logger.Args("level", lvl))

	logger.Debug("Configuration loaded",
		logger.Args(
			"db_path", cfg.Database.Path,
			"server_port", cfg.Server.Port,
			"logs_roots", strings.Join(cfg.Logs.Roots, ","),
		))

	// Initialize database connection with configured settings
	db, err := store.NewConnection(&store.Config{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnMaxLife:  cfg.Database.ConnMaxLife,
	}, logger)
	if err != nil {
		logger.WithCaller().Fatal("Failed to connect to database", logger.Args("error", err))
	}

	logger.Debug("Initializing report repository...")
	reportRepo := store.NewReportRepository(db)

	// Initialize parser registry
	logger.Debug("Initializing parser registry...")
	parserRegistry := parsers.NewRegistry(logger)
	parserRegistry.Register(textlog.NewParser(logger))
	evtxParser, err := evtx.NewParser(logger)
	if err != nil {
		logger.WithCaller().Fatal("No event-log decoding tier available", logger.Args("error", err))
	}
	parserRegistry.Register(evtxParser)
	logger.Info("Parsers registered", logger.Args("parsers", strings.Join(parserRegistry.Names(), ",")))

	// Load the issue pattern catalog
	catalog := detect.DefaultCatalog()
	if cfg.Logs.CatalogPath != "" {
		catalog, err = detect.Load(cfg.Logs.CatalogPath)
		if err != nil {
			logger.WithCaller().Fatal("Failed to load pattern catalog",
				logger.Args("path", cfg.Logs.CatalogPath, "error", err))
		}
		logger.Info("Pattern catalog loaded",
			logger.Args("path", cfg.Logs.CatalogPath, "patterns", catalog.Len()))
	}
	detector := detect.NewDetector(logger, catalog, cfg.Analysis.SampleLimit)

	// Initialize LLM enricher (optional - pattern-based results stand alone)
	var enricher *enrich.Enricher
	if cfg.LLM.Enabled {
		logger.Debug("Initializing LLM enricher...")
		provider := enrich.NewOllamaProvider(cfg.LLM.BaseURL, logger)
		enricher = enrich.NewEnricher(provider, cfg.LLM.Model, cfg.LLM.Timeout, logger)
		logger.Info("LLM enrichment enabled",
			logger.Args("base_url", cfg.LLM.BaseURL, "model", cfg.LLM.Model))
	} else {
		logger.Info("LLM enrichment disabled by configuration")
	}

	// Initialize analysis service
	logger.Debug("Initializing analysis service...")
	scanner := discovery.NewScanner(logger, nil)
	service := analysis.NewService(logger, scanner, parserRegistry, detector, enricher, reportRepo, analysis.Options{
		Workers:   cfg.Analysis.WorkerPoolSize,
		CacheSize: cfg.Analysis.ReportCacheSize,
	})

	// Start background poller
	poller := analysis.NewPoller(service, logger, cfg.Logs.Roots, cfg.Logs.PollInterval)
	poller.Start(cfg.Logs.WatchEnabled)

	// Initialize report retention sweeper
	logger.Debug("Initializing retention sweeper...")
	sweeper := store.NewRetentionSweeper(reportRepo, logger, cfg.Database.RetentionDays, cfg.Database.SweepInterval)
	sweeper.Start()

	// Initialize web server with configured settings
	logger.Info("Initializing web server...")
	analysisHandler := handlers.NewAnalysisHandler(service, enricher, cfg.Logs.Roots, logger)
	webServer := api.NewServer(&api.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		Production: cfg.Server.Production,
	}, analysisHandler, logger)

	// Start web server in goroutine
	go func() {
		if err := webServer.Run(); err != nil {
			logger.WithCaller().Error("Web server error", logger.Args("error", err))
		}
	}()

	logger.Info("🔍 FleetLens is running",
		logger.Args(
			"url", pterm.Sprintf("http://localhost:%d", cfg.Server.Port),
			"roots", len(cfg.Logs.Roots),
		))

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Wait for shutdown signal
	<-sigChan

	logger.Info("Shutdown signal received, stopping services...")

	// Stop the poller first (prevents new runs from starting)
	logger.Debug("Stopping analysis poller...")
	poller.Stop()

	// Cancel in-flight runs
	logger.Debug("Stopping analysis service...")
	service.Stop()

	// Stop retention sweeper
	logger.Debug("Stopping retention sweeper...")
	sweeper.Stop()

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop web server
	logger.Debug("Stopping web server...")
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.WithCaller().Error("Web server shutdown error", logger.Args("error", err))
	} else {
		logger.Info("Web server stopped successfully")
	}

	logger.Info("FleetLens stopped gracefully")
}
