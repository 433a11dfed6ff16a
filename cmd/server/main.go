package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/garyjia/sii-reconciler/internal/analysis"
	"github.com/garyjia/sii-reconciler/internal/config"
	httpapi "github.com/garyjia/sii-reconciler/internal/interfaces/http"
	"github.com/garyjia/sii-reconciler/internal/report"
	"github.com/garyjia/sii-reconciler/internal/session"
	"github.com/garyjia/sii-reconciler/internal/storage"
	"github.com/garyjia/sii-reconciler/internal/worker"
	"github.com/garyjia/sii-reconciler/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "configs/config.yaml"

func main() {
	// Load configuration
	cfg, err := config.Load(configPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(cfg.ToLoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting SII ledger reconciler",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.Float64("tolerance", cfg.Analysis.Tolerance))

	// Create necessary directories
	if err := os.MkdirAll(cfg.Export.OutputDir, 0755); err != nil {
		logger.Fatal("Failed to create export directory", zap.Error(err))
	}

	// Initialize services
	analysisService := analysis.NewService(cfg.ToAnalysisConfig(), logger)
	sessions := session.NewStore(cfg.ToSessionConfig(), logger)
	exporter := report.NewExcelExporter(cfg.Export.Sheets, logger)
	exports := storage.NewExportStore(cfg.Export.OutputDir, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers
	workers := worker.NewManager(logger)
	workers.Register(worker.NewSessionSweeper(sessions, cfg.Session.SweepInterval, logger))
	if err := workers.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}
	defer workers.StopAll()

	httpapi.Version = version
	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxUploadMB:  cfg.Server.MaxUploadMB,
	}, httpapi.Dependencies{
		Analysis: analysisService,
		Sessions: sessions,
		Exporter: exporter,
		Exports:  exports,
		Defaults: cfg.AnalysisOptions(),
	}, logger)

	// Blocks until SIGINT/SIGTERM, then shuts down gracefully
	if err := server.Start(ctx); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		workers.StopAll()
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("Server exited successfully")
}

// configPath returns SII_CONFIG when set, otherwise the bundled config file
// if present, otherwise "" for built-in defaults.
func configPath() string {
	if p := os.Getenv("SII_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat(defaultConfigPath); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return defaultConfigPath
}
