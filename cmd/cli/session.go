package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yourusername/iwara-dl-go/api"
	"github.com/yourusername/iwara-dl-go/internal/app"
	"github.com/yourusername/iwara-dl-go/internal/domain"
	"github.com/yourusername/iwara-dl-go/internal/infrastructure"
	"github.com/yourusername/iwara-dl-go/pkg/logger"
)

// session holds every component of a download session
type session struct {
	config       *domain.Config
	logAdapter   *logger.LoggerAdapter
	multiLog     *logger.MultiLogger
	registry     *prometheus.Registry
	metrics      *infrastructure.Metrics
	client       *infrastructure.APIClient
	resolver     *infrastructure.VideoResolver
	ledger       *infrastructure.JSONLedger
	orchestrator *app.Orchestrator
}

// loadConfig reads an optional .env file, then the JSON config
func loadConfig() (*domain.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		config.Logging.Level = "debug"
	}
	return config, nil
}

// newLogAdapter builds the console logger and, when the logs directory is usable, the
// categorized file loggers
func newLogAdapter(config *domain.Config) (*logger.LoggerAdapter, *logger.MultiLogger, error) {
	base, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Download.LogsDir,
	})
	if err != nil {
		base.Warn("Categorized log files disabled", zap.Error(err))
		return logger.NewSingleLoggerAdapter(base), nil, nil
	}
	return logger.NewLoggerAdapter(base, multiLog), multiLog, nil
}

// newLedgerOnly opens the ledger without touching the network
func newLedgerOnly() (*infrastructure.JSONLedger, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return infrastructure.NewJSONLedger(config.Ledger.Path, nil, nil), nil
}

// newSession wires the full download pipeline. It does not log in.
func newSession() (*session, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := app.RequireCredentials(config); err != nil {
		return nil, err
	}

	for _, dir := range []string{config.Download.BaseDir, config.Download.ThumbnailDir, config.Download.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	logAdapter, multiLog, err := newLogAdapter(config)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := infrastructure.NewMetrics(registry)

	client := infrastructure.NewAPIClient(config.API, logAdapter, metrics)
	resolver := infrastructure.NewVideoResolver(client, config.API, logAdapter)
	engine := infrastructure.NewTransferEngine(config.Download, config.API, logAdapter, metrics)
	thumbnails := infrastructure.NewThumbnailDownloader(config.Download.ThumbnailDir, config.API, logAdapter)
	ledger := infrastructure.NewJSONLedger(config.Ledger.Path, logAdapter, metrics)
	notifier := infrastructure.NewNotificationService(&config.Notification, logAdapter.Base())

	downloadMgr := app.NewDownloadManager(resolver, engine, thumbnails, ledger, app.NewVideoLeases(),
		&config.Download, logAdapter, metrics)
	orchestrator := app.NewOrchestrator(client, resolver, downloadMgr, notifier,
		&config.Orchestrator, logAdapter, metrics)

	return &session{
		config:       config,
		logAdapter:   logAdapter,
		multiLog:     multiLog,
		registry:     registry,
		metrics:      metrics,
		client:       client,
		resolver:     resolver,
		ledger:       ledger,
		orchestrator: orchestrator,
	}, nil
}

// login authenticates once; failure aborts the whole run
func (s *session) login(ctx context.Context) error {
	if _, err := s.client.Login(ctx, s.config.Email, s.config.Password); err != nil {
		return err
	}
	return nil
}

// serveStatus exposes the session metrics, health with the live run state, and the
// ledger view routes until ctx is done
func (s *session) serveStatus(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	router := api.SetupRouter(api.RouterOptions{
		Ledger:   s.ledger,
		Runs:     s.orchestrator,
		LogsDir:  s.config.Download.LogsDir,
		Gatherer: s.registry,
	}, s.logAdapter)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logAdapter.Base().Info("Status server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logAdapter.LogError("Status server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
}

func (s *session) close() {
	s.logAdapter.Sync()
	if s.multiLog != nil {
		s.multiLog.Close()
	}
}
