// Package app wires configuration, storage, clients and services into the
// shared application core used by cmd/fundhub-server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/fundhub/internal/clients/gemini"
	"github.com/bobmcallan/fundhub/internal/clients/moneycontrol"
	"github.com/bobmcallan/fundhub/internal/common"
	"github.com/bobmcallan/fundhub/internal/interfaces"
	"github.com/bobmcallan/fundhub/internal/models"
	"github.com/bobmcallan/fundhub/internal/services/holdings"
	"github.com/bobmcallan/fundhub/internal/services/ingest"
	"github.com/bobmcallan/fundhub/internal/services/jobmanager"
	"github.com/bobmcallan/fundhub/internal/storage/surrealdb"
)

// App holds all initialized services and clients.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Storage         interfaces.StorageManager
	JobManager      *jobmanager.JobManager
	JobService      interfaces.JobService
	IngestService   interfaces.IngestService
	HoldingsService interfaces.HoldingsService
	StartupTime     time.Time
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, clients and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("FUNDHUB_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "fundhub.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/fundhub.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLogger(config.Logging.Level)

	storageManager, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	moneycontrolClient := moneycontrol.NewClient(
		moneycontrol.WithBaseURL(config.Clients.Moneycontrol.BaseURL),
		moneycontrol.WithMinInterval(config.Clients.Moneycontrol.GetMinInterval()),
		moneycontrol.WithTimeout(config.Clients.Moneycontrol.GetTimeout()),
		moneycontrol.WithLogger(logger),
	)

	geminiClient, err := gemini.NewClient(context.Background(), config.Clients.Gemini.APIKey,
		gemini.WithModel(config.Clients.Gemini.Model),
		gemini.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}
	if !geminiClient.Available() {
		logger.Warn().Msg("Gemini API key not configured - LLM sheet parsing will be unavailable")
	}

	ingestService := ingest.NewService(storageManager.PortfolioStore(), geminiClient, config.Ingest, logger)
	holdingsService := holdings.NewService(storageManager.ETFStore(), storageManager.HoldingsStore(), moneycontrolClient, config.Holdings, logger)

	jobManager := jobmanager.NewJobManager(storageManager, logger, config.Jobs)
	jobManager.Register(models.JobKindWorkbookIngest, ingestService.Handler())
	jobManager.Register(models.JobKindFetchHoldingsOne, holdingsService.HandlerOne())
	jobManager.Register(models.JobKindFetchHoldingsAll, holdingsService.HandlerAll())

	return &App{
		Config:          config,
		Logger:          logger,
		Storage:         storageManager,
		JobManager:      jobManager,
		JobService:      jobManager,
		IngestService:   ingestService,
		HoldingsService: holdingsService,
		StartupTime:     time.Now(),
	}, nil
}

// Start launches the background job subsystem.
func (a *App) Start() {
	a.JobManager.Start()
}

// Shutdown stops background work and closes storage.
func (a *App) Shutdown() {
	a.JobManager.Stop()
	if err := a.Storage.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Error closing storage")
	}
	a.Logger.Info().Msg("Application shut down")
}
