// Package app wires configuration, storage, providers, the pipeline
// coordinator, and the HTTP handlers into one composable unit.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/handlers"
	"github.com/ternarybob/nichefinder/internal/interfaces"
	"github.com/ternarybob/nichefinder/internal/pipeline"
	"github.com/ternarybob/nichefinder/internal/services/llm"
	"github.com/ternarybob/nichefinder/internal/services/scraper"
	"github.com/ternarybob/nichefinder/internal/services/search"
	badgerstore "github.com/ternarybob/nichefinder/internal/storage/badger"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	SearchProvider interfaces.SearchProvider
	ScrapeProvider interfaces.ScrapeProvider
	LLMService     interfaces.LLMService

	Coordinator *pipeline.Coordinator
	Runner      *pipeline.Runner

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	JobHandler      *handlers.JobHandler
	EstimateHandler *handlers.EstimateHandler
	WSHandler       *handlers.WebSocketHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// New initializes the application in dependency order: storage, external
// providers, coordinator, runner, handlers.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		Config: config,
		Logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	storageManager, err := badgerstore.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	searchProvider, err := search.NewGeminiSearch(&config.Search, logger)
	if err != nil {
		storageManager.Close()
		cancel()
		return nil, fmt.Errorf("failed to initialize search provider: %w", err)
	}
	a.SearchProvider = searchProvider

	a.ScrapeProvider = scraper.NewHTTPScraper(&config.Scraper, logger)

	llmService, err := llm.NewClaudeService(&config.Claude, logger)
	if err != nil {
		storageManager.Close()
		cancel()
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	a.LLMService = llmService

	a.Coordinator = pipeline.NewCoordinator(
		storageManager,
		a.SearchProvider,
		a.ScrapeProvider,
		a.LLMService,
		&config.Pipeline,
		logger,
	)

	a.WSHandler = handlers.NewWebSocketHandler(logger)
	a.Coordinator.SetNotifier(a.WSHandler.BroadcastSnapshot)

	a.APIHandler = handlers.NewAPIHandler()
	a.JobHandler = handlers.NewJobHandler(a.Coordinator, storageManager, logger)
	a.EstimateHandler = handlers.NewEstimateHandler(config.Costs, logger)

	if config.Pipeline.RunnerEnabled {
		a.Runner = pipeline.NewRunner(a.Coordinator, &config.Pipeline, logger)
		if err := a.Runner.Start(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to start pipeline runner: %w", err)
		}
		a.JobHandler.SetOnJobLive(a.Runner.Drive)
	}

	logger.Info().
		Bool("runner_enabled", config.Pipeline.RunnerEnabled).
		Msg("Application initialized")

	return a, nil
}

// Close shuts components down in reverse initialization order.
func (a *App) Close() error {
	if a.Runner != nil {
		a.Runner.Stop()
	}
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}
	if a.LLMService != nil {
		a.LLMService.Close()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close storage")
		}
	}
	a.cancel()
	a.Logger.Info().Msg("Application closed")
	return nil
}
