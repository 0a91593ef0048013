package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/handlers"
	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/orchestrator"
	"github.com/botsonlabs/jobforge/internal/services/assets"
	"github.com/botsonlabs/jobforge/internal/services/copilot"
	jobsvc "github.com/botsonlabs/jobforge/internal/services/jobs"
	"github.com/botsonlabs/jobforge/internal/services/llm"
	"github.com/botsonlabs/jobforge/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// LLM plumbing
	ProviderFactory *llm.ProviderFactory
	RoutingPolicy   *llm.RoutingPolicy
	Runner          *orchestrator.Runner

	// Domain services
	JobService       *jobsvc.Service
	AssetCoordinator *assets.Coordinator
	CopilotService   *copilot.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	JobHandler      *handlers.JobHandler
	AssetHandler    *handlers.AssetHandler
	CopilotHandler  *handlers.CopilotHandler
	SettingsHandler *handlers.SettingsHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager
	jobStore := storageManager.JobStorage()
	kvStore := storageManager.KeyValueStorage()

	app.ProviderFactory = llm.NewProviderFactory(
		&cfg.Claude, &cfg.Gemini, &cfg.LLM, kvStore, logger,
	)
	app.RoutingPolicy = llm.NewRoutingPolicy(&cfg.LLM)
	app.Runner = orchestrator.NewRunner(app.ProviderFactory, app.RoutingPolicy, logger, orchestrator.Options{
		PreviewLogger: func(task, route, preview string) {
			logger.Trace().
				Str("task", task).
				Str("route", route).
				Str("preview", preview).
				Msg("LLM response preview")
		},
	})

	app.JobService = jobsvc.NewService(jobStore, app.Runner, logger)

	// Media backends share the Gemini client; they stay nil when the Gemini
	// provider is not configured and the pipelines report that as a failure.
	var imageGen interfaces.ImageGenerator
	var videoGen interfaces.VideoGenerator
	if provider, err := app.ProviderFactory.Provider(string(common.LLMProviderGemini)); err == nil {
		if gemini, ok := provider.(*llm.GeminiProvider); ok {
			imageGen = llm.NewGeminiImageGenerator(gemini, "", logger)
			videoGen = llm.NewGeminiVideoGenerator(gemini, "", logger)
		}
	} else {
		logger.Warn().Err(err).Msg("Gemini provider unavailable; image and video generation disabled")
	}

	app.AssetCoordinator = assets.NewCoordinator(
		jobStore, app.Runner, imageGen, videoGen, logger,
		assets.OptionsFromConfig(&cfg.Assets),
	)

	app.CopilotService = copilot.NewService(jobStore, app.Runner, &cfg.Copilot, logger)

	app.APIHandler = handlers.NewAPIHandler(cfg)
	app.JobHandler = handlers.NewJobHandler(app.JobService)
	app.AssetHandler = handlers.NewAssetHandler(app.AssetCoordinator, jobStore)
	app.CopilotHandler = handlers.NewCopilotHandler(app.CopilotService, jobStore)
	app.SettingsHandler = handlers.NewSettingsHandler(kvStore)

	logger.Info().
		Str("environment", cfg.Environment).
		Str("default_provider", string(cfg.LLM.DefaultProvider)).
		Msg("Application initialized")

	return app, nil
}

// Close releases all application resources.
func (a *App) Close(ctx context.Context) error {
	if a.ProviderFactory != nil {
		if err := a.ProviderFactory.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close providers")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	a.Logger.Info().Msg("Application closed")
	return nil
}
