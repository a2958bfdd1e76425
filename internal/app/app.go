package app

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/common"
	"github.com/voluma/forge/internal/handlers"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/services/broadcast"
	"github.com/voluma/forge/internal/services/completion"
	"github.com/voluma/forge/internal/services/events"
	"github.com/voluma/forge/internal/services/progress"
	"github.com/voluma/forge/internal/services/reconciler"
	"github.com/voluma/forge/internal/stages"
	"github.com/voluma/forge/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	EventService   interfaces.EventService
	Broadcaster    interfaces.ProgressBroadcaster
	Translator     *stages.Translator

	ProgressService   *progress.Service
	CompletionService *completion.Service
	ReconcilerService *reconciler.Service
	StaleMonitor      *reconciler.Monitor

	// HTTP handlers
	APIHandler        *handlers.APIHandler
	ProcessingHandler *handlers.ProcessingHandler
	JobHandler        *handlers.JobHandler
	AdminHandler      *handlers.AdminHandler
	WSHandler         *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := storage.NewManager(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.EventService = events.NewService(logger)

	// The broadcast medium is optional: without it the core degrades to
	// durable state with no live push.
	if cfg.Redis.Enabled {
		redisBroadcaster, err := broadcast.NewRedisBroadcaster(&cfg.Redis, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize broadcaster: %w", err)
		}
		app.Broadcaster = redisBroadcaster
	} else {
		logger.Info().Msg("Redis disabled, live broadcast is in-process only")
		app.Broadcaster = broadcast.NewNoopBroadcaster()
	}

	app.Translator = stages.NewTranslator(cfg.Stages)

	jobStorage := storageManager.JobStorage()
	app.ProgressService = progress.NewService(jobStorage, app.Translator, app.Broadcaster, app.EventService, logger)
	app.CompletionService = completion.NewService(jobStorage, storageManager.ExperienceStorage(), app.Broadcaster, app.EventService, logger)
	app.ReconcilerService = reconciler.NewService(jobStorage, logger)

	monitor, err := reconciler.NewMonitor(&cfg.Monitor, app.ReconcilerService, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize stale-job monitor: %w", err)
	}
	app.StaleMonitor = monitor
	if monitor != nil {
		monitor.Start()
	}

	app.APIHandler = handlers.NewAPIHandler()
	app.ProcessingHandler = handlers.NewProcessingHandler(app.ProgressService, app.CompletionService, &cfg.Webhook, logger)
	app.JobHandler = handlers.NewJobHandler(jobStorage, logger)
	app.AdminHandler = handlers.NewAdminHandler(app.ReconcilerService, &cfg.Admin, logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger)

	return app, nil
}

// Close releases all application resources
func (a *App) Close() error {
	if a.StaleMonitor != nil {
		a.StaleMonitor.Stop()
	}
	if a.EventService != nil {
		a.EventService.Close()
	}
	if a.Broadcaster != nil {
		if err := a.Broadcaster.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close broadcaster")
		}
	}
	if a.StorageManager != nil {
		return a.StorageManager.Close()
	}
	return nil
}
