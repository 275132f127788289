package app

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/handlers"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/services/gateway"
	"github.com/ternarybob/consilium/internal/services/orchestrator"
	"github.com/ternarybob/consilium/internal/services/persona"
	"github.com/ternarybob/consilium/internal/services/providers"
	"github.com/ternarybob/consilium/internal/services/session"
	"github.com/ternarybob/consilium/internal/services/tools"
	badgerstorage "github.com/ternarybob/consilium/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB           *badgerstorage.BadgerDB
	SessionStore interfaces.SessionStore

	// Core services
	PersonaSelector interfaces.PersonaSelector
	DocumentSearch  interfaces.DocumentSearchClient
	StructuredData  interfaces.StructuredDataClient
	Gateway         interfaces.ProviderGateway
	AnswerService   interfaces.AnswerService

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	QueryHandler   *handlers.QueryHandler
	StatusHandler  *handlers.StatusHandler
	PersonaHandler *handlers.PersonaHandler
	SessionHandler *handlers.SessionHandler
	WSHandler      *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	logger.Info().
		Int("providers", len(cfg.Providers)).
		Str("default_persona", cfg.Personas.Default).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the storage layer (Badger)
func (a *App) initStorage() error {
	db, err := badgerstorage.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return err
	}
	a.DB = db

	a.SessionStore = session.NewStore(db, &a.Config.Session, a.Logger)
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	selector, err := persona.NewSelector(&a.Config.Personas, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize persona registry: %w", err)
	}
	a.PersonaSelector = selector

	a.DocumentSearch = tools.NewDocumentSearchService(&a.Config.Tools.DocumentSearch, a.Logger)
	a.StructuredData = tools.NewStructuredDataService(&a.Config.Tools.StructuredData, a.Logger)
	a.Logger.Debug().
		Str("document_search", a.Config.Tools.DocumentSearch.BaseURL).
		Str("structured_data", a.Config.Tools.StructuredData.BaseURL).
		Msg("Tool clients initialized")

	chain, err := providers.BuildChain(a.Config.Providers, a.Config.Orchestrator.Temperature, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to build provider chain: %w", err)
	}

	gw, err := gateway.New(chain, a.Config.Providers, a.Config.Gateway, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize provider gateway: %w", err)
	}
	a.Gateway = gw
	a.Logger.Debug().Int("chain_length", len(chain)).Msg("Provider gateway initialized")

	// WSHandler doubles as the progress event publisher, so it is created here
	// rather than with the other handlers
	a.WSHandler = handlers.NewWebSocketHandler(&a.Config.WebSocket, a.Logger)

	a.AnswerService = orchestrator.NewService(
		a.PersonaSelector,
		a.DocumentSearch,
		a.StructuredData,
		a.Gateway,
		a.SessionStore,
		a.WSHandler,
		a.Config.Orchestrator,
		a.Logger,
	)

	return nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.QueryHandler = handlers.NewQueryHandler(a.AnswerService, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Gateway, a.Config, a.Logger)
	a.PersonaHandler = handlers.NewPersonaHandler(a.PersonaSelector, a.Logger)
	a.SessionHandler = handlers.NewSessionHandler(a.SessionStore, a.Logger)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Gateway != nil {
		if err := a.Gateway.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close provider gateway")
		}
	}

	if a.SessionStore != nil {
		if err := a.SessionStore.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close session store")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
