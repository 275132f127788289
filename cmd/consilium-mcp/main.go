package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	arbor_models "github.com/ternarybob/arbor/models"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/services/gateway"
	"github.com/ternarybob/consilium/internal/services/orchestrator"
	"github.com/ternarybob/consilium/internal/services/persona"
	"github.com/ternarybob/consilium/internal/services/providers"
	"github.com/ternarybob/consilium/internal/services/session"
	"github.com/ternarybob/consilium/internal/services/tools"
	badgerstorage "github.com/ternarybob/consilium/internal/storage/badger"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONSILIUM_CONFIG")
	if configPath == "" {
		configPath = "consilium.toml"
	}

	config, err := common.LoadFromFiles(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Minimal logging to avoid cluttering MCP stdio
	logger := arbor.NewLogger().WithConsoleWriter(arbor_models.WriterConfiguration{
		Type:             arbor_models.LogWriterTypeConsole,
		TimeFormat:       "15:04:05",
		DisableTimestamp: false,
	}).WithLevelFromString("warn")

	// Initialize storage and session store
	db, err := badgerstorage.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer db.Close()
	sessions := session.NewStore(db, &config.Session, logger)

	// Initialize core services
	selector, err := persona.NewSelector(&config.Personas, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize persona registry")
	}

	docSearch := tools.NewDocumentSearchService(&config.Tools.DocumentSearch, logger)
	structured := tools.NewStructuredDataService(&config.Tools.StructuredData, logger)

	chain, err := providers.BuildChain(config.Providers, config.Orchestrator.Temperature, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build provider chain")
	}

	gw, err := gateway.New(chain, config.Providers, config.Gateway, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize provider gateway")
	}
	defer gw.Close()

	answers := orchestrator.NewService(
		selector,
		docSearch,
		structured,
		gw,
		sessions,
		nil, // no progress stream over stdio
		config.Orchestrator,
		logger,
	)

	// Create MCP server
	mcpServer := server.NewMCPServer(
		"consilium",
		common.GetVersion(),
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(createAskQuestionTool(), handleAskQuestion(answers, logger))
	mcpServer.AddTool(createProviderStatusTool(), handleProviderStatus(gw, logger))
	mcpServer.AddTool(createListPersonasTool(), handleListPersonas(selector, logger))

	// Start server (blocks on stdio)
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Fatal().Err(err).Msg("MCP server failed")
	}
}
