package main

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createAskQuestionTool returns the ask_question tool definition
func createAskQuestionTool() mcp.Tool {
	return mcp.NewTool("ask_question",
		mcp.WithDescription("Answer a healthcare question grounded in document search and structured data, with citations and an evidence grade"),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
		mcp.WithString("persona",
			mcp.Description("Persona hint: clinical or data_analyst (default: inferred from the question)"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session ID for multi-turn context (format: ses_{id})"),
		),
	)
}

// createProviderStatusTool returns the provider_status tool definition
func createProviderStatusTool() mcp.Tool {
	return mcp.NewTool("provider_status",
		mcp.WithDescription("Report health of the generation provider fallback chain in priority order"),
	)
}

// createListPersonasTool returns the list_personas tool definition
func createListPersonasTool() mcp.Tool {
	return mcp.NewTool("list_personas",
		mcp.WithDescription("List the registered response personas"),
	)
}
