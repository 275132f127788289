package main

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// handleAskQuestion implements the ask_question tool
func handleAskQuestion(answers interfaces.AnswerService, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := request.RequireString("question")
		if err != nil || question == "" {
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent("Error: question parameter is required"),
				},
			}, nil
		}

		query := &models.Query{
			Question:    question,
			PersonaHint: request.GetString("persona", ""),
			SessionID:   request.GetString("session_id", ""),
		}

		answer, err := answers.Answer(ctx, query)
		if err != nil {
			logger.Error().Err(err).Msg("Query failed")
			if failure, ok := models.AsFailure(err); ok {
				return &mcp.CallToolResult{
					Content: []mcp.Content{
						mcp.NewTextContent(fmt.Sprintf("Query failed at %s: %s", failure.Stage, failure.Cause)),
					},
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(fmt.Sprintf("Query error: %v", err)),
				},
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatAnswer(answer)),
			},
		}, nil
	}
}

// handleProviderStatus implements the provider_status tool
func handleProviderStatus(gw interfaces.ProviderGateway, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatProviderHealth(gw.Health())),
			},
		}, nil
	}
}

// handleListPersonas implements the list_personas tool
func handleListPersonas(selector interfaces.PersonaSelector, logger arbor.ILogger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(formatPersonas(selector.List())),
			},
		}, nil
	}
}
