package interfaces

import (
	"context"

	"github.com/ternarybob/consilium/internal/models"
)

// DocumentSearchClient is the thin adapter over the external document search
// backend. Hybrid keyword+vector semantics are the backend's responsibility;
// the client's contract is to apply caller-scoped filters before returning
// results and to surface failures as *models.ToolError, never as an empty
// result.
type DocumentSearchClient interface {
	Search(ctx context.Context, question string, filters models.ToolFilters) (*models.ToolResult, error)
}

// StructuredDataClient is the thin adapter over the external structured data
// backend, which translates a natural-language question into a query and
// returns the generated query text alongside the rows.
type StructuredDataClient interface {
	Query(ctx context.Context, question string, filters models.ToolFilters) (*models.ToolResult, error)
}
