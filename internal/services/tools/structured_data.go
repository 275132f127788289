package tools

import (
	"context"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// StructuredDataService is a thin adapter over the external structured data
// backend, which translates a natural-language question into a query and
// executes it. Query generation is the backend's responsibility.
type StructuredDataService struct {
	baseURL string
	apiKey  string
	maxRows int
	client  *http.Client
	logger  arbor.ILogger
}

type structuredRequest struct {
	Question   string `json:"question"`
	Department string `json:"department,omitempty"`
	MaxRows    int    `json:"max_rows"`
}

type structuredResponse struct {
	GeneratedQuery string          `json:"generated_query"`
	Rows           []models.Record `json:"rows"`
}

// NewStructuredDataService creates a structured data client for the
// configured backend endpoint
func NewStructuredDataService(cfg *common.ToolEndpointConfig, logger arbor.ILogger) interfaces.StructuredDataClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &StructuredDataService{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		maxRows: cfg.MaxResults,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Query runs the natural-language question against the backend. An empty row
// set is a valid result, not an error; only transport/protocol failures
// return a *models.ToolError.
func (s *StructuredDataService) Query(ctx context.Context, question string, filters models.ToolFilters) (*models.ToolResult, error) {
	maxRows := filters.MaxResults
	if maxRows <= 0 || maxRows > s.maxRows {
		maxRows = s.maxRows
	}

	reqBody := structuredRequest{
		Question:   question,
		Department: filters.Department,
		MaxRows:    maxRows,
	}

	var resp structuredResponse
	if err := postJSON(ctx, s.client, models.ToolStructuredData, s.baseURL+"/query", s.apiKey, &reqBody, &resp); err != nil {
		return nil, err
	}

	result := &models.AnalyticsResult{
		Rows:           resp.Rows,
		GeneratedQuery: resp.GeneratedQuery,
	}

	s.logger.Debug().
		Int("rows", len(result.Rows)).
		Msg("Structured data query completed")

	return &models.ToolResult{Kind: models.ToolStructuredData, Analytics: result}, nil
}
