package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// DocumentSearchService is a thin adapter over the external document search
// backend. Hybrid keyword+vector ranking happens server-side; this client's
// job is request framing, caller-scoped filtering, and typed errors.
type DocumentSearchService struct {
	baseURL    string
	apiKey     string
	maxResults int
	client     *http.Client
	logger     arbor.ILogger
}

type searchRequest struct {
	Query      string `json:"query"`
	Department string `json:"department,omitempty"`
	MaxLevel   int    `json:"max_security_level"`
	Limit      int    `json:"limit"`
}

type searchResponse struct {
	Results []struct {
		Text          string  `json:"text"`
		SourceID      string  `json:"source_id"`
		SecurityLevel int     `json:"security_level"`
		Score         float64 `json:"score"`
	} `json:"results"`
}

// NewDocumentSearchService creates a document search client for the
// configured backend endpoint
func NewDocumentSearchService(cfg *common.ToolEndpointConfig, logger arbor.ILogger) interfaces.DocumentSearchClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &DocumentSearchService{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Search queries the backend and returns ordered, filtered chunks. Failures
// surface as *models.ToolError so the orchestrator can distinguish a dead
// backend from a legitimately empty result.
func (s *DocumentSearchService) Search(ctx context.Context, question string, filters models.ToolFilters) (*models.ToolResult, error) {
	limit := filters.MaxResults
	if limit <= 0 || limit > s.maxResults {
		limit = s.maxResults
	}

	reqBody := searchRequest{
		Query:      question,
		Department: filters.Department,
		MaxLevel:   filters.SecurityCeiling,
		Limit:      limit,
	}

	var resp searchResponse
	if err := s.postJSON(ctx, s.baseURL+"/search", &reqBody, &resp); err != nil {
		return nil, err
	}

	result := &models.SearchResult{}
	for _, r := range resp.Results {
		// The ceiling is re-applied here: a misbehaving backend must not be
		// able to leak chunks above the caller's clearance
		if r.SecurityLevel > filters.SecurityCeiling {
			s.logger.Warn().
				Str("source_id", r.SourceID).
				Int("security_level", r.SecurityLevel).
				Int("ceiling", filters.SecurityCeiling).
				Msg("Dropping chunk above caller security ceiling")
			continue
		}
		result.Chunks = append(result.Chunks, models.Chunk{
			Text:          r.Text,
			SourceID:      r.SourceID,
			SecurityLevel: r.SecurityLevel,
			Score:         r.Score,
		})
	}

	s.logger.Debug().
		Int("chunks", len(result.Chunks)).
		Int("returned", len(resp.Results)).
		Msg("Document search completed")

	return &models.ToolResult{Kind: models.ToolDocumentSearch, Search: result}, nil
}

func (s *DocumentSearchService) postJSON(ctx context.Context, url string, body, out interface{}) error {
	return postJSON(ctx, s.client, models.ToolDocumentSearch, url, s.apiKey, body, out)
}

// postJSON is the shared request helper for both tool clients. It maps
// transport-level outcomes onto the ToolError taxonomy.
func postJSON(ctx context.Context, client *http.Client, tool models.ToolKind, url, apiKey string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &models.ToolError{Tool: tool, Kind: models.ToolErrMalformed, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &models.ToolError{Tool: tool, Kind: models.ToolErrUnavailable, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		kind := models.ToolErrUnavailable
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = models.ToolErrTimeout
		}
		return &models.ToolError{Tool: tool, Kind: kind, Cause: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &models.ToolError{Tool: tool, Kind: models.ToolErrAccessDenied,
			Cause: fmt.Errorf("backend returned status %d", resp.StatusCode)}
	case resp.StatusCode != http.StatusOK:
		return &models.ToolError{Tool: tool, Kind: models.ToolErrUnavailable,
			Cause: fmt.Errorf("backend returned status %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &models.ToolError{Tool: tool, Kind: models.ToolErrMalformed, Cause: err}
	}

	return nil
}
