package tools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/models"
)

func newSearchServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *DocumentSearchService) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewDocumentSearchService(&common.ToolEndpointConfig{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxResults: 5,
	}, common.GetLogger())

	return srv, svc.(*DocumentSearchService)
}

func TestSearch_Success(t *testing.T) {
	var gotReq searchRequest
	_, svc := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"text": "screening every 3 years", "source_id": "doc-1", "security_level": 1, "score": 0.92},
				{"text": "risk factors", "source_id": "doc-2", "security_level": 0, "score": 0.81},
			},
		})
	})

	result, err := svc.Search(context.Background(), "diabetes screening guidelines", models.ToolFilters{
		Department:      "endocrinology",
		SecurityCeiling: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ToolDocumentSearch, result.Kind)
	require.NotNil(t, result.Search)
	require.Len(t, result.Search.Chunks, 2)
	assert.Equal(t, "doc-1", result.Search.Chunks[0].SourceID)
	assert.Equal(t, "endocrinology", gotReq.Department)
	assert.Equal(t, 2, gotReq.MaxLevel)
}

func TestSearch_SecurityCeilingEnforcedClientSide(t *testing.T) {
	// Backend ignores the ceiling and returns a restricted chunk
	_, svc := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"text": "public", "source_id": "doc-1", "security_level": 0, "score": 0.9},
				{"text": "restricted", "source_id": "doc-9", "security_level": 3, "score": 0.95},
			},
		})
	})

	result, err := svc.Search(context.Background(), "anything", models.ToolFilters{SecurityCeiling: 1})
	require.NoError(t, err)

	require.Len(t, result.Search.Chunks, 1)
	assert.Equal(t, "doc-1", result.Search.Chunks[0].SourceID)
}

func TestSearch_EmptyResultIsNotError(t *testing.T) {
	_, svc := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"results": []interface{}{}})
	})

	result, err := svc.Search(context.Background(), "nothing matches", models.ToolFilters{SecurityCeiling: 1})
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestSearch_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected models.ToolErrorKind
	}{
		{"service error", http.StatusInternalServerError, models.ToolErrUnavailable},
		{"forbidden", http.StatusForbidden, models.ToolErrAccessDenied},
		{"unauthorized", http.StatusUnauthorized, models.ToolErrAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, svc := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := svc.Search(context.Background(), "q", models.ToolFilters{})
			var toolErr *models.ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Equal(t, tt.expected, toolErr.Kind)
			assert.Equal(t, models.ToolDocumentSearch, toolErr.Tool)
		})
	}
}

func TestSearch_MalformedResponse(t *testing.T) {
	_, svc := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := svc.Search(context.Background(), "q", models.ToolFilters{})
	var toolErr *models.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, models.ToolErrMalformed, toolErr.Kind)
}

func TestSearch_Timeout(t *testing.T) {
	_, svc := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte("{}"))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Search(ctx, "q", models.ToolFilters{})
	var toolErr *models.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, models.ToolErrTimeout, toolErr.Kind)
}

func TestSearch_Unreachable(t *testing.T) {
	srv, svc := newSearchServer(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := svc.Search(context.Background(), "q", models.ToolFilters{})
	var toolErr *models.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, models.ToolErrUnavailable, toolErr.Kind)
}
