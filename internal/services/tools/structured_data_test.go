package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/models"
)

func newStructuredServer(t *testing.T, handler http.HandlerFunc) *StructuredDataService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewStructuredDataService(&common.ToolEndpointConfig{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxResults: 50,
	}, common.GetLogger())

	return svc.(*StructuredDataService)
}

func TestQuery_Success(t *testing.T) {
	var gotReq structuredRequest
	svc := newStructuredServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"generated_query": "SELECT AVG(satisfaction) FROM surveys WHERE quarter = 'Q2'",
			"rows": []map[string]interface{}{
				{"avg_satisfaction": 4.2, "responses": 312},
			},
		})
	})

	result, err := svc.Query(context.Background(), "what is our patient satisfaction rate", models.ToolFilters{
		Department: "quality",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ToolStructuredData, result.Kind)
	require.NotNil(t, result.Analytics)
	require.Len(t, result.Analytics.Rows, 1)
	assert.Contains(t, result.Analytics.GeneratedQuery, "SELECT")
	assert.Equal(t, "what is our patient satisfaction rate", gotReq.Question)
	assert.Equal(t, "quality", gotReq.Department)
}

func TestQuery_ZeroRowsIsValid(t *testing.T) {
	svc := newStructuredServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"generated_query": "SELECT * FROM admissions WHERE year = 1890",
			"rows":            []interface{}{},
		})
	})

	result, err := svc.Query(context.Background(), "admissions in 1890", models.ToolFilters{})
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.NotEmpty(t, result.Analytics.GeneratedQuery)
}

func TestQuery_BackendFailure(t *testing.T) {
	svc := newStructuredServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := svc.Query(context.Background(), "q", models.ToolFilters{})
	var toolErr *models.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, models.ToolErrUnavailable, toolErr.Kind)
	assert.Equal(t, models.ToolStructuredData, toolErr.Tool)
}

func TestQuery_RowCapForwarded(t *testing.T) {
	var gotReq structuredRequest
	svc := newStructuredServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]interface{}{"rows": []interface{}{}})
	})

	_, err := svc.Query(context.Background(), "q", models.ToolFilters{MaxResults: 10})
	require.NoError(t, err)
	assert.Equal(t, 10, gotReq.MaxRows)

	// Caller cannot exceed the configured cap
	_, err = svc.Query(context.Background(), "q", models.ToolFilters{MaxResults: 500})
	require.NoError(t, err)
	assert.Equal(t, 50, gotReq.MaxRows)
}
