package models

// ToolKind identifies which tool client produced a result or error
type ToolKind string

const (
	ToolDocumentSearch ToolKind = "document_search"
	ToolStructuredData ToolKind = "structured_data"
)

// Chunk is one scored passage returned by the document search backend
type Chunk struct {
	Text          string  `json:"text"`
	SourceID      string  `json:"source_id"`
	SecurityLevel int     `json:"security_level"`
	Score         float64 `json:"score"`
}

// SearchResult holds ordered chunks from the document search backend
type SearchResult struct {
	Chunks []Chunk `json:"chunks"`
}

// Record is one row returned by the structured data backend
type Record map[string]interface{}

// AnalyticsResult holds ordered records plus the query text the backend generated
type AnalyticsResult struct {
	Rows           []Record `json:"rows"`
	GeneratedQuery string   `json:"generated_query,omitempty"`
}

// ToolResult is the tagged union of the two tool client outputs.
// Exactly one of Search and Analytics is non-nil.
type ToolResult struct {
	Kind      ToolKind         `json:"kind"`
	Search    *SearchResult    `json:"search,omitempty"`
	Analytics *AnalyticsResult `json:"analytics,omitempty"`
}

// Empty reports whether the result carries no usable evidence
func (r *ToolResult) Empty() bool {
	if r == nil {
		return true
	}
	switch r.Kind {
	case ToolDocumentSearch:
		return r.Search == nil || len(r.Search.Chunks) == 0
	case ToolStructuredData:
		return r.Analytics == nil || len(r.Analytics.Rows) == 0
	}
	return true
}
