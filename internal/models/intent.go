package models

// Intent classifies a question by which backend tool(s) it requires
type Intent string

const (
	// IntentStructuredOnly requires only the structured data backend
	IntentStructuredOnly Intent = "structured_only"
	// IntentUnstructuredOnly requires only the document search backend
	IntentUnstructuredOnly Intent = "unstructured_only"
	// IntentHybrid requires both backends
	IntentHybrid Intent = "hybrid"
	// IntentUnknown matched neither cue set; treated as hybrid at dispatch
	IntentUnknown Intent = "unknown"
)

// NeedsDocumentSearch reports whether the intent requires the document search tool
func (i Intent) NeedsDocumentSearch() bool {
	return i == IntentUnstructuredOnly || i == IntentHybrid || i == IntentUnknown
}

// NeedsStructuredData reports whether the intent requires the structured data tool
func (i Intent) NeedsStructuredData() bool {
	return i == IntentStructuredOnly || i == IntentHybrid || i == IntentUnknown
}
