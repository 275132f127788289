package models

import "time"

// Query is an immutable per-request value describing one inbound question
type Query struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	PersonaHint string `json:"persona_hint,omitempty"`
	SessionID   string `json:"session_id,omitempty"`

	// Filters carries caller-scoped constraints applied by every tool client
	Filters ToolFilters `json:"filters,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
}

// ToolFilters are caller-scoped constraints enforced before results are returned
type ToolFilters struct {
	Department      string `json:"department,omitempty"`
	SecurityCeiling int    `json:"security_ceiling,omitempty"` // max security level the caller may see (0 = public only)
	MaxResults      int    `json:"max_results,omitempty"`
}

// EvidenceGrade is a categorical confidence label derived from tool evidence
type EvidenceGrade string

const (
	EvidenceStrong       EvidenceGrade = "strong"       // >= 2 concordant sources
	EvidenceModerate     EvidenceGrade = "moderate"     // single source, or conflicting with majority agreement
	EvidenceLimited      EvidenceGrade = "limited"      // weak or indirect evidence
	EvidenceInsufficient EvidenceGrade = "insufficient" // no tool evidence available
)

// Citation maps a citation id echoed by the model back to its source
type Citation struct {
	ID       string  `json:"id"`       // citation tag, e.g. "D1" or "S2"
	SourceID string  `json:"source_id"`
	Locator  string  `json:"locator,omitempty"` // chunk locator or generated query text
	Score    float64 `json:"score,omitempty"`
}

// Answer is the final synthesized output for one Query
type Answer struct {
	QueryID       string        `json:"query_id"`
	Text          string        `json:"text"`
	Citations     []Citation    `json:"citations,omitempty"`
	EvidenceGrade EvidenceGrade `json:"evidence_grade"`
	Disclaimer    string        `json:"disclaimer,omitempty"`
	Degraded      bool          `json:"degraded"` // a required tool failed but a partial result was usable
	Intent        Intent        `json:"intent"`
	Persona       string        `json:"persona"`
	Provider      string        `json:"provider,omitempty"` // provider that produced the text
	ElapsedMs     int64         `json:"elapsed_ms"`
}

// Turn is one (Query, Answer) pair in a session's append-only history
type Turn struct {
	SessionID string    `json:"session_id" badgerhold:"index"`
	Sequence  uint64    `json:"sequence"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Intent    Intent    `json:"intent"`
	CreatedAt time.Time `json:"created_at"`
}
