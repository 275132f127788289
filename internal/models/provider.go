package models

import "time"

// HealthStatus tracks the last observed state of one generation provider
type HealthStatus string

const (
	HealthUnknown  HealthStatus = "unknown"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthDown     HealthStatus = "down"
)

// ProviderSpec describes one entry in the generation fallback chain.
// Priority order is immutable; health status is the only mutable field and
// is owned by the gateway's health table.
type ProviderSpec struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"` // "llama", "openai", "claude", "gemini"
	Priority int           `json:"priority"`
	BaseURL  string        `json:"base_url,omitempty"`
	Model    string        `json:"model"`
	Timeout  time.Duration `json:"timeout"`
}

// Attempt records one provider attempt in priority order
type Attempt struct {
	ProviderID string        `json:"provider_id"`
	Err        string        `json:"error,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Succeeded  bool          `json:"succeeded"`
}

// GenerationResult is the gateway's outcome: generated text on success, or
// the full attempt trail when every provider failed
type GenerationResult struct {
	Text     string    `json:"text,omitempty"`
	Provider string    `json:"provider,omitempty"`
	Attempts []Attempt `json:"attempts"`
}

// Ok reports whether any provider produced text
func (r *GenerationResult) Ok() bool {
	return r != nil && r.Text != ""
}

// ProviderHealth is a point-in-time snapshot of one provider's health entry
type ProviderHealth struct {
	ProviderID  string       `json:"provider_id"`
	Priority    int          `json:"priority"`
	Status      HealthStatus `json:"status"`
	LastAttempt time.Time    `json:"last_attempt,omitempty"`
	LastError   string       `json:"last_error,omitempty"`
}
