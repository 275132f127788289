package interfaces

import (
	"context"

	"github.com/ternarybob/consilium/internal/models"
)

// AnswerService is the one operation the orchestration core exposes to its
// callers (HTTP API, CLI, MCP). A failed query returns a *models.Failure
// naming the stage and a display-safe cause.
type AnswerService interface {
	Answer(ctx context.Context, query *models.Query) (*models.Answer, error)
}

// EventPublisher receives orchestration progress events for live observers.
// Implementations must not block the orchestrator.
type EventPublisher interface {
	PublishStage(queryID string, stage models.Stage, detail string)
}

// PersonaSelector maps a requested or inferred domain to a response persona
type PersonaSelector interface {
	// Select resolves the persona for a hint and intent. An unknown hint
	// falls back to the intent-derived default; Select never fails.
	Select(hint string, intent models.Intent) *models.Persona

	// List returns all registered personas
	List() []*models.Persona
}
