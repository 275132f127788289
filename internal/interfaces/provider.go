package interfaces

import (
	"context"

	"github.com/ternarybob/consilium/internal/models"
)

// GenerationProvider is one interchangeable text-generation backend in the
// fallback chain. Implementations wrap a concrete API (Claude, Gemini, a
// local llama server, or any OpenAI-compatible endpoint) behind a single
// completion call.
type GenerationProvider interface {
	// Spec returns the immutable descriptor this provider was built from
	Spec() models.ProviderSpec

	// Complete generates text for the given prompt. The context carries the
	// per-attempt deadline set by the gateway; implementations must honor it.
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)

	// Close releases any client resources
	Close() error
}

// ProviderGateway executes generation against the ordered provider chain with
// automatic failover. It owns the retry/fallback policy; callers never retry
// individually.
type ProviderGateway interface {
	// Generate iterates providers strictly in priority order and returns the
	// first successful result. When every provider fails the returned error
	// wraps models.ErrAllProvidersFailed and the result carries the full
	// attempt trail.
	Generate(ctx context.Context, systemPrompt, prompt string) (*models.GenerationResult, error)

	// Health returns a consistent snapshot of per-provider health in priority order
	Health() []models.ProviderHealth

	// Close shuts down all providers and the background prober
	Close() error
}
