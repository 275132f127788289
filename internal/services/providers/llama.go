package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// LlamaProvider generates text against a local llama-server or Ollama
// instance via its OpenAI-compatible endpoint.
// SECURITY: 100% local operation, no credentials, no external network calls.
type LlamaProvider struct {
	spec        models.ProviderSpec
	temperature float32
	client      *http.Client
	logger      arbor.ILogger
}

// NewLlamaProvider creates a local llama-backed generation provider
func NewLlamaProvider(cfg *common.ProviderConfig, temperature float32, logger arbor.ILogger) (interfaces.GenerationProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %s: missing base_url for local llama server", cfg.ID)
	}
	if !strings.Contains(cfg.BaseURL, "localhost") && !strings.Contains(cfg.BaseURL, "127.0.0.1") {
		logger.Warn().
			Str("provider", cfg.ID).
			Str("base_url", cfg.BaseURL).
			Msg("Llama provider configured with non-local URL")
	}

	return &LlamaProvider{
		spec:        specFromConfig(cfg),
		temperature: temperature,
		client:      &http.Client{},
		logger:      logger,
	}, nil
}

func (p *LlamaProvider) Spec() models.ProviderSpec { return p.spec }

func (p *LlamaProvider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	messages := []chatCompletionMessage{}
	if systemPrompt != "" {
		messages = append(messages, chatCompletionMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatCompletionMessage{Role: "user", Content: prompt})

	reqBody := chatCompletionRequest{
		Model:       p.spec.Model,
		Messages:    messages,
		Temperature: p.temperature,
		Stream:      false,
	}

	url := strings.TrimSuffix(p.spec.BaseURL, "/") + "/v1/chat/completions"
	return chatCompletion(ctx, p.client, url, "", p.spec.ID, &reqBody)
}

func (p *LlamaProvider) Close() error { return nil }
