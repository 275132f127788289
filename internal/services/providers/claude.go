package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

const claudeMaxTokens = 4096

// ClaudeProvider generates text via the Anthropic Claude API. Retry and
// fallback policy belongs to the gateway, so each Complete call is a single
// attempt.
type ClaudeProvider struct {
	spec        models.ProviderSpec
	client      anthropic.Client
	temperature float32
	logger      arbor.ILogger
}

// NewClaudeProvider creates a Claude-backed generation provider
func NewClaudeProvider(cfg *common.ProviderConfig, temperature float32, logger arbor.ILogger) (interfaces.GenerationProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: missing Anthropic API key", cfg.ID)
	}

	return &ClaudeProvider{
		spec:        specFromConfig(cfg),
		client:      anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		temperature: temperature,
		logger:      logger,
	}, nil
}

func (p *ClaudeProvider) Spec() models.ProviderSpec { return p.spec }

func (p *ClaudeProvider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.spec.Model),
		MaxTokens: claudeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if p.temperature > 0 {
		params.Temperature = anthropic.Float(float64(p.temperature))
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", &models.ProviderError{ProviderID: p.spec.ID, Kind: models.ProviderErrInvalidOutput,
			Cause: fmt.Errorf("empty response from Claude API")}
	}

	return text.String(), nil
}

func (p *ClaudeProvider) Close() error {
	p.client = anthropic.Client{}
	return nil
}
