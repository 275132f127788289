package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// GeminiProvider generates text via the Google Gemini API. The genai client
// is created lazily on first use because construction needs a context.
type GeminiProvider struct {
	spec        models.ProviderSpec
	apiKey      string
	temperature float32
	logger      arbor.ILogger

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiProvider creates a Gemini-backed generation provider
func NewGeminiProvider(cfg *common.ProviderConfig, temperature float32, logger arbor.ILogger) (interfaces.GenerationProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("provider %s: missing Gemini API key", cfg.ID)
	}

	return &GeminiProvider{
		spec:        specFromConfig(cfg),
		apiKey:      cfg.APIKey,
		temperature: temperature,
		logger:      logger,
	}, nil
}

func (p *GeminiProvider) Spec() models.ProviderSpec { return p.spec }

func (p *GeminiProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	p.client = client
	return client, nil
}

func (p *GeminiProvider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	client, err := p.getClient(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.temperature),
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := client.Models.GenerateContent(ctx, p.spec.Model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", &models.ProviderError{ProviderID: p.spec.ID, Kind: models.ProviderErrInvalidOutput,
			Cause: fmt.Errorf("empty response from Gemini API")}
	}

	text := resp.Text()
	if text == "" {
		return "", &models.ProviderError{ProviderID: p.spec.ID, Kind: models.ProviderErrInvalidOutput,
			Cause: fmt.Errorf("empty text in Gemini response")}
	}

	return text, nil
}

func (p *GeminiProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = nil
	return nil
}
