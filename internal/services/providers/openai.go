package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// OpenAICompatProvider generates text via any OpenAI-compatible chat
// completions endpoint (DeepSeek, OpenAI, vLLM, and similar). Only the base
// URL, model and key differ between vendors.
type OpenAICompatProvider struct {
	spec        models.ProviderSpec
	apiKey      string
	temperature float32
	client      *http.Client
	logger      arbor.ILogger
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	Temperature float32                 `json:"temperature,omitempty"`
	Stream      bool                    `json:"stream"`
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAICompatProvider creates a provider for an OpenAI-compatible endpoint
func NewOpenAICompatProvider(cfg *common.ProviderConfig, temperature float32, logger arbor.ILogger) (interfaces.GenerationProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider %s: missing base_url", cfg.ID)
	}

	return &OpenAICompatProvider{
		spec:        specFromConfig(cfg),
		apiKey:      cfg.APIKey,
		temperature: temperature,
		client:      &http.Client{}, // per-attempt deadline comes from the gateway context
		logger:      logger,
	}, nil
}

func (p *OpenAICompatProvider) Spec() models.ProviderSpec { return p.spec }

func (p *OpenAICompatProvider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
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

	return chatCompletion(ctx, p.client, p.completionURL(), p.apiKey, p.spec.ID, &reqBody)
}

// completionURL resolves the chat completions path against the configured
// base URL, tolerating bases that already include /v1
func (p *OpenAICompatProvider) completionURL() string {
	base := strings.TrimSuffix(p.spec.BaseURL, "/")
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

func (p *OpenAICompatProvider) Close() error { return nil }

// chatCompletion posts an OpenAI-style chat completion request and extracts
// the first choice. Shared by the OpenAI-compatible and local llama providers.
func chatCompletion(ctx context.Context, client *http.Client, url, apiKey, providerID string, reqBody *chatCompletionRequest) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion endpoint returned status %d", resp.StatusCode)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", &models.ProviderError{ProviderID: providerID, Kind: models.ProviderErrInvalidOutput,
			Cause: fmt.Errorf("failed to decode completion response: %w", err)}
	}

	if completion.Error != nil {
		return "", fmt.Errorf("completion endpoint error: %s", completion.Error.Message)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", &models.ProviderError{ProviderID: providerID, Kind: models.ProviderErrInvalidOutput,
			Cause: fmt.Errorf("completion response contained no choices")}
	}

	return completion.Choices[0].Message.Content, nil
}
