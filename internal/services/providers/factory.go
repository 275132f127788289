package providers

import (
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// BuildChain constructs the generation provider chain from configuration,
// ordered by priority (rank 0 first). A provider whose credentials are
// missing is skipped with a warning rather than failing startup, so an
// offline-only deployment works without any cloud keys.
func BuildChain(configs []common.ProviderConfig, temperature float32, logger arbor.ILogger) ([]interfaces.GenerationProvider, error) {
	chain := make([]interfaces.GenerationProvider, 0, len(configs))

	for i := range configs {
		cfg := &configs[i]

		var (
			provider interfaces.GenerationProvider
			err      error
		)
		switch cfg.Type {
		case "llama":
			provider, err = NewLlamaProvider(cfg, temperature, logger)
		case "openai":
			provider, err = NewOpenAICompatProvider(cfg, temperature, logger)
		case "claude":
			provider, err = NewClaudeProvider(cfg, temperature, logger)
		case "gemini":
			provider, err = NewGeminiProvider(cfg, temperature, logger)
		default:
			return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.Type, cfg.ID)
		}

		if err != nil {
			logger.Warn().
				Err(err).
				Str("provider", cfg.ID).
				Str("type", cfg.Type).
				Msg("Skipping provider (not configured)")
			continue
		}

		chain = append(chain, provider)
		logger.Info().
			Str("provider", cfg.ID).
			Str("type", cfg.Type).
			Int("priority", cfg.Priority).
			Str("model", cfg.Model).
			Msg("Provider registered")
	}

	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable generation providers configured")
	}

	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Spec().Priority < chain[j].Spec().Priority
	})

	return chain, nil
}

// specFromConfig maps a config entry to the immutable ProviderSpec
func specFromConfig(cfg *common.ProviderConfig) models.ProviderSpec {
	return models.ProviderSpec{
		ID:       cfg.ID,
		Type:     cfg.Type,
		Priority: cfg.Priority,
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Timeout:  cfg.Timeout,
	}
}
