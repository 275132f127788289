package persona

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// Selector resolves persona hints to immutable persona configurations.
// The registry is built once at startup and read-only thereafter, so
// selection needs no locking.
type Selector struct {
	personas  map[string]*models.Persona
	defaultID string
	logger    arbor.ILogger
}

// NewSelector builds the persona registry from built-in defaults plus any
// YAML files found in the configured directory. File definitions override
// built-ins with the same id.
func NewSelector(cfg *common.PersonasConfig, logger arbor.ILogger) (interfaces.PersonaSelector, error) {
	s := &Selector{
		personas:  builtinPersonas(),
		defaultID: cfg.Default,
		logger:    logger,
	}

	if cfg.Dir != "" {
		if err := s.loadDir(cfg.Dir); err != nil {
			return nil, err
		}
	}

	if _, ok := s.personas[s.defaultID]; !ok {
		s.defaultID = "clinical"
	}

	logger.Info().
		Int("personas", len(s.personas)).
		Str("default", s.defaultID).
		Msg("Persona registry loaded")

	return s, nil
}

// loadDir reads persona YAML files from dir. A missing directory is not an
// error: built-ins are always available.
func (s *Selector) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Debug().Str("dir", dir).Msg("Persona directory not found, using built-ins")
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Failed to read persona file, skipping")
			continue
		}

		var p models.Persona
		if err := yaml.Unmarshal(data, &p); err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Failed to parse persona file, skipping")
			continue
		}
		if p.ID == "" || p.SystemPrompt == "" {
			s.logger.Warn().Str("file", name).Msg("Persona file missing id or system_prompt, skipping")
			continue
		}

		s.personas[p.ID] = &p
		s.logger.Debug().Str("persona", p.ID).Str("file", name).Msg("Loaded persona definition")
	}

	return nil
}

// Select resolves the persona for a hint and intent. Resolution order:
// explicit hint, intent-derived default, configured default. Select is a
// deterministic lookup and never fails.
func (s *Selector) Select(hint string, intent models.Intent) *models.Persona {
	if hint != "" {
		if p, ok := s.personas[strings.ToLower(strings.TrimSpace(hint))]; ok {
			return p
		}
		s.logger.Debug().Str("hint", hint).Msg("Unknown persona hint, falling back to intent default")
	}

	// Pure analytics questions read better from the analyst persona
	if intent == models.IntentStructuredOnly {
		if p, ok := s.personas["data_analyst"]; ok {
			return p
		}
	}

	return s.personas[s.defaultID]
}

// List returns all registered personas ordered by id
func (s *Selector) List() []*models.Persona {
	out := make([]*models.Persona, 0, len(s.personas))
	for _, p := range s.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
