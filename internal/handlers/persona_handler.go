package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/consilium/internal/interfaces"
)

// PersonaHandler exposes the persona registry
type PersonaHandler struct {
	selector interfaces.PersonaSelector
	logger   arbor.ILogger
}

func NewPersonaHandler(selector interfaces.PersonaSelector, logger arbor.ILogger) *PersonaHandler {
	return &PersonaHandler{
		selector: selector,
		logger:   logger,
	}
}

// InfoHandler handles GET /api/agents/info. System prompts stay internal;
// only display metadata is returned.
func (h *PersonaHandler) InfoHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	personas := h.selector.List()
	out := make([]map[string]interface{}, 0, len(personas))
	for _, p := range personas {
		out = append(out, map[string]interface{}{
			"id":             p.ID,
			"name":           p.Name,
			"citation_rule":  p.CitationRule,
			"has_disclaimer": p.Disclaimer != "",
		})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"personas": out,
	})
}
