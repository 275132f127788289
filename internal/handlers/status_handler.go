package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// StatusHandler reports application and dependency status
type StatusHandler struct {
	gateway   interfaces.ProviderGateway
	config    *common.Config
	logger    arbor.ILogger
	startTime time.Time
}

func NewStatusHandler(gateway interfaces.ProviderGateway, config *common.Config, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		gateway:   gateway,
		config:    config,
		logger:    logger,
		startTime: time.Now(),
	}
}

// HealthHandler handles GET /api/health. The service reports degraded when no
// provider is currently usable; queries still attempt the full chain, so the
// endpoint stays 200.
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	health := h.gateway.Health()
	allDown := len(health) > 0
	for _, p := range health {
		if p.Status != models.HealthDown {
			allDown = false
			break
		}
	}

	status := "ok"
	if allDown {
		status = "degraded"
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": status,
	})
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "ok",
		"version":          common.GetVersion(),
		"environment":      h.config.Environment,
		"uptime":           time.Since(h.startTime).Round(time.Second).String(),
		"providers":        h.gateway.Health(),
		"background_tasks": common.GetGoroutineCount(),
		"tools": map[string]string{
			"document_search": h.config.Tools.DocumentSearch.BaseURL,
			"structured_data": h.config.Tools.StructuredData.BaseURL,
		},
	})
}

// GetProvidersHandler handles GET /api/providers with the per-provider
// health snapshot in priority order
func (h *StatusHandler) GetProvidersHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.gateway.Health(),
	})
}
