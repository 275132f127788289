package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/consilium/internal/interfaces"
)

// SessionHandler exposes read access to stored session history
type SessionHandler struct {
	sessions interfaces.SessionStore
	logger   arbor.ILogger
}

func NewSessionHandler(sessions interfaces.SessionStore, logger arbor.ILogger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// GetSessionHandler handles GET /api/sessions/{id}
func (h *SessionHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	sessionID := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		WriteError(w, http.StatusBadRequest, "Session ID is required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	turns, err := h.sessions.RecentTurns(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to load session")
		WriteError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	count, err := h.sessions.TurnCount(r.Context(), sessionID)
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to count session turns")
		WriteError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}
	if count == 0 {
		WriteError(w, http.StatusNotFound, "Session not found")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":  sessionID,
		"total_turns": count,
		"turns":       turns,
	})
}
