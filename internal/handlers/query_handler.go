package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
)

// QueryHandler exposes the orchestration core over HTTP
type QueryHandler struct {
	answers  interfaces.AnswerService
	markdown goldmark.Markdown
	logger   arbor.ILogger
}

func NewQueryHandler(answers interfaces.AnswerService, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{
		answers:  answers,
		markdown: goldmark.New(),
		logger:   logger,
	}
}

type queryRequest struct {
	Question    string             `json:"question"`
	SessionID   string             `json:"session_id,omitempty"`
	PersonaHint string             `json:"persona_hint,omitempty"`
	Format      string             `json:"format,omitempty"` // "markdown" (default) or "html"
	Filters     models.ToolFilters `json:"filters,omitempty"`
}

type queryResponse struct {
	*models.Answer
	SessionID string `json:"session_id"`
	TextHTML  string `json:"text_html,omitempty"`
}

// QueryHandler handles POST /api/query
func (h *QueryHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		WriteError(w, http.StatusBadRequest, "Question is required")
		return
	}

	// Mint a session when the client did not supply one so the answer can be
	// continued in a follow-up query
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = common.NewSessionID()
	}

	query := &models.Query{
		Question:    req.Question,
		SessionID:   sessionID,
		PersonaHint: req.PersonaHint,
		Filters:     req.Filters,
		SubmittedAt: time.Now(),
	}

	answer, err := h.answers.Answer(r.Context(), query)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	resp := queryResponse{Answer: answer, SessionID: sessionID}
	if strings.EqualFold(req.Format, "html") {
		var buf bytes.Buffer
		if err := h.markdown.Convert([]byte(answer.Text), &buf); err != nil {
			h.logger.Warn().Err(err).Str("query_id", answer.QueryID).Msg("Failed to render answer as HTML")
		} else {
			resp.TextHTML = buf.String()
		}
	}

	WriteJSON(w, http.StatusOK, resp)
}

// writeFailure maps an orchestration failure to an HTTP status. The failure
// cause is already display-safe.
func (h *QueryHandler) writeFailure(w http.ResponseWriter, err error) {
	failure, ok := models.AsFailure(err)
	if !ok {
		h.logger.Error().Err(err).Msg("Query failed with unexpected error")
		WriteError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	status := http.StatusServiceUnavailable
	if failure.Stage == models.StageCancelled {
		status = http.StatusRequestTimeout
	}

	WriteJSON(w, status, map[string]interface{}{
		"status":   "error",
		"stage":    failure.Stage,
		"error":    failure.Cause,
		"attempts": failure.Attempts,
	})
}
