package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (orchestration progress events)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Query
	mux.HandleFunc("/api/query", s.app.QueryHandler.QueryHandler) // POST - answer a question

	// API routes - Personas and providers
	mux.HandleFunc("/api/agents/info", s.app.PersonaHandler.InfoHandler)
	mux.HandleFunc("/api/providers", s.app.StatusHandler.GetProvidersHandler)

	// API routes - Sessions
	mux.HandleFunc("/api/sessions/", s.app.SessionHandler.GetSessionHandler) // GET /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
