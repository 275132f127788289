package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// StageEvent is one orchestration progress message pushed to connected clients
type StageEvent struct {
	QueryID   string       `json:"query_id"`
	Stage     models.Stage `json:"stage"`
	Detail    string       `json:"detail,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// WebSocketHandler streams orchestration stage events to connected clients.
// It implements interfaces.EventPublisher; the orchestrator publishes into it
// without knowing any client exists.
type WebSocketHandler struct {
	logger      arbor.ILogger
	clients     map[*websocket.Conn]bool
	clientMutex map[*websocket.Conn]*sync.Mutex
	mu          sync.RWMutex

	// throttles intermediate stage events; terminal stages always go out
	throttler        *rate.Limiter
	serverInstanceID string // clients use this to detect server restart
}

func NewWebSocketHandler(config *common.WebSocketConfig, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}

	if config != nil && config.ThrottleInterval > 0 {
		h.throttler = rate.NewLimiter(rate.Every(config.ThrottleInterval), 1)
		logger.Debug().
			Str("interval", config.ThrottleInterval.String()).
			Msg("Throttler initialized for stage events")
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")
	return h
}

// HandleWebSocket upgrades the connection and registers the client
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	h.writeTo(conn, map[string]interface{}{
		"type":               "connected",
		"server_instance_id": h.serverInstanceID,
	})

	// Read loop exists only to detect disconnect; clients never send payloads
	common.SafeGo(h.logger, "ws-read", func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
}

// PublishStage broadcasts one stage event to all connected clients. Terminal
// stages bypass the throttle so clients always see query completion.
func (h *WebSocketHandler) PublishStage(queryID string, stage models.Stage, detail string) {
	h.mu.RLock()
	empty := len(h.clients) == 0
	h.mu.RUnlock()
	if empty {
		return
	}

	terminal := stage == models.StageDone || stage == models.StageCancelled
	if !terminal && h.throttler != nil && !h.throttler.Allow() {
		return
	}

	h.broadcast(map[string]interface{}{
		"type": "stage",
		"event": StageEvent{
			QueryID:   queryID,
			Stage:     stage,
			Detail:    detail,
			Timestamp: time.Now(),
		},
	})
}

// broadcast sends a message to every connected client, dropping clients
// whose writes fail
func (h *WebSocketHandler) broadcast(message interface{}) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := h.writeTo(conn, message); err != nil {
			h.logger.Debug().Err(err).Msg("WebSocket write failed, dropping client")
			h.removeClient(conn)
		}
	}
}

// writeTo serializes writes per connection; gorilla connections do not allow
// concurrent writers
func (h *WebSocketHandler) writeTo(conn *websocket.Conn, message interface{}) error {
	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()
	if mutex == nil {
		return websocket.ErrCloseSent
	}

	mutex.Lock()
	defer mutex.Unlock()
	return conn.WriteJSON(message)
}

func (h *WebSocketHandler) removeClient(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		conn.Close()
	}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client disconnected")
}

// ClientCount returns the number of connected clients
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
