// -----------------------------------------------------------------------
// WebSocket fan-out of job progress to attached studio viewers
// -----------------------------------------------------------------------

package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/voluma/forge/internal/interfaces"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Studio and player run on separate origins
	},
}

// WebSocketHandler pushes progress events to connected viewers. It is a live
// subscriber of the broadcast path: losing it never affects ingestion.
type WebSocketHandler struct {
	logger            arbor.ILogger
	clients           map[*websocket.Conn]bool
	clientMutex       map[*websocket.Conn]*sync.Mutex
	mu                sync.RWMutex
	progressThrottler *rate.Limiter
	serverInstanceID  string // Clients use this to detect a server restart
}

// NewWebSocketHandler creates the handler and subscribes it to the event bus.
func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
		// Progress reports can arrive every few seconds per job; cap the
		// fan-out rate so a chatty worker cannot flood viewers.
		progressThrottler: rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
	}

	if eventService != nil {
		eventService.Subscribe(interfaces.EventJobProgress, h.handleProgressEvent)
		eventService.Subscribe(interfaces.EventJobCompleted, h.handleTerminalEvent)
		eventService.Subscribe(interfaces.EventJobFailed, h.handleTerminalEvent)
		eventService.Subscribe(interfaces.EventJobCancelled, h.handleTerminalEvent)
	}

	logger.Info().Str("server_instance_id", h.serverInstanceID).Msg("WebSocket handler initialized")

	return h
}

// HandleWebSocket upgrades the connection and registers the client
// GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("WebSocket client connected")

	h.writeToConn(conn, map[string]interface{}{
		"type":               "connected",
		"server_instance_id": h.serverInstanceID,
	})

	// Read loop only detects disconnects; clients do not send messages.
	go func() {
		defer h.removeClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *WebSocketHandler) handleProgressEvent(ctx context.Context, event interfaces.Event) error {
	if !h.progressThrottler.Allow() {
		return nil
	}
	return h.broadcastEvent("job_progress", event)
}

// Terminal events are never throttled - viewers must always see the final state.
func (h *WebSocketHandler) handleTerminalEvent(ctx context.Context, event interfaces.Event) error {
	return h.broadcastEvent(string(event.Type), event)
}

func (h *WebSocketHandler) broadcastEvent(messageType string, event interfaces.Event) error {
	progressEvent, ok := event.Payload.(*interfaces.ProgressEvent)
	if !ok {
		h.logger.Warn().Str("event_type", string(event.Type)).Msg("Invalid event payload type")
		return nil
	}

	h.Broadcast(map[string]interface{}{
		"type": messageType,
		"data": progressEvent,
	})
	return nil
}

// Broadcast sends a message to every connected client. Slow or dead clients
// are dropped, never waited on.
func (h *WebSocketHandler) Broadcast(message interface{}) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := h.writeToConn(conn, message); err != nil {
			h.removeClient(conn)
		}
	}
}

func (h *WebSocketHandler) writeToConn(conn *websocket.Conn, message interface{}) error {
	h.mu.RLock()
	mu, ok := h.clientMutex[conn]
	h.mu.RUnlock()
	if !ok {
		return websocket.ErrCloseSent
	}

	mu.Lock()
	defer mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
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

// ClientCount returns the number of attached viewers.
func (h *WebSocketHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
