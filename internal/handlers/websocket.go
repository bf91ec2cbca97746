package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nichefinder/internal/common"
	"github.com/ternarybob/nichefinder/internal/pipeline"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 16
)

// WebSocketHandler pushes job snapshots to connected clients after every
// completed unit of work. Polling GET /api/jobs/{id} remains the source
// of truth; the push only saves clients the poll interval.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	logger   arbor.ILogger

	mu      sync.RWMutex
	clients map[*wsClient]bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan *pipeline.Snapshot
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local tool, same-host UI; cross-origin checks add nothing.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logger,
		clients: make(map[*wsClient]bool),
	}
}

// HandleWebSocket handles GET /ws upgrade requests.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan *pipeline.Snapshot, wsSendBuffer),
	}

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", count).Msg("WebSocket client connected")

	common.SafeGo(h.logger, "ws-write", func() { h.writeLoop(client) })
	common.SafeGo(h.logger, "ws-read", func() { h.readLoop(client) })
}

// BroadcastSnapshot fans a snapshot out to every connected client. Slow
// clients get disconnected rather than blocking the pipeline.
func (h *WebSocketHandler) BroadcastSnapshot(snapshot *pipeline.Snapshot) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- snapshot:
		default:
			go h.drop(client)
		}
	}
}

func (h *WebSocketHandler) writeLoop(client *wsClient) {
	for snapshot := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteJSON(snapshot); err != nil {
			h.drop(client)
			return
		}
	}
}

// readLoop discards inbound messages and detects disconnects.
func (h *WebSocketHandler) readLoop(client *wsClient) {
	defer h.drop(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandler) drop(client *wsClient) {
	h.mu.Lock()
	if !h.clients[client] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	h.mu.Unlock()

	close(client.send)
	client.conn.Close()
	h.logger.Debug().Msg("WebSocket client disconnected")
}

// Close disconnects all clients.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		h.drop(client)
	}
}
