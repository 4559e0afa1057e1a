// internal/handler/websocket_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scanner-service/internal/bridge"
	"scanner-service/internal/scanner"
	"scanner-service/internal/utils"
)

// Client represents a WebSocket client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`
}

// WebSocketMessage represents a message pushed to observers
type WebSocketMessage struct {
	Type        string    `json:"type"`
	Payload     string    `json:"payload,omitempty"`
	ScannerType string    `json:"scanner_type"`
	Toast       bool      `json:"toast"`
	Timestamp   time.Time `json:"timestamp"`
}

// WebSocketHandler streams scan lifecycle events to observers. It
// subscribes to the lifecycle topic on the event bridge and fans out to
// connected clients.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	manager  *scanner.Manager
	bus      *bridge.Bus
	logger   *utils.ServiceLogger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(manager *scanner.Manager, bus *bridge.Bus, logger *zap.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		manager: manager,
		bus:     bus,
		logger:  utils.NewServiceLogger(logger, "websocket-handler"),
		clients: make(map[string]*Client),
	}

	go h.pumpLifecycleEvents()
	return h
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/events", h.HandleEventConnection)
}

// HandleEventConnection handles scan-event observer connections
func (h *WebSocketHandler) HandleEventConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 64),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	h.logger.Info("Event WebSocket client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// pumpLifecycleEvents forwards lifecycle events from the bridge to all
// connected clients.
func (h *WebSocketHandler) pumpLifecycleEvents() {
	sub := h.bus.Subscribe(scanner.TopicLifecycle)
	for ev := range sub.C() {
		msg := WebSocketMessage{
			Type:        ev.Kind,
			Payload:     ev.Payload,
			ScannerType: string(h.manager.ActiveType()),
			Toast:       h.manager.ToastEnabled(),
			Timestamp:   ev.Timestamp,
		}

		data, err := json.Marshal(msg)
		if err != nil {
			h.logger.Error("Failed to marshal lifecycle event", zap.Error(err))
			continue
		}
		h.broadcast(data)
	}
}

// broadcast sends data to every connected client, dropping slow ones
func (h *WebSocketHandler) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Slow client; skip this event
		}
	}
}

// handleClientRead drains inbound frames and detects disconnects
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer h.disconnect(client)

	client.Connection.SetReadLimit(512)
	for {
		if _, _, err := client.Connection.ReadMessage(); err != nil {
			return
		}
	}
}

// handleClientWrite pushes queued events to the client
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		h.disconnect(client)
	}()

	for {
		select {
		case data, ok := <-client.Send:
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Connection.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// disconnect removes a client and closes its connection
func (h *WebSocketHandler) disconnect(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.mu.Unlock()

	client.Connection.Close()
	h.logger.Info("Event WebSocket client disconnected",
		zap.String("client_id", client.ID),
	)
}
