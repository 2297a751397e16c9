// Package ws bridges browser websocket clients onto VPS sessions.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/vps-client/internal/protocol"
	"github.com/saker-ai/vps-client/pkg/vps"
)

// Handler upgrades browser connections and serves them until they close.
type Handler struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader
	engine   Engine
	clients  map[string]*client
	mu       sync.Mutex
}

// NewHandler creates a handler driving engine.
func NewHandler(logger *zap.Logger, engine Engine) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		logger:  logger,
		engine:  engine,
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Clients returns the number of connected browsers.
func (h *Handler) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handle serves one browser connection.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &client{
		id:       uuid.NewString(),
		conn:     conn,
		engine:   h.engine,
		sessions: make(map[int64]*vps.Session),
	}
	c.logger = h.logger.With(zap.String("client_id", c.id))
	c.dispatcher = vps.NewSerialDispatcher("ws-"+c.id, c.logger)

	h.registerClient(c)
	c.logger.Info("ws client connected", zap.String("remote_addr", r.RemoteAddr))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Debug("ws connection closed", zap.Error(err))
			break
		}
		var msg protocol.ClientCommand
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid json")
			continue
		}
		if msg.Type != protocol.TypeHeartbeat {
			c.logger.Debug("ws incoming message", zap.String("type", msg.Type))
		}
		c.dispatchIncoming(msg)
	}

	c.close()
	h.unregisterClient(c.id)
	c.logger.Info("ws client disconnected")
}

func (h *Handler) registerClient(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
}

func (h *Handler) unregisterClient(id string) {
	h.mu.Lock()
	delete(h.clients, id)
	h.mu.Unlock()
}
