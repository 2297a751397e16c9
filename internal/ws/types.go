package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/vps-client/internal/protocol"
	"github.com/saker-ai/vps-client/pkg/audio"
	"github.com/saker-ai/vps-client/pkg/vps"
)

const dispatcherCloseTimeout = 2 * time.Second

// client is one browser connection. Commands arrive on the read goroutine;
// observer callbacks run on dispatcher.
type client struct {
	id         string
	conn       *websocket.Conn
	sendMu     sync.Mutex
	logger     *zap.Logger
	engine     Engine
	dispatcher *vps.SerialDispatcher

	mu       sync.Mutex
	muted    bool
	sessions map[int64]*vps.Session

	// Owned by the read goroutine.
	voice        *vps.Session
	converter    *audio.Converter
	convRate     int
	convChannels int
}

// newSession starts a session reporting to this client.
func (c *client) newSession() *vps.Session {
	c.mu.Lock()
	muted := c.muted
	c.mu.Unlock()

	obs := &sessionObserver{client: c, decoder: audio.NewVoiceDecoder()}
	s := c.engine.NewSession(
		vps.WithMuted(muted),
		vps.WithObserver(obs),
		vps.WithDispatcher(c.dispatcher),
	)
	c.mu.Lock()
	c.sessions[s.ID()] = s
	c.mu.Unlock()
	return s
}

func (c *client) forget(s *vps.Session) {
	c.mu.Lock()
	delete(c.sessions, s.ID())
	c.mu.Unlock()
}

// live returns the sessions still waiting for the backend.
func (c *client) live() []*vps.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*vps.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s)
	}
	return out
}

func (c *client) setMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
}

func (c *client) resetCapture() {
	if c.converter != nil {
		c.converter.Close()
	}
	c.converter = nil
	c.voice = nil
}

// close cancels everything in flight and waits for pending callbacks.
func (c *client) close() {
	c.resetCapture()
	for _, s := range c.live() {
		s.Cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), dispatcherCloseTimeout)
	defer cancel()
	if err := c.dispatcher.Close(ctx); err != nil {
		c.logger.Warn("ws dispatcher close failed", zap.Error(err))
	}
}

func (c *client) send(event protocol.ServerEvent) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := c.conn.WriteJSON(event); err != nil {
		c.logger.Debug("ws send failed", zap.String("type", event.Type), zap.Error(err))
	}
}

func (c *client) sendError(message string) {
	c.send(protocol.ServerEvent{Type: protocol.TypeError, Message: message})
}
