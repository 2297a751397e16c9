// Package vpstest provides a scripted VPS backend for tests.
package vpstest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saker-ai/vps-client/internal/protocol/wire"
	"github.com/saker-ai/vps-client/internal/transport/codec"
)

// Responder builds the replies to one client message. Nil means no reply.
type Responder func(msg *wire.Message) []*wire.Message

// Backend is an httptest websocket server speaking the VPS frame format.
type Backend struct {
	URL string

	upgrader websocket.Upgrader
	respond  Responder
	received chan *wire.Message

	mu   sync.Mutex
	srv  *httptest.Server
	conn *websocket.Conn
}

// NewBackend starts a backend answering with respond. It stops with t.
func NewBackend(t *testing.T, respond Responder) *Backend {
	t.Helper()
	b := &Backend{
		respond:  respond,
		received: make(chan *wire.Message, 256),
	}
	b.srv = httptest.NewServer(b)
	b.URL = "ws" + strings.TrimPrefix(b.srv.URL, "http")
	t.Cleanup(b.srv.Close)
	return b
}

// Received returns the next decoded client message.
func (b *Backend) Received(t *testing.T) *wire.Message {
	t.Helper()
	select {
	case msg := <-b.received:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("backend received nothing")
		return nil
	}
}

// Push writes msgs to the current connection as one websocket message.
func (b *Backend) Push(t *testing.T, msgs ...*wire.Message) {
	t.Helper()
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		t.Fatal("backend has no client connection")
	}
	if err := b.write(conn, msgs); err != nil {
		t.Fatalf("backend push failed: %v", err)
	}
}

// ServeHTTP implements http.Handler.
func (b *Backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		bodies, _ := codec.Split(data)
		for _, body := range bodies {
			msg, err := wire.Decode(body)
			if err != nil {
				continue
			}
			b.received <- msg
			if b.respond == nil {
				continue
			}
			if err := b.write(conn, b.respond(msg)); err != nil {
				return
			}
		}
	}
}

func (b *Backend) write(conn *websocket.Conn, msgs []*wire.Message) error {
	var out []byte
	for _, msg := range msgs {
		body, err := wire.Encode(msg)
		if err != nil {
			return err
		}
		frame, err := codec.Pack(body)
		if err != nil {
			return err
		}
		out = append(out, frame...)
	}
	if len(out) == 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, out)
}

// EchoDialog answers every text message with a recognition echo followed
// by reply as the final dialog text.
func EchoDialog(reply string) Responder {
	return func(msg *wire.Message) []*wire.Message {
		if msg.Text == nil {
			return nil
		}
		return []*wire.Message{
			{MessageID: msg.MessageID, MessageName: "STT", Text: &wire.Text{Data: msg.Text.Data}, Last: wire.False},
			{MessageID: msg.MessageID, Text: &wire.Text{Data: reply}, Last: wire.True},
		}
	}
}
