package transport

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/saker-ai/vps-client/internal/protocol/wire"
	"github.com/saker-ai/vps-client/internal/transport/codec"
)

const waitTimeout = 3 * time.Second

type recorder struct {
	established chan struct{}
	lost        chan error
	messages    chan *wire.Message
}

func newRecorder() *recorder {
	return &recorder{
		established: make(chan struct{}, 16),
		lost:        make(chan error, 16),
		messages:    make(chan *wire.Message, 64),
	}
}

func (r *recorder) ConnectionEstablished()            { r.established <- struct{}{} }
func (r *recorder) ConnectionLost(err error)          { r.lost <- err }
func (r *recorder) MessageReceived(msg *wire.Message) { r.messages <- msg }

func (r *recorder) waitLost(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.lost:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("ConnectionLost not reported")
		return nil
	}
}

func (r *recorder) waitMessage(t *testing.T) *wire.Message {
	t.Helper()
	select {
	case msg := <-r.messages:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("MessageReceived not reported")
		return nil
	}
}

type fakeBackend struct {
	upgrader websocket.Upgrader
	conns    chan *websocket.Conn
	received chan *wire.Message
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan *wire.Message, 64),
	}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.conns <- conn
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		bodies, _ := codec.Split(data)
		for _, body := range bodies {
			if msg, err := wire.Decode(body); err == nil {
				b.received <- msg
			}
		}
	}
}

func (b *fakeBackend) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-b.conns:
		return conn
	case <-time.After(waitTimeout):
		t.Fatal("backend did not accept a connection")
		return nil
	}
}

func (b *fakeBackend) waitReceived(t *testing.T) *wire.Message {
	t.Helper()
	select {
	case msg := <-b.received:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("backend did not receive a message")
		return nil
	}
}

func wsURL(httpURL string) string {
	if strings.HasPrefix(httpURL, "https") {
		return "wss" + strings.TrimPrefix(httpURL, "https")
	}
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func frames(t *testing.T, msgs ...*wire.Message) []byte {
	t.Helper()
	var out []byte
	for _, msg := range msgs {
		body, err := wire.Encode(msg)
		if err != nil {
			t.Fatalf("Encode returned error: %v", err)
		}
		frame, err := codec.Pack(body)
		if err != nil {
			t.Fatalf("Pack returned error: %v", err)
		}
		out = append(out, frame...)
	}
	return out
}

func newTestTransport(t *testing.T, cfg Config) (*Transport, *recorder) {
	t.Helper()
	rec := newRecorder()
	tr, err := New(cfg, rec, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr, rec
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(Config{URL: "http://example.com"}, newRecorder(), nil); err == nil {
		t.Fatal("New(http url) error=nil, want non-nil")
	}
	if _, err := New(Config{URL: "ws://example.com"}, nil, nil); err == nil {
		t.Fatal("New(nil delegate) error=nil, want non-nil")
	}
}

func TestTransportFlushesQueuedMessagesInOrder(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	tr, rec := newTestTransport(t, Config{URL: wsURL(srv.URL)})
	f := wire.Factory{UserID: "u"}
	tr.Send(f.Handshake(100, wire.Device{PlatformName: "linux"}))
	tr.Send(f.Text(1, "hello"))

	first := backend.waitReceived(t)
	second := backend.waitReceived(t)
	if first.Kind() != "handshake" || first.MessageID != 100 {
		t.Fatalf("first message=%v, want handshake id=100", first)
	}
	if text, _ := second.BodyText(); second.MessageID != 1 || text != "hello" {
		t.Fatalf("second message=%v, want text id=1", second)
	}
	select {
	case <-rec.established:
	case <-time.After(waitTimeout):
		t.Fatal("ConnectionEstablished not reported")
	}
	if got := tr.State(); got != StateConnected {
		t.Fatalf("state=%s, want %s", got, StateConnected)
	}
	if got := tr.Pending(); got != 0 {
		t.Fatalf("pending=%d, want 0", got)
	}
}

func TestTransportDeliversEveryFrameInBinaryMessage(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	tr, rec := newTestTransport(t, Config{URL: wsURL(srv.URL)})
	tr.Send(wire.Factory{}.Text(1, "hi"))
	conn := backend.waitConn(t)
	backend.waitReceived(t)

	data := frames(t,
		&wire.Message{MessageID: 1, MessageName: "STT", Text: &wire.Text{Data: "partial"}, Last: wire.False},
		&wire.Message{MessageID: 1, Text: &wire.Text{Data: "answer"}, Last: wire.True},
	)
	partial := frames(t, &wire.Message{MessageID: 1, Text: &wire.Text{Data: "lost"}})
	data = append(data, partial[:len(partial)-2]...)
	if err := conn.WriteMessage(websocket.TextMessage, []byte("ignored")); err != nil {
		t.Fatalf("WriteMessage(text) returned error: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("WriteMessage(binary) returned error: %v", err)
	}

	first := rec.waitMessage(t)
	second := rec.waitMessage(t)
	if text, _ := first.BodyText(); text != "partial" || first.RoutingHint() != "STT" {
		t.Fatalf("first=%v, want STT partial", first)
	}
	if text, _ := second.BodyText(); text != "answer" || !second.IsLast() {
		t.Fatalf("second=%v, want last answer", second)
	}
	select {
	case msg := <-rec.messages:
		t.Fatalf("unexpected message from partial frame: %v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTransportSkipsUndecodableFrame(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	tr, rec := newTestTransport(t, Config{URL: wsURL(srv.URL)})
	tr.Send(wire.Factory{}.Text(1, "hi"))
	conn := backend.waitConn(t)
	backend.waitReceived(t)

	bad, _ := codec.Pack([]byte{0x08, 0xff})
	data := append(bad, frames(t, &wire.Message{MessageID: 1, Last: wire.True})...)
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("WriteMessage returned error: %v", err)
	}

	msg := rec.waitMessage(t)
	if msg.MessageID != 1 || !msg.IsLast() {
		t.Fatalf("message=%v, want last marker id=1", msg)
	}
	select {
	case err := <-rec.lost:
		t.Fatalf("ConnectionLost(%v) after decode failure, want connection kept", err)
	default:
	}
}

func TestTransportReportsRemoteCloseAndReconnects(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	tr, rec := newTestTransport(t, Config{URL: wsURL(srv.URL)})
	tr.Send(wire.Factory{}.Text(1, "hi"))
	conn := backend.waitConn(t)
	backend.waitReceived(t)

	_ = conn.Close()
	err := rec.waitLost(t)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("ConnectionLost error=%v, want ErrConnection", err)
	}
	if got := tr.State(); got != StateDisconnected {
		t.Fatalf("state=%s, want %s", got, StateDisconnected)
	}

	tr.Send(wire.Factory{}.Text(2, "again"))
	backend.waitConn(t)
	if msg := backend.waitReceived(t); msg.MessageID != 2 {
		t.Fatalf("message after reconnect id=%d, want 2", msg.MessageID)
	}
}

func TestTransportDialFailureDropsQueue(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv.URL)
	srv.Close()

	tr, rec := newTestTransport(t, Config{URL: url})
	tr.Send(wire.Factory{}.Text(1, "hi"))
	tr.Send(wire.Factory{}.Text(2, "there"))

	err := rec.waitLost(t)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("ConnectionLost error=%v, want ErrConnection", err)
	}
	if got := tr.Pending(); got != 0 {
		t.Fatalf("pending=%d, want 0", got)
	}
	if got := tr.State(); got != StateDisconnected {
		t.Fatalf("state=%s, want %s", got, StateDisconnected)
	}
}

func TestTransportConnectTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen returned error: %v", err)
	}
	defer ln.Close()
	held := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			held <- conn
		}
	}()
	defer func() {
		select {
		case conn := <-held:
			conn.Close()
		default:
		}
	}()

	tr, rec := newTestTransport(t, Config{URL: "ws://" + ln.Addr().String(), ConnectTimeout: 100 * time.Millisecond})
	tr.Send(wire.Factory{}.Text(1, "hi"))

	err = rec.waitLost(t)
	if !errors.Is(err, ErrConnectTimeout) {
		t.Fatalf("ConnectionLost error=%v, want ErrConnectTimeout", err)
	}
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("ConnectionLost error=%v, want ErrConnection", err)
	}
}

func TestTransportResetIsSilent(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	tr, rec := newTestTransport(t, Config{URL: wsURL(srv.URL)})
	tr.Send(wire.Factory{}.Text(1, "hi"))
	backend.waitConn(t)
	backend.waitReceived(t)

	tr.Reset(errors.New("protocol error"))
	if got := tr.State(); got != StateDisconnected {
		t.Fatalf("state=%s, want %s", got, StateDisconnected)
	}
	select {
	case err := <-rec.lost:
		t.Fatalf("ConnectionLost(%v) after Reset, want none", err)
	case <-time.After(200 * time.Millisecond):
	}

	tr.Send(wire.Factory{}.Text(2, "again"))
	backend.waitConn(t)
	if msg := backend.waitReceived(t); msg.MessageID != 2 {
		t.Fatalf("message after reset id=%d, want 2", msg.MessageID)
	}
}

func TestTransportCloseDropsSends(t *testing.T) {
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	tr, _ := newTestTransport(t, Config{URL: wsURL(srv.URL)})
	if err := tr.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	tr.Send(wire.Factory{}.Text(1, "hi"))
	select {
	case <-backend.conns:
		t.Fatal("connection opened after Close")
	case <-time.After(200 * time.Millisecond):
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		in   State
		want string
	}{
		{in: StateDisconnected, want: "disconnected"},
		{in: StateConnecting, want: "connecting"},
		{in: StateConnected, want: "connected"},
		{in: State(9), want: "state(9)"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Fatalf("State(%d).String()=%q, want %q", int(tt.in), got, tt.want)
		}
	}
}
