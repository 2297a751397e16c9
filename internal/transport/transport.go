// Package transport owns the single websocket connection to the VPS backend.
//
// Outbound messages sent while no socket is open are queued and flushed in
// order once the websocket handshake succeeds. Inbound binary messages are
// split into length-prefixed frames and decoded before they reach the
// Delegate. Any failure drops the socket together with the queue; the next
// Send starts a fresh connection attempt.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/saker-ai/vps-client/internal/protocol/wire"
	"github.com/saker-ai/vps-client/internal/transport/codec"
)

const (
	// DefaultConnectTimeout bounds a connection attempt.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultWriteTimeout bounds a single websocket write.
	DefaultWriteTimeout = 10 * time.Second

	pongWriteTimeout = 5 * time.Second
)

var (
	// ErrConnection is matched by every connection failure reported to the Delegate.
	ErrConnection = errors.New("vps connection failed")
	// ErrConnectTimeout reports an attempt that did not finish in time.
	ErrConnectTimeout = fmt.Errorf("%w: connect timeout", ErrConnection)
)

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Delegate receives connection events. Calls arrive on transport goroutines
// and must not block for long.
type Delegate interface {
	ConnectionEstablished()
	ConnectionLost(err error)
	MessageReceived(msg *wire.Message)
}

// Config represents a transport config.
type Config struct {
	URL            string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	Header         http.Header
	// Validator decides whether the server certificate chain is trusted.
	// Nil keeps the default crypto/tls verification.
	Validator TrustValidator
}

// Transport represents a websocket transport.
type Transport struct {
	cfg      Config
	logger   *zap.Logger
	delegate Delegate
	dialer   *websocket.Dialer

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	pending []*wire.Message
	attempt uint64
	closed  bool

	writeMu sync.Mutex
}

// New executes the new function.
func New(cfg Config, delegate Delegate, logger *zap.Logger) (*Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if delegate == nil {
		return nil, errors.New("vps transport delegate is nil")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("backend url scheme %q: want ws or wss", u.Scheme)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.ConnectTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = TLSConfig(cfg.Validator, u.Hostname())
	}

	return &Transport{
		cfg:      cfg,
		logger:   logger,
		delegate: delegate,
		dialer:   dialer,
	}, nil
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Pending returns the number of queued outbound messages.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Send writes msg now when connected, otherwise queues it and makes sure a
// connection attempt is running.
func (t *Transport) Send(msg *wire.Message) {
	if msg == nil {
		return
	}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.logger.Debug("vps transport closed, message dropped", zap.Stringer("message", msg))
		return
	}
	switch t.state {
	case StateConnected:
		conn := t.conn
		t.mu.Unlock()
		t.write(conn, msg)
	case StateConnecting:
		t.pending = append(t.pending, msg)
		t.mu.Unlock()
	default:
		t.pending = append(t.pending, msg)
		t.state = StateConnecting
		t.attempt++
		attempt := t.attempt
		t.mu.Unlock()
		go t.connect(attempt)
	}
}

// Reset drops the current socket and the queue without notifying the
// Delegate. The next Send reconnects.
func (t *Transport) Reset(reason error) {
	t.mu.Lock()
	conn := t.conn
	dropped := len(t.pending)
	t.conn = nil
	t.pending = nil
	t.state = StateDisconnected
	t.attempt++
	t.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	t.logger.Info("vps transport reset",
		zap.String("backend_url", t.cfg.URL),
		zap.Int("dropped", dropped),
		zap.Error(reason),
	)
}

// Close shuts the transport down for good.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	t.conn = nil
	t.pending = nil
	t.state = StateDisconnected
	t.attempt++
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(pongWriteTimeout))
	t.writeMu.Unlock()
	return conn.Close()
}

func (t *Transport) connect(attempt uint64) {
	t.logger.Info("vps connecting",
		zap.String("backend_url", t.cfg.URL),
		zap.Duration("timeout", t.cfg.ConnectTimeout),
	)
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := t.dialer.DialContext(ctx, t.cfg.URL, t.cfg.Header.Clone())
	if err != nil && isTimeout(ctx, err) {
		err = fmt.Errorf("%w after %s: %w", ErrConnectTimeout, t.cfg.ConnectTimeout, err)
	} else if err != nil {
		err = fmt.Errorf("%w: dial %s: %w", ErrConnection, t.cfg.URL, err)
	}

	t.mu.Lock()
	if t.closed || t.attempt != attempt || t.state != StateConnecting {
		t.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		t.logger.Debug("vps connection attempt superseded", zap.Uint64("attempt", attempt))
		return
	}
	if err != nil {
		dropped := len(t.pending)
		t.pending = nil
		t.state = StateDisconnected
		t.mu.Unlock()
		t.logger.Warn("vps connect failed",
			zap.String("backend_url", t.cfg.URL),
			zap.Int("dropped", dropped),
			zap.Error(err),
		)
		t.delegate.ConnectionLost(err)
		return
	}

	conn.SetPingHandler(func(appData string) error {
		t.writeMu.Lock()
		defer t.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(pongWriteTimeout))
	})

	t.conn = conn
	t.state = StateConnected
	pending := t.pending
	t.pending = nil
	// Taken before releasing mu so a concurrent Send cannot overtake the queue.
	t.writeMu.Lock()
	t.mu.Unlock()

	var writeErr error
	for _, msg := range pending {
		if writeErr = t.writeLocked(conn, msg); writeErr != nil {
			break
		}
	}
	t.writeMu.Unlock()

	t.logger.Info("vps connected",
		zap.String("backend_url", t.cfg.URL),
		zap.Int("flushed", len(pending)),
	)
	if writeErr != nil {
		t.drop(conn, writeErr)
		return
	}
	t.delegate.ConnectionEstablished()
	go t.readLoop(conn)
}

func (t *Transport) write(conn *websocket.Conn, msg *wire.Message) {
	t.writeMu.Lock()
	err := t.writeLocked(conn, msg)
	t.writeMu.Unlock()
	if err != nil {
		t.drop(conn, err)
	}
}

// writeLocked encodes and writes msg. Encoding failures drop only the
// message; a returned error is always a connection failure.
func (t *Transport) writeLocked(conn *websocket.Conn, msg *wire.Message) error {
	frame, err := encodeFrame(msg)
	if err != nil {
		t.logger.Warn("vps message dropped", zap.Stringer("message", msg), zap.Error(err))
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("%w: write: %w", ErrConnection, err)
	}
	t.logger.Debug("vps message sent", zap.Stringer("message", msg), zap.Int("bytes", len(frame)))
	return nil
}

func encodeFrame(msg *wire.Message) ([]byte, error) {
	body, err := wire.Encode(msg)
	if err != nil {
		return nil, err
	}
	return codec.Pack(body)
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.drop(conn, fmt.Errorf("%w: read: %w", ErrConnection, err))
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			t.handleBinary(data)
		default:
			t.logger.Debug("vps non-binary message ignored",
				zap.Int("type", msgType),
				zap.Int("bytes", len(data)),
			)
		}
	}
}

func (t *Transport) handleBinary(data []byte) {
	bodies, leftover := codec.Split(data)
	for _, body := range bodies {
		msg, err := wire.Decode(body)
		if err != nil {
			t.logger.Warn("vps frame decode failed", zap.Int("bytes", len(body)), zap.Error(err))
			continue
		}
		t.logger.Debug("vps message received", zap.Stringer("message", msg))
		t.delegate.MessageReceived(msg)
	}
	if leftover > 0 {
		t.logger.Warn("vps partial frame discarded",
			zap.Int("leftover", leftover),
			zap.Int("bytes", len(data)),
		)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// drop tears down conn if it is still current and reports the loss.
func (t *Transport) drop(conn *websocket.Conn, err error) {
	t.mu.Lock()
	if t.conn != conn {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	dropped := len(t.pending)
	t.conn = nil
	t.pending = nil
	t.state = StateDisconnected
	t.mu.Unlock()

	_ = conn.Close()
	t.logger.Warn("vps connection lost",
		zap.String("backend_url", t.cfg.URL),
		zap.Int("dropped", dropped),
		zap.Error(err),
	)
	t.delegate.ConnectionLost(err)
}
