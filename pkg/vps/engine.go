package vps

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/saker-ai/vps-client/internal/protocol/wire"
	"github.com/saker-ai/vps-client/internal/session/fsm"
	"github.com/saker-ai/vps-client/internal/transport"
	"github.com/saker-ai/vps-client/internal/workqueue"
)

// transporter is the part of *transport.Transport the engine drives.
type transporter interface {
	Send(msg *wire.Message)
	Reset(reason error)
	Close() error
	State() transport.State
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger       *zap.Logger
	device       DeviceInfoProvider
	dispatcher   Dispatcher
	ids          IDSource
	validator    TrustValidator
	newTransport func(transport.Delegate) (transporter, error)
}

// WithLogger sets the engine logger. It is ignored when
// Config.EnableLogging is false.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithDeviceInfoProvider replaces the handshake device metadata source.
func WithDeviceInfoProvider(p DeviceInfoProvider) Option {
	return func(o *options) { o.device = p }
}

// WithDefaultDispatcher sets the Dispatcher of sessions created without one.
// The default is MainDispatcher.
func WithDefaultDispatcher(d Dispatcher) Option {
	return func(o *options) { o.dispatcher = d }
}

// WithIDSource replaces the random id generator.
func WithIDSource(ids IDSource) Option {
	return func(o *options) { o.ids = ids }
}

// WithTrustValidator replaces the validator built from Config.TLS.
func WithTrustValidator(v TrustValidator) Option {
	return func(o *options) { o.validator = v }
}

func withTransport(fn func(transport.Delegate) (transporter, error)) Option {
	return func(o *options) { o.newTransport = fn }
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Sessions      int    `json:"sessions"`
	HandshakeSent bool   `json:"handshake_sent"`
	Transport     string `json:"transport"`
	Closed        bool   `json:"closed"`
}

// Engine multiplexes sessions over one backend connection.
type Engine struct {
	cfg        Config
	logger     *zap.Logger
	factory    wire.Factory
	device     DeviceInfoProvider
	ids        IDSource
	dispatcher Dispatcher
	worker     *workqueue.Serial
	transport  transporter

	closed     atomic.Bool
	registered atomic.Int64
	handshook  atomic.Bool

	// Owned by the worker goroutine.
	sessions      map[int64]*Session
	handshakeSent bool
}

// New creates an engine. No connection is opened until the first send.
func New(cfg Config, opts ...Option) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	logger := o.logger
	if logger == nil || !cfg.EnableLogging {
		logger = zap.NewNop()
	}
	if o.device == nil {
		o.device = SystemDevice(cfg.Device)
	}
	if o.dispatcher == nil {
		o.dispatcher = MainDispatcher()
	}
	if o.ids == nil {
		o.ids = RandomIDs{}
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		factory: wire.Factory{
			UserID:      cfg.UserID,
			Token:       cfg.Token,
			UserChannel: cfg.UserChannel,
			TTSEngine:   cfg.TTSEngine,
			STTEngine:   cfg.STTEngine,
			Dubbing:     cfg.Dubbing,
		},
		device:     o.device,
		ids:        o.ids,
		dispatcher: o.dispatcher,
		worker:     workqueue.NewSerial("vps-engine", logger),
		sessions:   make(map[int64]*Session),
	}

	var err error
	if o.newTransport != nil {
		e.transport, err = o.newTransport(delegate{e})
	} else {
		e.transport, err = e.dialTransport(o.validator)
	}
	if err != nil {
		_ = e.worker.Close(context.Background())
		return nil, fmt.Errorf("create vps transport: %w", err)
	}

	logger.Info("vps engine created",
		zap.String("backend_url", cfg.BackendURL),
		zap.String("user_channel", cfg.UserChannel),
		zap.Duration("connect_timeout", cfg.ConnectTimeout),
		zap.Bool("tls_pinning", cfg.TLS.PinningEnabled),
	)
	return e, nil
}

func (e *Engine) dialTransport(custom TrustValidator) (transporter, error) {
	var validator transport.TrustValidator
	if custom != nil {
		validator = custom
	} else {
		v, err := e.cfg.TLS.security().Validator()
		if err != nil {
			return nil, err
		}
		validator = v
	}
	return transport.New(transport.Config{
		URL:            e.cfg.BackendURL,
		ConnectTimeout: e.cfg.ConnectTimeout,
		WriteTimeout:   e.cfg.WriteTimeout,
		Header:         e.cfg.Header,
		Validator:      validator,
	}, delegate{e}, e.logger.Named("transport"))
}

// NewSession creates a Living session bound to the engine. It is registered
// with the engine on its first send.
func (e *Engine) NewSession(opts ...SessionOption) *Session {
	s := &Session{
		engine:     e,
		machine:    fsm.New(),
		dispatcher: e.dispatcher,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.id == 0 {
		s.id = e.ids.NextID()
	}
	return s
}

// Stats returns counters for health reporting.
func (e *Engine) Stats() Stats {
	return Stats{
		Sessions:      int(e.registered.Load()),
		HandshakeSent: e.handshook.Load(),
		Transport:     e.transport.State().String(),
		Closed:        e.closed.Load(),
	}
}

// Close fails every in-flight session with ErrEngineClosed, closes the
// connection and stops the worker. Later sends finish their session with
// ErrEngineClosed.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.worker.Submit(func() {
		e.failAll(ErrEngineClosed)
	})
	terr := e.transport.Close()
	werr := e.worker.Close(ctx)
	e.logger.Info("vps engine closed")
	return errors.Join(terr, werr)
}

// enqueue runs fn on the worker. It reports false once the engine is closed.
func (e *Engine) enqueue(fn func()) bool {
	if e.closed.Load() {
		return false
	}
	return e.worker.Submit(fn)
}

func (e *Engine) sendText(s *Session, text string) {
	e.enqueueSend(s, func() {
		e.prepare(s)
		e.transport.Send(e.factory.Text(s.id, text))
	})
}

func (e *Engine) sendVoice(s *Session, data []byte, last bool) {
	e.enqueueSend(s, func() {
		chunks := ChunkVoice(data, VoiceChunkSize, last)
		if len(chunks) == 0 {
			return
		}
		e.prepare(s)
		for _, chunk := range chunks {
			e.transport.Send(e.factory.Voice(s.id, chunk.Data, chunk.Last))
		}
	})
}

// enqueueSend runs fn on the worker while s is Living. A Close that lands
// between the closed check and the submit is caught again on the worker,
// after failAll has already run.
func (e *Engine) enqueueSend(s *Session, fn func()) {
	ok := e.enqueue(func() {
		if e.closed.Load() {
			e.rejectClosed(s)
			return
		}
		if !s.Living() {
			return
		}
		fn()
	})
	if !ok {
		e.rejectClosed(s)
	}
}

// prepare emits the messages that precede a session's payload and
// registers the session.
func (e *Engine) prepare(s *Session) {
	if !e.handshakeSent {
		e.transport.Send(e.factory.Handshake(e.ids.NextID(), e.device.DeviceInfo().wire()))
		e.setHandshakeSent(true)
	}
	if s.Muted() {
		e.transport.Send(e.factory.MuteSettings(s.id))
	}
	if s.EchoEnabled() {
		e.transport.Send(e.factory.EchoSettings(e.ids.NextID()))
	}
	e.register(s)
}

func (e *Engine) cancel(s *Session) {
	obs := s.observers()
	notify := func() { obs.finished(s, true) }
	ok := e.enqueue(func() {
		e.deregister(s)
		e.logger.Debug("vps session canceled", zap.Int64("session_id", s.id))
		s.dispatch(notify)
	})
	if !ok {
		s.dispatch(notify)
	}
}

func (e *Engine) rejectClosed(s *Session) {
	if !s.machine.Finish() {
		return
	}
	obs := s.observers()
	s.dispatch(func() {
		obs.failed(s, ErrEngineClosed)
		obs.finished(s, false)
	})
}

func (e *Engine) register(s *Session) {
	if prev, ok := e.sessions[s.id]; ok {
		if prev == s {
			return
		}
		e.logger.Warn("vps session id collision, previous session replaced", zap.Int64("session_id", s.id))
	}
	e.sessions[s.id] = s
	e.registered.Store(int64(len(e.sessions)))
	e.logger.Debug("vps session registered", zap.Int64("session_id", s.id))
}

func (e *Engine) deregister(s *Session) {
	if cur, ok := e.sessions[s.id]; !ok || cur != s {
		return
	}
	delete(e.sessions, s.id)
	e.registered.Store(int64(len(e.sessions)))
}

func (e *Engine) setHandshakeSent(sent bool) {
	e.handshakeSent = sent
	e.handshook.Store(sent)
}

// failAll finishes every registered session with err and forgets the
// handshake.
func (e *Engine) failAll(err error) {
	ids := slices.Sorted(maps.Keys(e.sessions))
	for _, id := range ids {
		s := e.sessions[id]
		delete(e.sessions, id)
		if !s.machine.Finish() {
			continue
		}
		obs := s.observers()
		s.dispatch(func() {
			obs.failed(s, err)
			obs.finished(s, false)
		})
	}
	e.registered.Store(0)
	e.setHandshakeSent(false)
	if len(ids) > 0 {
		e.logger.Info("vps sessions failed", zap.Int("sessions", len(ids)), zap.Error(err))
	}
}

// delegate receives transport events and moves them onto the worker.
type delegate struct {
	e *Engine
}

func (d delegate) ConnectionEstablished() {
	d.e.logger.Info("vps connection established", zap.String("backend_url", d.e.cfg.BackendURL))
}

func (d delegate) ConnectionLost(err error) {
	if !d.e.enqueue(func() { d.e.connectionLost(err) }) {
		d.e.logger.Debug("vps connection loss after close ignored", zap.Error(err))
	}
}

func (d delegate) MessageReceived(msg *wire.Message) {
	if !d.e.enqueue(func() { d.e.receive(msg) }) {
		d.e.logger.Debug("vps message after close dropped", zap.Stringer("message", msg))
	}
}

func (e *Engine) connectionLost(cause error) {
	e.logger.Warn("vps connection lost",
		zap.Int("sessions", len(e.sessions)),
		zap.Error(cause),
	)
	e.failAll(connectionLost(cause))
}
