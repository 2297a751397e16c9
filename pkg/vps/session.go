package vps

import (
	"sync"

	"github.com/saker-ai/vps-client/internal/session/fsm"
)

// SessionOption configures a Session at creation.
type SessionOption func(*Session)

// WithSessionID overrides the generated session id.
func WithSessionID(id int64) SessionOption {
	return func(s *Session) { s.id = id }
}

// WithMuted asks the backend for text-only replies.
func WithMuted(muted bool) SessionOption {
	return func(s *Session) { s.muted = muted }
}

// WithEcho asks the backend to voice the recognized text back.
func WithEcho(enabled bool) SessionOption {
	return func(s *Session) { s.echo = enabled }
}

// WithRecognitionObserver registers o for recognition results.
func WithRecognitionObserver(o RecognitionObserver) SessionOption {
	return func(s *Session) { s.obs.recognition = o }
}

// WithDialogObserver registers o for dialog replies.
func WithDialogObserver(o DialogObserver) SessionOption {
	return func(s *Session) { s.obs.dialog = o }
}

// WithVocalizationObserver registers o for synthesized voice.
func WithVocalizationObserver(o VocalizationObserver) SessionOption {
	return func(s *Session) { s.obs.vocalization = o }
}

// WithObserver registers o for every observer interface it implements.
func WithObserver(o any) SessionOption {
	return func(s *Session) {
		if r, ok := o.(RecognitionObserver); ok {
			s.obs.recognition = r
		}
		if d, ok := o.(DialogObserver); ok {
			s.obs.dialog = d
		}
		if v, ok := o.(VocalizationObserver); ok {
			s.obs.vocalization = v
		}
	}
}

// WithDispatcher sets where the session's callbacks run.
func WithDispatcher(d Dispatcher) SessionOption {
	return func(s *Session) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// Session is one conversational turn. Its methods are safe for concurrent
// use and never block; results arrive through the observers.
type Session struct {
	id      int64
	engine  *Engine
	machine *fsm.Machine

	mu         sync.RWMutex
	muted      bool
	echo       bool
	obs        observerSet
	dispatcher Dispatcher
}

// ID returns the correlation id of the session.
func (s *Session) ID() int64 { return s.id }

// State returns the lifecycle state.
func (s *Session) State() fsm.State { return s.machine.State() }

// Living reports whether the session still accepts sends.
func (s *Session) Living() bool { return s.machine.Living() }

// Muted reports whether replies are requested as text only.
func (s *Session) Muted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted
}

// SetMuted changes the mute flag for subsequent sends.
func (s *Session) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// EchoEnabled reports whether echo settings accompany each send.
func (s *Session) EchoEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.echo
}

// SetEchoEnabled changes the echo flag for subsequent sends.
func (s *Session) SetEchoEnabled(enabled bool) {
	s.mu.Lock()
	s.echo = enabled
	s.mu.Unlock()
}

func (s *Session) SetRecognitionObserver(o RecognitionObserver) {
	s.mu.Lock()
	s.obs.recognition = o
	s.mu.Unlock()
}

func (s *Session) SetDialogObserver(o DialogObserver) {
	s.mu.Lock()
	s.obs.dialog = o
	s.mu.Unlock()
}

func (s *Session) SetVocalizationObserver(o VocalizationObserver) {
	s.mu.Lock()
	s.obs.vocalization = o
	s.mu.Unlock()
}

// SetDispatcher changes where later callbacks run. Nil is ignored.
func (s *Session) SetDispatcher(d Dispatcher) {
	if d == nil {
		return
	}
	s.mu.Lock()
	s.dispatcher = d
	s.mu.Unlock()
}

// SendText sends one utterance as text. It does nothing once the session
// has finished.
func (s *Session) SendText(text string) {
	if !s.Living() {
		return
	}
	s.engine.sendText(s, text)
}

// SendVoice sends 16 kHz mono PCM16 audio. last marks the end of speech;
// SendVoice(nil, true) alone ends an utterance. It does nothing once the
// session has finished. data is copied.
func (s *Session) SendVoice(data []byte, last bool) {
	if !s.Living() {
		return
	}
	var buf []byte
	if len(data) > 0 {
		buf = make([]byte, len(data))
		copy(buf, data)
	}
	s.engine.sendVoice(s, buf, last)
}

// Cancel finishes the session at once. Observers then receive finished
// with canceled set. Cancel on a finished session does nothing.
func (s *Session) Cancel() {
	if !s.machine.Finish() {
		return
	}
	s.engine.cancel(s)
}

func (s *Session) observers() observerSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.obs
}

func (s *Session) dispatch(fn func()) {
	s.mu.RLock()
	d := s.dispatcher
	s.mu.RUnlock()
	d.Dispatch(fn)
}
