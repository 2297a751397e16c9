package vps

import (
	"go.uber.org/zap"

	"github.com/saker-ai/vps-client/internal/protocol/wire"
)

// receive routes one decoded backend message. Runs on the worker.
func (e *Engine) receive(msg *wire.Message) {
	if status, ok := msg.ProtocolError(); ok {
		err := connectionLost(&StatusError{Code: status.Code, Description: status.Description})
		e.logger.Warn("vps protocol error",
			zap.Int32("code", status.Code),
			zap.String("description", status.Description),
		)
		e.transport.Reset(err)
		e.failAll(err)
		return
	}

	id := msg.CorrelationID()
	s, ok := e.sessions[id]
	if !ok {
		e.logger.Debug("vps message for unknown session dropped", zap.Stringer("message", msg))
		return
	}
	if !s.Living() {
		e.deregister(s)
		e.logger.Debug("vps message for finished session dropped", zap.Stringer("message", msg))
		return
	}
	obs := s.observers()

	if status, ok := msg.SessionError(); ok {
		err := &StatusError{Code: status.Code, Description: status.Description}
		e.logger.Info("vps session error",
			zap.Int64("session_id", id),
			zap.Int32("code", status.Code),
			zap.String("description", status.Description),
		)
		e.finalize(s, obs, func() { obs.failed(s, err) })
		return
	}

	if text, ok := msg.BodyText(); ok {
		e.deliverText(s, obs, msg.RoutingHint(), text)
		if msg.IsLast() || s.Muted() {
			e.finalize(s, obs, nil)
		}
		return
	}

	if voice, ok := msg.VoiceData(); ok {
		if obs.vocalization != nil {
			s.dispatch(func() { obs.vocalization.VocalizationVoice(s, voice) })
		}
		e.finalize(s, obs, nil)
		return
	}

	if msg.IsLast() {
		e.finalize(s, obs, nil)
		return
	}
	e.logger.Debug("vps message without content ignored", zap.Stringer("message", msg))
}

func (e *Engine) deliverText(s *Session, obs observerSet, hint, text string) {
	switch {
	case wire.IsRecognitionHint(hint):
		if obs.recognition != nil {
			s.dispatch(func() { obs.recognition.RecognitionPartialResult(s, text) })
		}
	case hint == wire.PayloadHint:
		if obs.dialog != nil {
			s.dispatch(func() { obs.dialog.DialogPayload(s, text) })
		}
	default:
		if obs.dialog != nil {
			s.dispatch(func() { obs.dialog.DialogText(s, text) })
		}
	}
}

// finalize deregisters s and, if this call finished it, delivers before
// followed by finished(false) on every observer.
func (e *Engine) finalize(s *Session, obs observerSet, before func()) {
	e.deregister(s)
	if !s.machine.Finish() {
		return
	}
	e.logger.Debug("vps session finished", zap.Int64("session_id", s.id))
	s.dispatch(func() {
		if before != nil {
			before()
		}
		obs.finished(s, false)
	})
}
