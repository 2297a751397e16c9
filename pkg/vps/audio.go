package vps

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
)

// AudioSource yields captured 16 kHz mono PCM16 audio. ReadChunk returns
// io.EOF when the speaker is done.
type AudioSource interface {
	ReadChunk(ctx context.Context) ([]byte, error)
}

// AudioSink plays synthesized voice.
type AudioSink interface {
	WriteVoice(data []byte) error
}

// StreamVoice pumps src into s until EOF, then sends the end-of-speech
// marker. It stops early when ctx ends or the session finishes.
func StreamVoice(ctx context.Context, s *Session, src AudioSource) error {
	for s.Living() {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := src.ReadChunk(ctx)
		if len(chunk) > 0 {
			s.SendVoice(chunk, false)
		}
		if errors.Is(err, io.EOF) {
			s.SendVoice(nil, true)
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type sinkVocalizer struct {
	sink   AudioSink
	logger *zap.Logger
}

// SinkVocalizer plays every voice reply of a session on sink.
func SinkVocalizer(sink AudioSink, logger *zap.Logger) VocalizationObserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return sinkVocalizer{sink: sink, logger: logger}
}

func (v sinkVocalizer) VocalizationVoice(s *Session, data []byte) {
	if err := v.sink.WriteVoice(data); err != nil {
		v.logger.Warn("vps voice playback failed",
			zap.Int64("session_id", s.ID()),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
	}
}

func (v sinkVocalizer) VocalizationFinished(s *Session, canceled bool) {
	v.logger.Debug("vps vocalization finished", zap.Int64("session_id", s.ID()), zap.Bool("canceled", canceled))
}

func (v sinkVocalizer) VocalizationError(s *Session, err error) {
	v.logger.Warn("vps vocalization failed", zap.Int64("session_id", s.ID()), zap.Error(err))
}
