package ws

import (
	"encoding/base64"

	"go.uber.org/zap"

	"github.com/saker-ai/vps-client/internal/protocol"
	"github.com/saker-ai/vps-client/pkg/audio"
	"github.com/saker-ai/vps-client/pkg/vps"
)

const volumeSliceMillis = 20

// sessionObserver forwards one session's events to the browser. Its
// callbacks run on the client's dispatcher, one at a time.
type sessionObserver struct {
	client  *client
	decoder *audio.VoiceDecoder
}

func (o *sessionObserver) RecognitionPartialResult(s *vps.Session, text string) {
	o.client.send(protocol.ServerEvent{Type: protocol.TypeTranscription, SessionID: s.ID(), Text: text})
}

func (o *sessionObserver) RecognitionFinished(*vps.Session, bool) {}

func (o *sessionObserver) RecognitionError(*vps.Session, error) {}

func (o *sessionObserver) DialogText(s *vps.Session, text string) {
	o.client.send(protocol.ServerEvent{Type: protocol.TypeFullText, SessionID: s.ID(), Text: text})
}

func (o *sessionObserver) DialogPayload(s *vps.Session, payload string) {
	o.client.send(protocol.ServerEvent{Type: protocol.TypePayload, SessionID: s.ID(), Payload: payload})
}

func (o *sessionObserver) DialogFinished(s *vps.Session, canceled bool) {
	o.client.forget(s)
	o.client.send(protocol.ServerEvent{Type: protocol.TypeTurnFinished, SessionID: s.ID(), Canceled: &canceled})
}

func (o *sessionObserver) DialogError(s *vps.Session, err error) {
	o.client.logger.Info("vps turn failed", zap.Int64("session_id", s.ID()), zap.Error(err))
	o.client.send(protocol.ServerEvent{Type: protocol.TypeError, SessionID: s.ID(), Message: err.Error()})
}

func (o *sessionObserver) VocalizationVoice(s *vps.Session, data []byte) {
	pcm, format, err := o.decoder.Decode(data)
	if err != nil {
		o.client.logger.Warn("vps voice decode failed",
			zap.Int64("session_id", s.ID()),
			zap.Int("bytes", len(data)),
			zap.Error(err),
		)
		return
	}
	if len(pcm) == 0 {
		return
	}
	o.client.send(protocol.ServerEvent{
		Type:        protocol.TypeAudio,
		SessionID:   s.ID(),
		AudioPCM:    base64.StdEncoding.EncodeToString(pcm),
		AudioFormat: "pcm16",
		SampleRate:  format.SampleRate,
		Channels:    format.Channels,
		Volumes:     audio.ComputeVolumes(pcm, format.SampleRate, format.Channels, volumeSliceMillis),
		SliceLength: volumeSliceMillis,
		DurationMs:  audio.DurationMillis(pcm, format.SampleRate, format.Channels),
	})
}

func (o *sessionObserver) VocalizationFinished(*vps.Session, bool) {
	o.decoder.Reset()
}

func (o *sessionObserver) VocalizationError(*vps.Session, error) {}
