package ws

import (
	"go.uber.org/zap"

	"github.com/saker-ai/vps-client/internal/protocol"
	"github.com/saker-ai/vps-client/pkg/audio"
)

type incomingHandler func(protocol.ClientCommand)

func (c *client) dispatchIncoming(msg protocol.ClientCommand) {
	handlers := map[string]incomingHandler{
		protocol.TypeTextInput:       c.onTextInput,
		protocol.TypeMicAudioData:    c.onMicAudioData,
		protocol.TypeMicAudioEnd:     c.onMicAudioEnd,
		protocol.TypeInterruptSignal: c.onInterruptSignal,
		protocol.TypeSetMute:         c.onSetMute,
		protocol.TypeHeartbeat:       c.onHeartbeat,
	}

	if handler, ok := handlers[msg.Type]; ok {
		handler(msg)
		return
	}
	c.logger.Debug("ws unknown message type", zap.String("type", msg.Type))
}

func (c *client) onTextInput(msg protocol.ClientCommand) {
	if msg.Text == "" {
		return
	}
	s := c.newSession()
	c.logger.Debug("ws text turn", zap.Int64("session_id", s.ID()), zap.Int("chars", len(msg.Text)))
	s.SendText(msg.Text)
}

func (c *client) onMicAudioData(msg protocol.ClientCommand) {
	if len(msg.Audio) == 0 {
		return
	}
	rate := msg.SampleRate
	if rate == 0 {
		rate = audio.TargetSampleRate
	}
	channels := msg.Channels
	if channels == 0 {
		channels = 1
	}

	if c.voice != nil && !c.voice.Living() {
		c.resetCapture()
	}
	if c.converter != nil && (c.convRate != rate || c.convChannels != channels) {
		// The format changed mid-utterance; keep the session, restart the resampler.
		c.converter.Close()
		c.converter = nil
	}
	if c.converter == nil {
		conv, err := audio.NewConverter(rate, channels)
		if err != nil {
			c.sendError(err.Error())
			return
		}
		c.converter, c.convRate, c.convChannels = conv, rate, channels
	}
	if c.voice == nil {
		c.voice = c.newSession()
		c.logger.Debug("ws voice turn started",
			zap.Int64("session_id", c.voice.ID()),
			zap.Int("sample_rate", rate),
			zap.Int("channels", channels),
		)
	}

	pcm, err := c.converter.Convert(audio.Float64SliceToFloat32(msg.Audio))
	if err != nil {
		c.logger.Warn("mic audio conversion failed", zap.Error(err))
		c.sendError(err.Error())
		return
	}
	if len(pcm) > 0 {
		c.voice.SendVoice(pcm, false)
	}
}

func (c *client) onMicAudioEnd(_ protocol.ClientCommand) {
	if c.voice == nil {
		return
	}
	var tail []byte
	if c.converter != nil {
		var err error
		if tail, err = c.converter.Flush(); err != nil {
			c.logger.Warn("mic audio flush failed", zap.Error(err))
			tail = nil
		}
	}
	c.voice.SendVoice(tail, true)
	c.logger.Debug("ws voice turn ended", zap.Int64("session_id", c.voice.ID()), zap.Int("tail_bytes", len(tail)))
	c.resetCapture()
}

func (c *client) onInterruptSignal(_ protocol.ClientCommand) {
	c.resetCapture()
	for _, s := range c.live() {
		s.Cancel()
	}
}

func (c *client) onSetMute(msg protocol.ClientCommand) {
	if msg.Muted == nil {
		return
	}
	c.setMuted(*msg.Muted)
}

func (c *client) onHeartbeat(_ protocol.ClientCommand) {
	c.send(protocol.ServerEvent{Type: protocol.TypeHeartbeatAck})
}
