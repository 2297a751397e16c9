package wire

// Factory builds outbound messages stamped with the client's credentials.
type Factory struct {
	UserID      string
	Token       string
	UserChannel string
	TTSEngine   string
	STTEngine   string
	Dubbing     int32
}

func (f Factory) base(id int64) *Message {
	return &Message{
		MessageID:   id,
		UserID:      f.UserID,
		UserChannel: f.UserChannel,
		Token:       f.Token,
	}
}

// Handshake opens a connection lifetime.
func (f Factory) Handshake(id int64, device Device) *Message {
	m := f.base(id)
	m.Last = True
	m.Device = &device
	return m
}

// Text carries one user utterance as text.
func (f Factory) Text(id int64, body string) *Message {
	m := f.base(id)
	m.Last = True
	m.Text = &Text{Data: body}
	return m
}

// Voice carries one chunk of 16 kHz mono PCM16 audio.
func (f Factory) Voice(id int64, data []byte, last bool) *Message {
	m := f.base(id)
	m.Last = Tri(last)
	m.Voice = &Voice{Data: data}
	return m
}

// MuteSettings asks the backend to answer the session with text only.
func (f Factory) MuteSettings(id int64) *Message {
	m := f.base(id)
	m.Settings = &Settings{
		Dubbing:     False,
		Echo:        True,
		STTEngine:   f.STTEngine,
		STTAutoStop: True,
	}
	return m
}

// EchoSettings asks the backend to repeat recognized speech back.
func (f Factory) EchoSettings(id int64) *Message {
	m := f.base(id)
	m.Last = True
	m.Settings = &Settings{
		Dubbing:   f.Dubbing,
		Echo:      True,
		TTSEngine: f.TTSEngine,
	}
	return m
}
