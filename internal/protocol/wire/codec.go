package wire

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldMessageID   protowire.Number = 1
	fieldUserID      protowire.Number = 2
	fieldUserChannel protowire.Number = 3
	fieldMessageName protowire.Number = 4
	fieldToken       protowire.Number = 5
	fieldLast        protowire.Number = 6
	fieldDevice      protowire.Number = 7
	fieldText        protowire.Number = 8
	fieldVoice       protowire.Number = 9
	fieldSettings    protowire.Number = 10
	fieldStatus      protowire.Number = 11
)

const (
	deviceClientType      protowire.Number = 1
	deviceChannel         protowire.Number = 2
	deviceChannelVersion  protowire.Number = 3
	devicePlatformName    protowire.Number = 4
	devicePlatformVersion protowire.Number = 5

	settingsDubbing     protowire.Number = 1
	settingsEcho        protowire.Number = 2
	settingsTTSEngine   protowire.Number = 3
	settingsSTTEngine   protowire.Number = 4
	settingsSTTAutoStop protowire.Number = 5

	payloadData protowire.Number = 1

	statusCode        protowire.Number = 1
	statusDescription protowire.Number = 2
)

var (
	errInvalidUTF8 = errors.New("invalid utf-8")
	errTooLarge    = errors.New("message too large")
	errWrongType   = errors.New("unexpected wire type")
	errNilMessage  = errors.New("nil message")
)

// Encode serializes m into a protobuf body.
func Encode(m *Message) ([]byte, error) {
	if m == nil {
		return nil, &EncodingError{Field: "message", Err: errNilMessage}
	}
	enc := encoder{}
	enc.varint(fieldMessageID, uint64(m.MessageID))
	enc.str("user_id", fieldUserID, m.UserID)
	enc.str("user_channel", fieldUserChannel, m.UserChannel)
	enc.str("message_name", fieldMessageName, m.MessageName)
	enc.str("token", fieldToken, m.Token)
	enc.int32(fieldLast, m.Last)
	if m.Device != nil {
		sub := encoder{}
		sub.str("device.client_type", deviceClientType, m.Device.ClientType)
		sub.str("device.channel", deviceChannel, m.Device.Channel)
		sub.str("device.channel_version", deviceChannelVersion, m.Device.ChannelVersion)
		sub.str("device.platform_name", devicePlatformName, m.Device.PlatformName)
		sub.str("device.platform_version", devicePlatformVersion, m.Device.PlatformVersion)
		enc.message(fieldDevice, sub)
	}
	if m.Text != nil {
		sub := encoder{}
		sub.str("text.data", payloadData, m.Text.Data)
		enc.message(fieldText, sub)
	}
	if m.Voice != nil {
		sub := encoder{}
		if len(m.Voice.Data) > 0 {
			sub.buf = protowire.AppendTag(sub.buf, payloadData, protowire.BytesType)
			sub.buf = protowire.AppendBytes(sub.buf, m.Voice.Data)
		}
		enc.message(fieldVoice, sub)
	}
	if m.Settings != nil {
		sub := encoder{}
		sub.int32(settingsDubbing, m.Settings.Dubbing)
		sub.int32(settingsEcho, m.Settings.Echo)
		sub.str("settings.tts_engine", settingsTTSEngine, m.Settings.TTSEngine)
		sub.str("settings.stt_engine", settingsSTTEngine, m.Settings.STTEngine)
		sub.int32(settingsSTTAutoStop, m.Settings.STTAutoStop)
		enc.message(fieldSettings, sub)
	}
	if m.Status != nil {
		sub := encoder{}
		sub.int32(statusCode, m.Status.Code)
		sub.str("status.description", statusDescription, m.Status.Description)
		enc.message(fieldStatus, sub)
	}
	if enc.err != nil {
		return nil, enc.err
	}
	if len(enc.buf) > MaxMessageSize {
		return nil, &EncodingError{Field: "message", Err: errTooLarge}
	}
	return enc.buf, nil
}

type encoder struct {
	buf []byte
	err error
}

func (e *encoder) varint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

func (e *encoder) int32(num protowire.Number, v int32) {
	e.varint(num, uint64(int64(v)))
}

func (e *encoder) str(name string, num protowire.Number, v string) {
	if v == "" {
		return
	}
	if !utf8.ValidString(v) {
		if e.err == nil {
			e.err = &EncodingError{Field: name, Err: errInvalidUTF8}
		}
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, v)
}

func (e *encoder) message(num protowire.Number, sub encoder) {
	if sub.err != nil {
		if e.err == nil {
			e.err = sub.err
		}
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, sub.buf)
}

// Decode parses a protobuf body. Unknown fields are skipped and an empty
// body yields an empty message.
func Decode(body []byte) (*Message, error) {
	m := &Message{}
	err := walk("message", body, func(num protowire.Number, f field) error {
		var err error
		switch num {
		case fieldMessageID:
			var v uint64
			v, err = f.varint("message_id")
			m.MessageID = int64(v)
		case fieldUserID:
			m.UserID, err = f.str("user_id")
		case fieldUserChannel:
			m.UserChannel, err = f.str("user_channel")
		case fieldMessageName:
			m.MessageName, err = f.str("message_name")
		case fieldToken:
			m.Token, err = f.str("token")
		case fieldLast:
			m.Last, err = f.int32("last")
		case fieldDevice:
			m.Device, err = decodeDevice(f)
		case fieldText:
			m.Text, err = decodeText(f)
		case fieldVoice:
			m.Voice, err = decodeVoice(f)
		case fieldSettings:
			m.Settings, err = decodeSettings(f)
		case fieldStatus:
			m.Status, err = decodeStatus(f)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

type field struct {
	typ  protowire.Type
	data []byte
	num  uint64
}

func (f field) varint(name string) (uint64, error) {
	if f.typ != protowire.VarintType {
		return 0, &DecodingError{Field: name, Err: errWrongType}
	}
	return f.num, nil
}

func (f field) int32(name string) (int32, error) {
	v, err := f.varint(name)
	return int32(v), err
}

func (f field) bytes(name string) ([]byte, error) {
	if f.typ != protowire.BytesType {
		return nil, &DecodingError{Field: name, Err: errWrongType}
	}
	return f.data, nil
}

func (f field) str(name string) (string, error) {
	b, err := f.bytes(name)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &DecodingError{Field: name, Err: errInvalidUTF8}
	}
	return string(b), nil
}

func walk(name string, b []byte, visit func(protowire.Number, field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return &DecodingError{Field: name, Err: fmt.Errorf("tag: %w", protowire.ParseError(n))}
		}
		b = b[n:]
		f := field{typ: typ}
		switch typ {
		case protowire.VarintType:
			f.num, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.data, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return &DecodingError{Field: fmt.Sprintf("%s.%d", name, num), Err: protowire.ParseError(n)}
		}
		b = b[n:]
		if err := visit(num, f); err != nil {
			return err
		}
	}
	return nil
}

func decodeDevice(f field) (*Device, error) {
	b, err := f.bytes("device")
	if err != nil {
		return nil, err
	}
	d := &Device{}
	err = walk("device", b, func(num protowire.Number, f field) error {
		var err error
		switch num {
		case deviceClientType:
			d.ClientType, err = f.str("device.client_type")
		case deviceChannel:
			d.Channel, err = f.str("device.channel")
		case deviceChannelVersion:
			d.ChannelVersion, err = f.str("device.channel_version")
		case devicePlatformName:
			d.PlatformName, err = f.str("device.platform_name")
		case devicePlatformVersion:
			d.PlatformVersion, err = f.str("device.platform_version")
		}
		return err
	})
	return d, err
}

func decodeSettings(f field) (*Settings, error) {
	b, err := f.bytes("settings")
	if err != nil {
		return nil, err
	}
	s := &Settings{}
	err = walk("settings", b, func(num protowire.Number, f field) error {
		var err error
		switch num {
		case settingsDubbing:
			s.Dubbing, err = f.int32("settings.dubbing")
		case settingsEcho:
			s.Echo, err = f.int32("settings.echo")
		case settingsTTSEngine:
			s.TTSEngine, err = f.str("settings.tts_engine")
		case settingsSTTEngine:
			s.STTEngine, err = f.str("settings.stt_engine")
		case settingsSTTAutoStop:
			s.STTAutoStop, err = f.int32("settings.stt_auto_stop")
		}
		return err
	})
	return s, err
}

func decodeText(f field) (*Text, error) {
	b, err := f.bytes("text")
	if err != nil {
		return nil, err
	}
	t := &Text{}
	err = walk("text", b, func(num protowire.Number, f field) error {
		var err error
		if num == payloadData {
			t.Data, err = f.str("text.data")
		}
		return err
	})
	return t, err
}

func decodeVoice(f field) (*Voice, error) {
	b, err := f.bytes("voice")
	if err != nil {
		return nil, err
	}
	v := &Voice{}
	err = walk("voice", b, func(num protowire.Number, f field) error {
		if num != payloadData {
			return nil
		}
		data, err := f.bytes("voice.data")
		if err != nil {
			return err
		}
		v.Data = append([]byte(nil), data...)
		return nil
	})
	return v, err
}

func decodeStatus(f field) (*Status, error) {
	b, err := f.bytes("status")
	if err != nil {
		return nil, err
	}
	s := &Status{}
	err = walk("status", b, func(num protowire.Number, f field) error {
		var err error
		switch num {
		case statusCode:
			s.Code, err = f.int32("status.code")
		case statusDescription:
			s.Description, err = f.str("status.description")
		}
		return err
	})
	return s, err
}
