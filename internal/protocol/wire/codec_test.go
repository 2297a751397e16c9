package wire

import (
	"bytes"
	"errors"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeDecodeText(t *testing.T) {
	f := Factory{UserID: "user-1", Token: "tok", UserChannel: "AFINA"}
	body, err := Encode(f.Text(42, "hello"))
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	got, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if got.CorrelationID() != 42 {
		t.Fatalf("CorrelationID=%d, want 42", got.CorrelationID())
	}
	if !got.IsLast() {
		t.Fatal("IsLast=false, want true")
	}
	text, ok := got.BodyText()
	if !ok || text != "hello" {
		t.Fatalf("BodyText=(%q,%v), want (%q,true)", text, ok, "hello")
	}
	if got.UserID != "user-1" || got.Token != "tok" || got.UserChannel != "AFINA" {
		t.Fatalf("credentials=%q/%q/%q, want user-1/tok/AFINA", got.UserID, got.Token, got.UserChannel)
	}
}

func TestEncodeDecodeVoiceKeepsEmptyPresence(t *testing.T) {
	f := Factory{}
	body, err := Encode(f.Voice(7, nil, true))
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	got, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	data, ok := got.VoiceData()
	if !ok {
		t.Fatal("VoiceData present=false, want true")
	}
	if len(data) != 0 {
		t.Fatalf("VoiceData len=%d, want 0", len(data))
	}
	if !got.IsLast() {
		t.Fatal("IsLast=false, want true")
	}
}

func TestEncodeDecodeVoiceNotLast(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xfe, 0xff}
	body, err := Encode(Factory{}.Voice(9, payload, false))
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	got, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if got.Last != False {
		t.Fatalf("Last=%d, want %d", got.Last, False)
	}
	if got.IsLast() {
		t.Fatal("IsLast=true, want false")
	}
	data, _ := got.VoiceData()
	if !bytes.Equal(data, payload) {
		t.Fatalf("VoiceData=%v, want %v", data, payload)
	}
}

func TestEncodeDecodeSettingsAndDevice(t *testing.T) {
	f := Factory{STTEngine: "stt-x", TTSEngine: "tts-y", Dubbing: 1}
	body, err := Encode(f.MuteSettings(5))
	if err != nil {
		t.Fatalf("Encode(mute) returned error: %v", err)
	}
	got, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode(mute) returned error: %v", err)
	}
	want := Settings{Dubbing: False, Echo: True, STTEngine: "stt-x", STTAutoStop: True}
	if got.Settings == nil || *got.Settings != want {
		t.Fatalf("mute settings=%+v, want %+v", got.Settings, want)
	}
	if got.Last != 0 {
		t.Fatalf("mute last=%d, want 0", got.Last)
	}

	device := Device{ClientType: "sdk", Channel: "mobile", ChannelVersion: "1.0", PlatformName: "linux", PlatformVersion: "6.1"}
	body, err = Encode(f.Handshake(11, device))
	if err != nil {
		t.Fatalf("Encode(handshake) returned error: %v", err)
	}
	got, err = Decode(body)
	if err != nil {
		t.Fatalf("Decode(handshake) returned error: %v", err)
	}
	if got.Device == nil || *got.Device != device {
		t.Fatalf("device=%+v, want %+v", got.Device, device)
	}
	if got.Kind() != "handshake" {
		t.Fatalf("Kind=%q, want handshake", got.Kind())
	}
}

func TestEchoSettings(t *testing.T) {
	m := Factory{TTSEngine: "tts-y", Dubbing: 1}.EchoSettings(3)
	if m.Last != True {
		t.Fatalf("echo last=%d, want %d", m.Last, True)
	}
	want := Settings{Dubbing: 1, Echo: True, TTSEngine: "tts-y"}
	if *m.Settings != want {
		t.Fatalf("echo settings=%+v, want %+v", *m.Settings, want)
	}
}

func TestEncodeInvalidUTF8(t *testing.T) {
	_, err := Encode(Factory{}.Text(1, "bad\xff"))
	if !errors.Is(err, ErrEncoding) {
		t.Fatalf("Encode error=%v, want ErrEncoding", err)
	}
	var encErr *EncodingError
	if !errors.As(err, &encErr) || encErr.Field != "text.data" {
		t.Fatalf("Encode error=%v, want EncodingError on text.data", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "truncated varint", body: []byte{0x08, 0xff}},
		{name: "truncated length", body: []byte{0x42, 0x05, 'a'}},
		{name: "bad tag", body: []byte{0x00}},
		{name: "wrong wire type", body: protowire.AppendVarint(protowire.AppendTag(nil, fieldText, protowire.VarintType), 1)},
		{name: "invalid utf8", body: protowire.AppendBytes(protowire.AppendTag(nil, fieldMessageName, protowire.BytesType), []byte{0xff})},
	}
	for _, tt := range tests {
		if _, err := Decode(tt.body); !errors.Is(err, ErrDecoding) {
			t.Fatalf("Decode(%s) error=%v, want ErrDecoding", tt.name, err)
		}
	}
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 99, protowire.BytesType)
	b = protowire.AppendString(b, "ignored")
	b = protowire.AppendTag(b, 100, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 7)
	b = protowire.AppendTag(b, fieldMessageID, protowire.VarintType)
	b = protowire.AppendVarint(b, 12)

	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if got.MessageID != 12 {
		t.Fatalf("MessageID=%d, want 12", got.MessageID)
	}
}

func TestDecodeNegativeLast(t *testing.T) {
	b := protowire.AppendTag(nil, fieldLast, protowire.VarintType)
	neg := int64(-1)
	b = protowire.AppendVarint(b, uint64(neg))
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if got.Last != False {
		t.Fatalf("Last=%d, want %d", got.Last, False)
	}
}

func TestErrorAccessors(t *testing.T) {
	tests := []struct {
		name        string
		msg         Message
		wantProto   bool
		wantSession bool
	}{
		{name: "uncorrelated", msg: Message{Status: &Status{Code: 3, Description: "bad token"}}, wantProto: true},
		{name: "correlated", msg: Message{MessageID: 4, Status: &Status{Code: 3, Description: "bad"}}, wantSession: true},
		{name: "empty description", msg: Message{Status: &Status{Code: 3}}},
		{name: "no status", msg: Message{MessageID: 4}},
	}
	for _, tt := range tests {
		if _, ok := tt.msg.ProtocolError(); ok != tt.wantProto {
			t.Fatalf("%s ProtocolError=%v, want %v", tt.name, ok, tt.wantProto)
		}
		if _, ok := tt.msg.SessionError(); ok != tt.wantSession {
			t.Fatalf("%s SessionError=%v, want %v", tt.name, ok, tt.wantSession)
		}
	}
}

func TestBodyTextEmptyIsAbsent(t *testing.T) {
	m := Message{Text: &Text{}}
	if _, ok := m.BodyText(); ok {
		t.Fatal("BodyText present=true for empty text, want false")
	}
}

func TestIsRecognitionHint(t *testing.T) {
	tests := []struct {
		hint string
		want bool
	}{
		{hint: "STT", want: true},
		{hint: "ABK", want: true},
		{hint: "CRT", want: true},
		{hint: "GOOGLE", want: true},
		{hint: "stt", want: false},
		{hint: "", want: false},
		{hint: "DIALOG", want: false},
	}
	for _, tt := range tests {
		if got := IsRecognitionHint(tt.hint); got != tt.want {
			t.Fatalf("IsRecognitionHint(%q)=%v, want %v", tt.hint, got, tt.want)
		}
	}
}
