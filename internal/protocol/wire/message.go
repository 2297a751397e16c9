package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Tri-state integer values used by last, echo, dubbing and stt_auto_stop.
const (
	True  int32 = 1
	False int32 = -1
)

// MaxMessageSize bounds an encoded message body.
const MaxMessageSize = 16 << 20

var (
	// ErrEncoding is matched by every *EncodingError.
	ErrEncoding = errors.New("wire: encoding failed")
	// ErrDecoding is matched by every *DecodingError.
	ErrDecoding = errors.New("wire: decoding failed")
)

// EncodingError reports a message that cannot be serialized.
type EncodingError struct {
	Field string
	Err   error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("wire: encode %s: %v", e.Field, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Is matches ErrEncoding.
func (e *EncodingError) Is(target error) bool { return target == ErrEncoding }

// DecodingError reports a body that is not a valid message.
type DecodingError struct {
	Field string
	Err   error
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("wire: decode %s: %v", e.Field, e.Err)
}

func (e *DecodingError) Unwrap() error { return e.Err }

// Is matches ErrDecoding.
func (e *DecodingError) Is(target error) bool { return target == ErrDecoding }

// Device describes the client in the handshake.
type Device struct {
	ClientType      string
	Channel         string
	ChannelVersion  string
	PlatformName    string
	PlatformVersion string
}

// Settings carries per-turn recognition and synthesis switches.
type Settings struct {
	Dubbing     int32
	Echo        int32
	TTSEngine   string
	STTEngine   string
	STTAutoStop int32
}

// Text is a textual payload.
type Text struct {
	Data string
}

// Voice is an audio payload. A present Voice with empty Data is meaningful.
type Voice struct {
	Data []byte
}

// Status is a backend status report.
type Status struct {
	Code        int32
	Description string
}

// Message is the single envelope exchanged in both directions.
type Message struct {
	MessageID   int64
	UserID      string
	UserChannel string
	MessageName string
	Token       string
	Last        int32
	Device      *Device
	Text        *Text
	Voice       *Voice
	Settings    *Settings
	Status      *Status
}

// CorrelationID returns the session id the message belongs to.
func (m *Message) CorrelationID() int64 {
	if m == nil {
		return 0
	}
	return m.MessageID
}

// IsLast reports whether the message is the final one of its turn.
func (m *Message) IsLast() bool {
	return m != nil && m.Last == True
}

// RoutingHint returns the backend's message name.
func (m *Message) RoutingHint() string {
	if m == nil {
		return ""
	}
	return m.MessageName
}

// BodyText returns the unescaped text payload. Empty text counts as absent.
func (m *Message) BodyText() (string, bool) {
	if m == nil || m.Text == nil || m.Text.Data == "" {
		return "", false
	}
	return Unescape(m.Text.Data), true
}

// VoiceData returns the voice payload when the voice field is present.
func (m *Message) VoiceData() ([]byte, bool) {
	if m == nil || m.Voice == nil {
		return nil, false
	}
	return m.Voice.Data, true
}

// ProtocolError returns the status of a connection-level error. The backend
// only marks uncorrelated statuses (message id 0) as protocol errors.
func (m *Message) ProtocolError() (Status, bool) {
	if m == nil || m.Status == nil || m.Status.Description == "" || m.MessageID != 0 {
		return Status{}, false
	}
	return *m.Status, true
}

// SessionError returns a status addressed to a single session.
func (m *Message) SessionError() (Status, bool) {
	if m == nil || m.Status == nil || m.Status.Description == "" || m.MessageID == 0 {
		return Status{}, false
	}
	return *m.Status, true
}

// Kind names the payload carried by the message, for logs.
func (m *Message) Kind() string {
	switch {
	case m == nil:
		return "nil"
	case m.Device != nil:
		return "handshake"
	case m.Settings != nil:
		return "settings"
	case m.Voice != nil:
		return "voice"
	case m.Text != nil:
		return "text"
	case m.Status != nil:
		return "status"
	default:
		return "marker"
	}
}

// String renders sizes and flags, never payload contents.
func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "id=%d kind=%s last=%d", m.MessageID, m.Kind(), m.Last)
	if m.MessageName != "" {
		fmt.Fprintf(&b, " name=%s", m.MessageName)
	}
	if m.Text != nil {
		fmt.Fprintf(&b, " text_bytes=%d", len(m.Text.Data))
	}
	if m.Voice != nil {
		fmt.Fprintf(&b, " voice_bytes=%d", len(m.Voice.Data))
	}
	if m.Status != nil {
		fmt.Fprintf(&b, " status=%d", m.Status.Code)
	}
	return b.String()
}

// Tri converts a boolean into the tri-state wire integer.
func Tri(v bool) int32 {
	if v {
		return True
	}
	return False
}

// IsRecognitionHint reports whether a text reply with this routing hint is a
// speech recognition transcript. Every other hint, including none, is a
// dialog reply. The list mirrors the recognizers the backend currently runs.
func IsRecognitionHint(hint string) bool {
	switch hint {
	case "ABK", "CRT", "GOOGLE", "STT":
		return true
	default:
		return false
	}
}

// PayloadHint marks a dialog reply whose text is a structured service payload.
const PayloadHint = "PAYLOAD"
