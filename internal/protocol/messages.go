// Package protocol defines the JSON messages of the local bridge.
package protocol

// Browser to bridge command types.
const (
	TypeTextInput       = "text-input"
	TypeMicAudioData    = "mic-audio-data"
	TypeMicAudioEnd     = "mic-audio-end"
	TypeInterruptSignal = "interrupt-signal"
	TypeSetMute         = "set-mute"
	TypeHeartbeat       = "heartbeat"
)

// Bridge to browser event types.
const (
	TypeTranscription = "user-input-transcription"
	TypeFullText      = "full-text"
	TypePayload       = "payload"
	TypeAudio         = "audio"
	TypeTurnFinished  = "turn-finished"
	TypeError         = "error"
	TypeHeartbeatAck  = "heartbeat-ack"
)

// ClientCommand represents a command sent from the browser to the bridge.
type ClientCommand struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	// Audio holds float samples in [-1, 1], interleaved when Channels > 1.
	Audio      []float64 `json:"audio,omitempty"`
	SampleRate int       `json:"sample_rate,omitempty"`
	Channels   int       `json:"channels,omitempty"`
	Muted      *bool     `json:"muted,omitempty"`
}

// ServerEvent represents an event pushed from the bridge to the browser.
type ServerEvent struct {
	Type        string    `json:"type"`
	SessionID   int64     `json:"session_id,omitempty"`
	Text        string    `json:"text,omitempty"`
	Payload     string    `json:"payload,omitempty"`
	AudioPCM    string    `json:"audio_pcm,omitempty"`
	AudioFormat string    `json:"audio_format,omitempty"`
	SampleRate  int       `json:"audio_sample_rate,omitempty"`
	Channels    int       `json:"audio_channels,omitempty"`
	Volumes     []float64 `json:"volumes,omitempty"`
	SliceLength int       `json:"slice_length,omitempty"`
	DurationMs  int       `json:"duration_ms,omitempty"`
	Canceled    *bool     `json:"canceled,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Text  string `json:"text"`
	Muted bool   `json:"muted"`
}

// AskResponse collects everything the backend returned for one turn.
type AskResponse struct {
	SessionID   int64    `json:"session_id"`
	Transcripts []string `json:"transcripts"`
	Replies     []string `json:"replies"`
	Payloads    []string `json:"payloads"`
	VoiceBytes  int      `json:"voice_bytes"`
	Canceled    bool     `json:"canceled"`
	Error       string   `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Sessions      int    `json:"sessions"`
	Clients       int    `json:"clients"`
	HandshakeSent bool   `json:"handshake_sent"`
	Transport     string `json:"transport"`
}
