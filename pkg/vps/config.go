package vps

import (
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saker-ai/vps-client/internal/transport"
)

const (
	// DefaultBackendURL is the test stand of the VPS backend.
	DefaultBackendURL = "wss://vps-nlpp.apps.test-ose.sigma.sbrf.ru/ws/ask"
	// DefaultUserChannel is the channel name issued by the NLP platform.
	DefaultUserChannel = "AFINA"
	// DefaultEngine selects the backend's default STT/TTS engine.
	DefaultEngine = "default"
	// DefaultDubbing is the synthesis level requested by echo settings.
	DefaultDubbing = 1
	// DefaultConnectTimeout bounds one connection attempt.
	DefaultConnectTimeout = transport.DefaultConnectTimeout

	tokenLength   = 54
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Config represents an engine config.
type Config struct {
	BackendURL     string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	UserID         string
	Token          string
	UserChannel    string
	TTSEngine      string
	STTEngine      string
	// Dubbing is the tri-state voice reply level sent in echo settings:
	// 1 on, -1 off. 0 is the wire's "undefined" and means unset, so it is
	// replaced with DefaultDubbing.
	Dubbing int32
	// EnableLogging turns engine logs on. When false the engine logs nothing
	// even if a logger was supplied.
	EnableLogging bool
	Device        DeviceInfo
	TLS           TLSConfig
	Header        http.Header
}

// TLSConfig controls certificate pinning of the backend connection.
type TLSConfig struct {
	PinningEnabled  bool     `mapstructure:"pinning_enabled" yaml:"pinning_enabled"`
	AllowSelfSigned bool     `mapstructure:"allow_self_signed" yaml:"allow_self_signed"`
	PinnedCerts     []string `mapstructure:"pinned_certs" yaml:"pinned_certs"`
}

func (c TLSConfig) security() transport.SecurityConfig {
	return transport.SecurityConfig{
		PinningEnabled:  c.PinningEnabled,
		AllowSelfSigned: c.AllowSelfSigned,
		PinnedCerts:     c.PinnedCerts,
	}
}

// TrustValidator decides whether a backend certificate chain is trusted.
type TrustValidator interface {
	Validate(chain []*x509.Certificate, host string) error
}

// DefaultConfig returns a config with fresh credentials and the stock
// backend settings.
func DefaultConfig() Config {
	return Config{
		BackendURL:     DefaultBackendURL,
		ConnectTimeout: DefaultConnectTimeout,
		WriteTimeout:   transport.DefaultWriteTimeout,
		UserID:         uuid.NewString(),
		Token:          NewToken(),
		UserChannel:    DefaultUserChannel,
		TTSEngine:      DefaultEngine,
		STTEngine:      DefaultEngine,
		Dubbing:        DefaultDubbing,
	}
}

// withDefaults fills every zero field from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.BackendURL) == "" {
		c.BackendURL = def.BackendURL
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.UserID == "" {
		c.UserID = def.UserID
	}
	if c.Token == "" {
		c.Token = def.Token
	}
	if c.UserChannel == "" {
		c.UserChannel = def.UserChannel
	}
	if c.TTSEngine == "" {
		c.TTSEngine = def.TTSEngine
	}
	if c.STTEngine == "" {
		c.STTEngine = def.STTEngine
	}
	if c.Dubbing == 0 {
		c.Dubbing = def.Dubbing
	}
	return c
}

// Validate reports the first invalid field. Every error wraps ErrInvalidConfig.
func (c Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return invalidConfig("backend url: %v", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return invalidConfig("backend url scheme %q: want ws or wss", u.Scheme)
	}
	if u.Host == "" {
		return invalidConfig("backend url %q has no host", c.BackendURL)
	}
	if c.ConnectTimeout < 0 {
		return invalidConfig("connect timeout %s is negative", c.ConnectTimeout)
	}
	if c.UserID == "" {
		return invalidConfig("user id is empty")
	}
	if c.UserChannel == "" {
		return invalidConfig("user channel is empty")
	}
	if err := c.TLS.security().Validate(c.BackendURL); err != nil {
		return fmt.Errorf("%w: tls: %w", ErrInvalidConfig, err)
	}
	return nil
}

// NewToken returns a random alphanumeric client token. Bytes at or above
// the largest multiple of the alphabet size are redrawn so every symbol is
// equally likely.
func NewToken() string {
	limit := 256 - 256%len(tokenAlphabet)
	out := make([]byte, 0, tokenLength)
	buf := make([]byte, tokenLength)
	for len(out) < tokenLength {
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(out) == tokenLength {
				break
			}
		}
	}
	return string(out)
}
