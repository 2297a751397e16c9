package transport

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

var (
	// ErrUntrustedCertificate reports a server chain rejected by a TrustValidator.
	ErrUntrustedCertificate = errors.New("vps server certificate not trusted")
	// ErrTLSRequired reports certificate pinning configured for a plain ws:// URL.
	ErrTLSRequired = errors.New("certificate pinning requires a wss:// backend url")
	// ErrPinnedCertificatesRequired reports pinning enabled without certificates.
	ErrPinnedCertificatesRequired = errors.New("certificate pinning enabled without pinned certificates")
)

// TrustValidator decides whether a presented server chain is acceptable for host.
type TrustValidator interface {
	Validate(chain []*x509.Certificate, host string) error
}

// TLSConfig builds the client TLS config for serverName. With a validator the
// validator is the only authority on the peer chain.
func TLSConfig(validator TrustValidator, serverName string) *tls.Config {
	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}
	if validator == nil {
		return cfg
	}
	cfg.InsecureSkipVerify = true
	cfg.VerifyConnection = func(state tls.ConnectionState) error {
		return validator.Validate(state.PeerCertificates, serverName)
	}
	return cfg
}

// SystemTrust verifies the chain against Roots, or the system pool when nil.
type SystemTrust struct {
	Roots *x509.CertPool
}

// Validate implements TrustValidator.
func (s SystemTrust) Validate(chain []*x509.Certificate, host string) error {
	_, err := verifyChain(chain, host, s.Roots)
	return err
}

// PinnedCertificates accepts a chain only when a pinned certificate is part
// of a verified path from the leaf.
type PinnedCertificates struct {
	pins [][]byte
	// AllowSelfSigned verifies the leaf against the pins instead of Roots and
	// skips the hostname check. A pinned leaf is accepted as is.
	AllowSelfSigned bool
	// Roots used for chain verification. Nil selects the system pool.
	Roots *x509.CertPool
}

// NewPinnedCertificates pins certs.
func NewPinnedCertificates(allowSelfSigned bool, certs ...*x509.Certificate) *PinnedCertificates {
	p := &PinnedCertificates{AllowSelfSigned: allowSelfSigned}
	for _, cert := range certs {
		if cert != nil {
			p.pins = append(p.pins, cert.Raw)
		}
	}
	return p
}

// LoadPinnedCertificates reads PEM or DER certificates from paths.
func LoadPinnedCertificates(allowSelfSigned bool, paths ...string) (*PinnedCertificates, error) {
	var certs []*x509.Certificate
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read pinned certificate %s: %w", path, err)
		}
		parsed, err := parseCertificates(data)
		if err != nil {
			return nil, fmt.Errorf("parse pinned certificate %s: %w", path, err)
		}
		certs = append(certs, parsed...)
	}
	if len(certs) == 0 {
		return nil, ErrPinnedCertificatesRequired
	}
	return NewPinnedCertificates(allowSelfSigned, certs...), nil
}

// Len returns the number of pinned certificates.
func (p *PinnedCertificates) Len() int {
	return len(p.pins)
}

// Validate implements TrustValidator.
func (p *PinnedCertificates) Validate(chain []*x509.Certificate, host string) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty chain from %s", ErrUntrustedCertificate, host)
	}
	var (
		verified [][]*x509.Certificate
		err      error
	)
	if p.AllowSelfSigned {
		if p.pinned(chain[0]) {
			return nil
		}
		verified, err = verifyChain(chain, "", p.pool())
	} else {
		verified, err = verifyChain(chain, host, p.Roots)
	}
	if err != nil {
		return err
	}
	for _, path := range verified {
		for _, cert := range path {
			if p.pinned(cert) {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: no pinned certificate in chain from %s", ErrUntrustedCertificate, host)
}

func (p *PinnedCertificates) pinned(cert *x509.Certificate) bool {
	for _, pin := range p.pins {
		if bytes.Equal(cert.Raw, pin) {
			return true
		}
	}
	return false
}

// pool returns the pins as trust anchors.
func (p *PinnedCertificates) pool() *x509.CertPool {
	pool := x509.NewCertPool()
	for _, pin := range p.pins {
		if cert, err := x509.ParseCertificate(pin); err == nil {
			pool.AddCert(cert)
		}
	}
	return pool
}

func verifyChain(chain []*x509.Certificate, host string, roots *x509.CertPool) ([][]*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: empty chain from %s", ErrUntrustedCertificate, host)
	}
	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}
	verified, err := chain[0].Verify(x509.VerifyOptions{
		DNSName:       host,
		Roots:         roots,
		Intermediates: intermediates,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUntrustedCertificate, err)
	}
	return verified, nil
}

func parseCertificates(data []byte) ([]*x509.Certificate, error) {
	if !bytes.Contains(data, []byte("-----BEGIN")) {
		return x509.ParseCertificates(data)
	}
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no CERTIFICATE block")
	}
	return certs, nil
}

// SecurityConfig selects how the backend certificate is trusted.
type SecurityConfig struct {
	PinningEnabled  bool     `mapstructure:"pinning_enabled" yaml:"pinning_enabled"`
	AllowSelfSigned bool     `mapstructure:"allow_self_signed" yaml:"allow_self_signed"`
	PinnedCerts     []string `mapstructure:"pinned_certs" yaml:"pinned_certs"`
}

// Validate checks the settings against the backend url.
func (c SecurityConfig) Validate(backendURL string) error {
	if !c.PinningEnabled {
		return nil
	}
	u, err := url.Parse(backendURL)
	if err != nil {
		return fmt.Errorf("parse backend url: %w", err)
	}
	if !strings.EqualFold(u.Scheme, "wss") {
		return ErrTLSRequired
	}
	if len(c.PinnedCerts) == 0 {
		return ErrPinnedCertificatesRequired
	}
	return nil
}

// Validator builds the TrustValidator, or nil for default verification.
func (c SecurityConfig) Validator() (TrustValidator, error) {
	if !c.PinningEnabled {
		return nil, nil
	}
	pinned, err := LoadPinnedCertificates(c.AllowSelfSigned, c.PinnedCerts...)
	if err != nil {
		return nil, err
	}
	return pinned, nil
}
