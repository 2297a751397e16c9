package runtime

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	appconfig "github.com/saker-ai/vps-client/internal/config"
	"github.com/saker-ai/vps-client/internal/protocol"
	"github.com/saker-ai/vps-client/internal/testutil/vpstest"
	"github.com/saker-ai/vps-client/pkg/vps"
)

func testConfig(backendURL string) appconfig.Config {
	return appconfig.Config{
		HTTPAddr:    "127.0.0.1:0",
		BackendURL:  backendURL,
		UserID:      "user-1",
		Token:       "token",
		UserChannel: "AFINA",
		AskTimeout:  2 * time.Second,
	}
}

func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return ln.Addr().String()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig("http://vps.example/ws")
	if _, err := New(cfg, zaptest.NewLogger(t)); !errors.Is(err, vps.ErrInvalidConfig) {
		t.Fatalf("New error=%v, want ErrInvalidConfig", err)
	}
}

func TestServerAsk(t *testing.T) {
	backend := vpstest.NewBackend(t, vpstest.EchoDialog("done"))
	srv, err := New(testConfig(backend.URL), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := srv.Ask(context.Background(), "do it", false)
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if !slices.Equal(resp.Replies, []string{"done"}) {
		t.Fatalf("replies=%v, want [done]", resp.Replies)
	}
	if handshake := backend.Received(t); handshake.UserID != "user-1" || handshake.Token != "token" {
		t.Fatalf("handshake credentials=%q/%q, want user-1/token", handshake.UserID, handshake.Token)
	}
}

func TestServeHealth(t *testing.T) {
	backend := vpstest.NewBackend(t, nil)
	srv, err := New(testConfig(backend.URL), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	addr := startServer(t, srv)

	var resp *http.Response
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err = http.Get("http://" + addr + "/health")
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	var health protocol.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" {
		t.Fatalf("health=%+v, want ok", health)
	}
}

func TestShutdownClosesEngine(t *testing.T) {
	backend := vpstest.NewBackend(t, nil)
	srv, err := New(testConfig(backend.URL), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	if !srv.Engine().Stats().Closed {
		t.Fatal("engine not closed after Shutdown")
	}
	resp, err := srv.Ask(context.Background(), "late", false)
	if !errors.Is(err, vps.ErrEngineClosed) {
		t.Fatalf("Ask after Shutdown error=%v resp=%+v, want ErrEngineClosed", err, resp)
	}
}

func TestGenerateSelfSignedCert(t *testing.T) {
	cert, err := generateSelfSignedCert("vps.local")
	if err != nil {
		t.Fatalf("generateSelfSignedCert returned error: %v", err)
	}
	leaf := cert.Leaf
	if leaf == nil {
		t.Fatal("certificate leaf not parsed")
	}
	if !slices.Contains(leaf.DNSNames, "vps.local") || !slices.Contains(leaf.DNSNames, "localhost") {
		t.Fatalf("DNSNames=%v, want localhost and vps.local", leaf.DNSNames)
	}
	if err := leaf.VerifyHostname("127.0.0.1"); err != nil {
		t.Fatalf("VerifyHostname(127.0.0.1): %v", err)
	}
}

func TestServeSelfSignedTLS(t *testing.T) {
	backend := vpstest.NewBackend(t, nil)
	cfg := testConfig(backend.URL)
	cfg.HTTPTLS = appconfig.HTTPTLSConfig{Enabled: true, CertPath: "/nonexistent/server.crt", KeyPath: "/nonexistent/server.key"}
	srv, err := New(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	addr := startServer(t, srv)

	client := &http.Client{Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}}
	var resp *http.Response
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err = client.Get("https://" + addr + "/health")
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET https /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.TLS == nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d tls=%v, want 200 over tls", resp.StatusCode, resp.TLS != nil)
	}
}
