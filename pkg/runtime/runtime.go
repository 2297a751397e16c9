// Package runtime assembles the VPS engine and the local bridge server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	appconfig "github.com/saker-ai/vps-client/internal/config"
	apphttp "github.com/saker-ai/vps-client/internal/http"
	applogger "github.com/saker-ai/vps-client/internal/logger"
	"github.com/saker-ai/vps-client/internal/protocol"
	"github.com/saker-ai/vps-client/internal/ws"
	"github.com/saker-ai/vps-client/pkg/vps"
)

const readHeaderTimeout = 10 * time.Second

// Server owns one engine and the HTTP bridge in front of it.
type Server struct {
	cfg    appconfig.Config
	logger *zap.Logger
	engine *vps.Engine
	server *http.Server
}

// NewLogger builds the configured logger, falling back to a production
// logger when the sinks cannot be opened.
func NewLogger(cfg appconfig.Config) *zap.Logger {
	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("log sinks unavailable, using stdout", zap.Error(err))
	}
	logger.Info("vps logger configured",
		zap.String("level", cfg.Log.Level),
		zap.Bool("stdout", cfg.Log.Stdout),
		zap.Bool("file_enabled", cfg.Log.File.Enabled),
		zap.String("file_path", cfg.Log.File.Path),
		zap.String("file_name", cfg.Log.File.Name),
	)
	return logger
}

// New validates cfg and creates the engine and the bridge server. Nothing
// is dialed or bound until the first turn or Run.
func New(cfg appconfig.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engine, err := vps.New(cfg.Engine(), vps.WithLogger(logger.Named("vps")))
	if err != nil {
		return nil, fmt.Errorf("create vps engine: %w", err)
	}
	logger.Info("vps config loaded",
		zap.String("config_file", cfg.ConfigFile),
		zap.String("root_dir", cfg.RootDir),
		zap.String("backend_url", cfg.BackendURL),
		zap.String("user_channel", cfg.UserChannel),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	wsHandler := ws.NewHandler(logger.Named("ws"), engine)
	router := apphttp.NewRouter(cfg, engine, wsHandler, logger.Named("http"))
	return &Server{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		server: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

// Engine returns the engine behind the bridge.
func (s *Server) Engine() *vps.Engine {
	return s.engine
}

// Handler returns the bridge router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s == nil || s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Ask runs one text turn bounded by the configured ask timeout.
func (s *Server) Ask(ctx context.Context, text string, muted bool) (protocol.AskResponse, error) {
	if s.cfg.AskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.AskTimeout)
		defer cancel()
	}
	return ws.Ask(ctx, s.engine, protocol.AskRequest{Text: text, Muted: muted})
}

// Run serves the bridge until Shutdown.
func (s *Server) Run() error {
	if s == nil || s.server == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return err
	}
	return ignoreServerClosed(s.Serve(ln))
}

// Serve serves the bridge on ln.
func (s *Server) Serve(ln net.Listener) error {
	tlsCfg := s.cfg.HTTPTLS
	if !tlsCfg.Enabled {
		s.logger.Info("starting http server", zap.String("addr", ln.Addr().String()))
		return s.server.Serve(ln)
	}

	certPath := filepath.Clean(tlsCfg.CertPath)
	keyPath := filepath.Clean(tlsCfg.KeyPath)
	if fileExists(certPath) && fileExists(keyPath) {
		s.logger.Info("starting https server", zap.String("addr", ln.Addr().String()))
		return s.server.ServeTLS(ln, certPath, keyPath)
	}

	cert, err := generateSelfSignedCert(hostOf(s.cfg.HTTPAddr))
	if err != nil {
		return fmt.Errorf("failed to generate tls cert: %w", err)
	}
	s.server.TLSConfig = tlsConfigFor(cert)
	s.logger.Warn("tls cert files missing, using in-memory cert",
		zap.String("addr", ln.Addr().String()),
		zap.String("cert_path", certPath),
		zap.String("key_path", keyPath),
	)
	return s.server.ServeTLS(ln, "", "")
}

// Shutdown stops the bridge, then closes the engine. In-flight turns end
// with vps.ErrEngineClosed.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var herr error
	if s.server != nil {
		herr = ignoreServerClosed(s.server.Shutdown(ctx))
	}
	eerr := s.engine.Close(ctx)
	return errors.Join(herr, eerr)
}

func ignoreServerClosed(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return ""
	}
	return host
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
