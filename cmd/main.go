package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	appconfig "github.com/saker-ai/vps-client/internal/config"
	"github.com/saker-ai/vps-client/pkg/runtime"
)

const shutdownTimeout = 5 * time.Second

func main() {
	flags := pflag.NewFlagSet("vps-client", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to a YAML config (default: conf.yaml in the root dir)")
	ask := flags.String("ask", "", "send one utterance, print the replies as JSON and exit")
	mute := flags.Bool("mute", false, "request text-only replies for --ask")
	dumpConfig := flags.Bool("dump-config", false, "print the effective config and exit")
	flags.String("backend-url", "", "VPS websocket url")
	flags.String("http-addr", "", "bridge listen address")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("user-id", "", "user id sent to the backend")
	_ = flags.Parse(os.Args[1:])

	cfg, err := appconfig.LoadWithFlags(*configPath, flags)
	if err != nil {
		fallback, _ := zap.NewProduction()
		defer fallback.Sync()
		fallback.Fatal("failed to load config", zap.Error(err))
	}
	if *dumpConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	logger := runtime.NewLogger(cfg)
	defer logger.Sync()

	srv, err := runtime.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to create vps client", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *ask != "" {
		code := runAsk(ctx, srv, *ask, *mute, logger)
		stop()
		_ = logger.Sync()
		os.Exit(code)
	}

	go func() {
		if err := srv.Run(); err != nil {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func runAsk(ctx context.Context, srv *runtime.Server, text string, muted bool, logger *zap.Logger) int {
	resp, askErr := srv.Ask(ctx, text, muted)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		logger.Error("write ask result failed", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown failed", zap.Error(err))
	}
	if askErr != nil {
		logger.Error("ask failed", zap.Error(askErr))
		return 1
	}
	return 0
}
