package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appconfig "github.com/saker-ai/vps-client/internal/config"
	"github.com/saker-ai/vps-client/internal/protocol"
	"github.com/saker-ai/vps-client/internal/ws"
)

const defaultAskTimeout = 30 * time.Second

// NewRouter wires the bridge endpoints.
func NewRouter(cfg appconfig.Config, engine ws.Engine, wsHandler *ws.Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		stats := engine.Stats()
		c.JSON(http.StatusOK, protocol.HealthResponse{
			Status:        "ok",
			Sessions:      stats.Sessions,
			Clients:       wsHandler.Clients(),
			HandshakeSent: stats.HandshakeSent,
			Transport:     stats.Transport,
		})
	})

	router.POST("/v1/ask", askHandler(engine, cfg.AskTimeout, logger))

	router.GET("/client-ws", func(c *gin.Context) {
		wsHandler.Handle(c.Writer, c.Request)
	})

	return router
}

func askHandler(engine ws.Engine, timeout time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if timeout <= 0 {
		timeout = defaultAskTimeout
	}
	return func(c *gin.Context) {
		var req protocol.AskRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		resp, err := ws.Ask(ctx, engine, req)
		switch {
		case errors.Is(err, ws.ErrEmptyText):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case err != nil:
			logger.Info("ask failed", zap.Int64("session_id", resp.SessionID), zap.Error(err))
			c.JSON(http.StatusBadGateway, resp)
		case resp.Canceled && errors.Is(ctx.Err(), context.DeadlineExceeded):
			c.JSON(http.StatusGatewayTimeout, resp)
		default:
			c.JSON(http.StatusOK, resp)
		}
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
