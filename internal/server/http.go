package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/infra/slack"
	"github.com/tessbot/slack-chat-bridge/internal/service"
)

const maxEventBody = 1 << 20

// HTTPConfig wires the HTTP server. A nil ingest service disables its route.
type HTTPConfig struct {
	Addr               string
	SlackSigningSecret string // empty skips signature verification
	Slack              *service.IngestService
	Feishu             *service.IngestService
	Sessions           repo.SessionRepo
}

// HTTPServer receives platform webhooks and serves the session inspection API
type HTTPServer struct {
	cfg    HTTPConfig
	logger *slog.Logger
	now    func() time.Time
	engine *gin.Engine
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(cfg HTTPConfig, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPServer{
		cfg:    cfg,
		logger: logger.With("component", "http"),
		now:    time.Now,
	}
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.RegisterRoutes(s.engine)
	return s
}

// RegisterRoutes attaches all HTTP routes to the router
func (s *HTTPServer) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", s.health)
	if s.cfg.Slack != nil {
		router.POST("/slack/events", s.slackEvents)
	}
	if s.cfg.Feishu != nil {
		router.POST("/feishu/events", s.feishuEvents)
	}
	if s.cfg.Sessions != nil {
		sessions := router.Group("/api/sessions")
		sessions.GET("/:id", s.getSession)
		sessions.DELETE("/:id", s.deleteSession)
	}
}

// Handler returns the router
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http_listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *HTTPServer) slackEvents(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
		return
	}
	if s.cfg.SlackSigningSecret != "" {
		if err := slack.VerifySignature(s.cfg.SlackSigningSecret, c.Request.Header, body, s.now()); err != nil {
			s.logger.Warn("slack_signature_rejected", "error", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}
	s.respond(c, s.cfg.Slack.HandleEvent(c.Request.Context(), body))
}

func (s *HTTPServer) feishuEvents(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
		return
	}
	s.respond(c, s.cfg.Feishu.HandleEvent(c.Request.Context(), body))
}

// respond acknowledges every delivered event so the platform does not redeliver
func (s *HTTPServer) respond(c *gin.Context, ack *service.Ack) {
	if ack.Challenge != "" {
		c.JSON(http.StatusOK, gin.H{"challenge": ack.Challenge})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) getSession(c *gin.Context) {
	session, err := s.cfg.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.Error("session_lookup_failed", "session_id", c.Param("id"), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}
	if session == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, session.ToRecord())
}

func (s *HTTPServer) deleteSession(c *gin.Context) {
	if err := s.cfg.Sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.logger.Error("session_delete_failed", "session_id", c.Param("id"), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}
	c.Status(http.StatusNoContent)
}
