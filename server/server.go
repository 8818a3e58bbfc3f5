// Package server exposes an engine over HTTP: server-sent events and
// websockets for live UI streams, a blocking JSON endpoint and invocation
// management.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hupe1980/genui/engine"
	"github.com/hupe1980/genui/logging"
)

// Options configure a Server.
type Options struct {
	// KeepAlive is the SSE ping interval.
	KeepAlive time.Duration

	// CheckOrigin validates websocket origins. nil uses the gorilla default
	// (same-origin or no Origin header).
	CheckOrigin func(r *http.Request) bool

	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration

	// Logger defaults to a NoOpLogger.
	Logger logging.Logger
}

// Server routes HTTP requests to an engine.
type Server struct {
	router   *gin.Engine
	engine   *engine.Engine
	upgrader websocket.Upgrader
	logger   logging.Logger
	opts     Options
}

// New creates a Server for e.
func New(e *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		KeepAlive:       15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}

	r := gin.New()
	s := &Server{
		router: r,
		engine: e,
		upgrader: websocket.Upgrader{
			CheckOrigin: opts.CheckOrigin,
		},
		logger: opts.Logger,
		opts:   opts,
	}
	r.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes()
	return s
}

// Handler returns the gin engine as an http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info("server.shutdown.start")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server.shutdown.error", "error", err.Error())
			return
		}
		s.logger.Info("server.shutdown.complete")
	}()

	s.logger.Info("server.listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.healthz)

	chat := s.router.Group("/chat")
	chat.POST("/stream", s.streamHandler)
	chat.POST("/invoke", s.invokeHandler)
	chat.GET("/ws", s.wsHandler)

	chat.GET("/invocations", s.listInvocations)
	chat.DELETE("/invocations/:id", s.stopInvocation)

	chat.GET("/sessions/:id", s.getSession)
	chat.DELETE("/sessions/:id", s.deleteSession)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
