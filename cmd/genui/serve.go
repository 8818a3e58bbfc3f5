package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/hupe1980/genui/config"
	"github.com/hupe1980/genui/server"
	"github.com/spf13/cobra"
)

var listenFlag string

// serveCmd: genui serve [--listen addr]
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat endpoints over HTTP",
	Long: `Serve exposes the engine over HTTP.

Routes:
  POST   /chat/stream             server-sent UI updates of one turn
  POST   /chat/invoke             settled UI state of one turn
  GET    /chat/ws                 websocket chat with stop support
  GET    /chat/invocations        running invocation ids
  DELETE /chat/invocations/:id    stop an invocation
  GET    /chat/sessions/:id       session history
  DELETE /chat/sessions/:id       forget a session
  GET    /healthz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if listenFlag != "" {
			cfg.Server.Listen = listenFlag
		}

		logger, err := newLogger(cfg.Log, os.Stderr)
		if err != nil {
			return err
		}

		g, err := build(cfg, logger)
		if err != nil {
			return err
		}

		gin.SetMode(gin.ReleaseMode)
		srv := server.New(g.Engine(), func(o *server.Options) {
			o.ShutdownTimeout = cfg.Server.ShutdownTimeout
			o.Logger = logger.WithComponent("server")
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return srv.ListenAndServe(ctx, cfg.Server.Listen)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenFlag, "listen", "l", "", "Listen address (overrides config)")
}
