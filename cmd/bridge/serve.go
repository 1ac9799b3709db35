package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tessbot/slack-chat-bridge/internal/infra/feishu"
	"github.com/tessbot/slack-chat-bridge/internal/infra/slack"
	"github.com/tessbot/slack-chat-bridge/internal/server"
	"github.com/tessbot/slack-chat-bridge/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Receive platform events and admit them into sessions and the reply queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			g, gctx := errgroup.WithContext(ctx)
			a.startIngest(gctx, g)
			return g.Wait()
		},
	}
}

// startIngest starts the HTTP server and, for socket and long-connection
// modes, the platform receiver.
func (a *app) startIngest(ctx context.Context, g *errgroup.Group) {
	httpCfg := server.HTTPConfig{
		Addr:     a.cfg.HTTP.Addr,
		Sessions: a.repos.Session,
	}

	switch a.cfg.Platform {
	case "slack":
		ingest := a.ingestService(slack.NewDecoder())
		if a.cfg.Slack.Mode == "socket" {
			socket := server.NewSocketServer(newSlackClient(a.cfg), ingest, a.logger)
			g.Go(func() error { return socket.Run(ctx) })
		} else {
			httpCfg.Slack = ingest
			httpCfg.SlackSigningSecret = a.cfg.Slack.SigningSecret
			if httpCfg.SlackSigningSecret == "" {
				a.logger.Warn("slack_signature_check_disabled")
			}
		}
	case "feishu":
		ingest := a.ingestService(feishu.NewDecoder())
		if a.cfg.Feishu.Mode == "ws" {
			client := newFeishuClient(a.cfg)
			g.Go(func() error { return client.Listen(ctx, ingest.HandleRaw, a.logger) })
		} else {
			httpCfg.Feishu = ingest
		}
	}

	httpServer := server.NewHTTPServer(httpCfg, a.logger)
	g.Go(func() error { return httpServer.Run(ctx) })
}

// startWorker starts the reply worker pool
func (a *app) startWorker(ctx context.Context, g *errgroup.Group) {
	worker := service.NewReplyWorker(a.dispatch, a.cfg.Worker.Concurrency, a.logger)
	g.Go(func() error { return worker.Run(ctx) })
}
