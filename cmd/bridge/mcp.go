package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
	"github.com/tessbot/slack-chat-bridge/internal/conf"
	"github.com/tessbot/slack-chat-bridge/internal/data"
	"github.com/tessbot/slack-chat-bridge/internal/logutil"
	"github.com/tessbot/slack-chat-bridge/internal/mcpserver"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve session tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := conf.LoadFromEnv()
			logger, err := logutil.NewLogger(cfg.Log)
			if err != nil {
				return err
			}

			sessions, err := data.NewSessionRepo(cfg.Store.Driver, cfg.Store.DSN)
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer sessions.Close()

			poster := mcpPoster(cfg)
			if poster == nil {
				logger.Info("post_message_disabled", "reason", "no platform credentials")
			}
			return mcpserver.NewServer(sessions, poster, version).Run(cmd.Context())
		},
	}
}

func mcpPoster(cfg *conf.Config) repo.MessagePoster {
	if cfg.ValidatePoster() != nil {
		return nil
	}
	p, err := data.NewPoster(cfg)
	if err != nil {
		return nil
	}
	return p
}
