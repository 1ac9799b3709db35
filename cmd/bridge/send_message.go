package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tessbot/slack-chat-bridge/internal/conf"
	"github.com/tessbot/slack-chat-bridge/internal/data"
)

func newSendMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send-message <channel_id> <message...>",
		Short: "Post a message to a channel as the bot",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := conf.LoadFromEnv()
			if err := cfg.ValidatePoster(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			poster, err := data.NewPoster(cfg)
			if err != nil {
				return err
			}
			if err := poster.PostMessage(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Message sent successfully!")
			return nil
		},
	}
}
