package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:          "bridge",
		Short:        "Chat bot bridge: admits channel messages and replies with an LLM",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file
			if err := godotenv.Load(envFile); err != nil {
				slog.Debug("env_file_not_loaded", "path", envFile, "error", err)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Env file loaded before reading configuration")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newWorkerCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newSendMessageCmd())
	cmd.AddCommand(newMCPCmd())
	return cmd
}
