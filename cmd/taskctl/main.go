// Package main implements the taskctl operator CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"taskmanager/internal/config"
	"taskmanager/internal/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "taskctl",
	Short:         "Operate the task manager: migrations, demo users and tokens",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.InitWriter(cmd.ErrOrStderr(), os.Getenv("LOG_LEVEL"), false)
	},
}

// loadConfig reads .env and the environment without exiting on error.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.FromEnv()
}
