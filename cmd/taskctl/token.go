package main

import (
	"fmt"

	"taskmanager/internal/service"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <email>",
	Short: "Issue a bearer token for an email",
	Long:  "Issues a token signed with JWT_SECRET. The email is not checked against the user store.",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	codec, err := service.NewTokenCodec([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}
	token, err := codec.Issue(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
