package main

import (
	"fmt"

	"taskmanager/internal/service"
	"taskmanager/internal/storage"

	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo users user{i}@mail.com / password{i}",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mode, err := service.ParseCredentialMode(cfg.CredentialMode)
	if err != nil {
		return err
	}

	st, err := storage.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	created, err := service.ProvisionUsers(cmd.Context(), st.Tx, st.Provisioner, mode, service.DemoUsers())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %d of %d users\n", created, service.DemoUserCount)
	return nil
}
