// Package cli assembles the cabin service and exposes it as cobra commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/familycabin/cabin/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile  string
	LogLevel string
}

// NewRootCommand creates the root command for the cabin CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "cabin",
		Short: "Family cabin reservations",
		Long:  "Books stays at the family cabin, trades them between members, and serves the shared calendar.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(opts.EnvFile); err != nil {
				return fmt.Errorf("load environment file: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before reading CABIN_* variables")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "overrides CABIN_LOG_LEVEL (debug|info|warn|error)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSweepSwapsCommand(opts))
	cmd.AddCommand(NewCreateUserCommand(opts))

	return cmd
}
