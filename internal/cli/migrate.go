package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/familycabin/cabin/internal/logging"
	"github.com/familycabin/cabin/internal/persistence/sqlite"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath     string
		statusOnly bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, logger, err := openStorage(cmd.Context(), rootOpts, dbPath)
			if err != nil {
				return err
			}
			defer storage.Close()

			if !statusOnly {
				if err := storage.Migrate(cmd.Context()); err != nil {
					return err
				}
			}

			status, err := storage.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			logger.Debug("migration status", "applied", len(status.Applied), "pending", len(status.Pending))
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "schema version: %s\n", valueOrNone(status.CurrentVersion))
			for _, m := range status.Pending {
				fmt.Fprintf(out, "pending: %s %s\n", m.Version, m.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database file (defaults to CABIN_DB_PATH or cabin.db)")
	cmd.Flags().BoolVar(&statusOnly, "status", false, "report the schema version without migrating")
	return cmd
}

// openStorage opens the database for maintenance commands, which need only
// the database path and not the full service configuration.
func openStorage(ctx context.Context, opts *RootOptions, dbPath string) (*sqlite.Storage, *slog.Logger, error) {
	level := os.Getenv("CABIN_LOG_LEVEL")
	if opts != nil && opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, _, err := logging.New(logging.Options{Level: level, Stdout: os.Stderr})
	if err != nil {
		return nil, nil, err
	}

	if dbPath == "" {
		dbPath = strings.TrimSpace(os.Getenv("CABIN_DB_PATH"))
	}
	if dbPath == "" {
		dbPath = "cabin.db"
	}

	storage, err := sqlite.Open(ctx, sqlite.DefaultConfig(dbPath), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return storage, logger, nil
}

func valueOrNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
