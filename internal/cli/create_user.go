package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/familycabin/cabin/internal/application"
)

// NewCreateUserCommand creates the create-user command. It bootstraps
// accounts, including the first administrator, without going through the API.
func NewCreateUserCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dbPath string
		input  application.UserInput
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a member account",
		Long: `Create a member account directly in the database.

The password is read from the first line of standard input so it does not
appear in shell history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			input.Password = password

			storage, logger, err := openStorage(cmd.Context(), rootOpts, dbPath)
			if err != nil {
				return err
			}
			defer storage.Close()
			if err := storage.Migrate(cmd.Context()); err != nil {
				return err
			}

			users := application.NewUserServiceWithLogger(newUserRepositoryAdapter(storage.Users), application.HashPassword, newID, time.Now, logger)
			user, err := users.CreateUser(cmd.Context(), application.CreateUserParams{
				Principal: application.Principal{UserID: "cli", IsAdmin: true},
				Input:     input,
			})
			if err != nil {
				return describeValidation(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.ID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database file (defaults to CABIN_DB_PATH or cabin.db)")
	cmd.Flags().StringVar(&input.Email, "email", "", "login email")
	cmd.Flags().StringVar(&input.DisplayName, "name", "", "display name shown on the calendar")
	cmd.Flags().BoolVar(&input.IsAdmin, "admin", false, "grant administrator rights")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describeValidation spells out field errors for the terminal.
func describeValidation(err error) error {
	var vErr *application.ValidationError
	if !errors.As(err, &vErr) {
		return err
	}
	fields := make([]string, 0, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		fields = append(fields, field+": "+msg)
	}
	sort.Strings(fields)
	return fmt.Errorf("invalid user: %s", strings.Join(fields, "; "))
}
