package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/PreChart2DB/internal/config"
)

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store the database password in the OS keyring",
		Long: "Reads the password for DB_USER from standard input and stores it in the OS keyring.\n" +
			"DB_PASSWORD, when set, still takes precedence.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			user := a.cfg.Database.User
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Password for %s: ", user)

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")
			if password == "" {
				return fmt.Errorf("empty password")
			}

			if err := config.StorePassword(user, password); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "\nPassword for %s stored.\n", user)
			return err
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored database password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.DeletePassword(a.cfg.Database.User); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Password for %s removed.\n", a.cfg.Database.User)
			return err
		},
	}
}
