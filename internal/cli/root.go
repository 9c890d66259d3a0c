// Package cli is the prechart2db command line: one-shot load, overwrite
// and append commands plus the web server and terminal UI.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/PreChart2DB/internal/config"
	"github.com/JonMunkholm/PreChart2DB/internal/core"
	"github.com/JonMunkholm/PreChart2DB/internal/logging"
)

var version = "dev"

// flagKeys maps persistent flags to the configuration keys they override.
var flagKeys = map[string]string{
	"driver":     "DB_DRIVER",
	"host":       "DB_HOST",
	"port":       "DB_PORT",
	"user":       "DB_USER",
	"database":   "DB_NAME",
	"charset":    "DB_CHARSET",
	"data-dir":   "DB_DATA_DIR",
	"log-level":  "LOG_LEVEL",
	"log-format": "LOG_FORMAT",
}

// app carries what the subcommands share once the root has loaded the
// configuration.
type app struct {
	configPath string
	cfg        *config.Config
	service    *core.Service
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errorText(err))
		return 1
	}
	return 0
}

// errorText prefers the user message of known errors.
func errorText(err error) string {
	if core.IsUserFacing(err) {
		return core.FormatUserError(err)
	}
	return err.Error()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "prechart2db",
		Short:         "Load CSV and Excel files into a database",
		Long:          "Reads CSV/Excel files, lets you inspect and edit the data, and writes it to MySQL, PostgreSQL or SQLite.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Config file (default ./prechart2db.yaml)")
	pf.String("driver", "", "Database driver (mysql, postgres, sqlite)")
	pf.String("host", "", "Database host")
	pf.Int("port", 0, "Database port")
	pf.String("user", "", "Database user")
	pf.String("database", "", "Database name")
	pf.String("charset", "", "Connection charset (mysql)")
	pf.String("data-dir", "", "Directory for sqlite database files")
	pf.String("log-level", "", "Log level (debug, info, warn, error)")
	pf.String("log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newLoadCmd(a))
	rootCmd.AddCommand(newWriteCmd(a, core.ModeOverwrite))
	rootCmd.AddCommand(newWriteCmd(a, core.ModeAppend))
	rootCmd.AddCommand(newPingCmd(a))
	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newTUICmd(a))
	rootCmd.AddCommand(newLoginCmd(a))
	rootCmd.AddCommand(newLogoutCmd(a))

	return rootCmd
}

// load resolves the configuration (flag > env > config file > default) and
// builds the service.
func (a *app) load(cmd *cobra.Command) error {
	v, err := config.NewViper(a.configPath)
	if err != nil {
		return err
	}

	// Only changed flags are bound; an unset flag must not shadow the
	// environment with its zero value.
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || !f.Changed || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return fmt.Errorf("bind flags: %w", bindErr)
	}

	cfg, err := config.LoadFrom(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logOut := cmd.ErrOrStderr()
	if cmd.Name() == "tui" {
		// Log lines would corrupt the screen.
		logOut = io.Discard
	}
	logging.SetupWriter(logOut, cfg.Logging.Level, cfg.Logging.Format)

	a.service = core.NewService(cfg)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "prechart2db version %s\n", version)
			return err
		},
	}
}
