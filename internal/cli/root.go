// Package cli defines the snippethub command line: serve, migrate and
// search.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/snippethub/internal/config"
)

// app is the state shared by every subcommand. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
	stdout     io.Writer
}

// NewRootCommand builds the command tree. Output goes to stdout; logs go to
// stderr so that `search` output stays pipeable.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: config.New(), stdout: stdout}

	root := &cobra.Command{
		Use:   "snippethub",
		Short: "Share, search and vote on code snippets",
		Long: `snippethub is a code snippet sharing service: snippets with tags,
up/down votes, comments, ranked search and sandboxed runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.Level()}))
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: ./config.yaml if present)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().String("database-driver", "", "database driver: sqlite or postgres")
	root.PersistentFlags().String("database-dsn", "", "database DSN or SQLite file path")
	bindFlag(a.v, config.KeyLogLevel, root.PersistentFlags().Lookup("log-level"))
	bindFlag(a.v, config.KeyDBDriver, root.PersistentFlags().Lookup("database-driver"))
	bindFlag(a.v, config.KeyDBDSN, root.PersistentFlags().Lookup("database-dsn"))

	root.AddCommand(a.serveCommand())
	root.AddCommand(a.migrateCommand())
	root.AddCommand(a.searchCommand())

	return root
}

// Execute runs the CLI against the process's stdio.
func Execute() int {
	if err := NewRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
