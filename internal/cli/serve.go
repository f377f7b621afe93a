package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sakif/snippethub/internal/config"
	"github.com/sakif/snippethub/internal/executor"
	"github.com/sakif/snippethub/internal/executor/docker"
	"github.com/sakif/snippethub/internal/server"
)

func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if f == nil {
		panic("cli: binding unknown flag for " + key)
	}
	_ = v.BindPFlag(key, f)
}

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP API. Pending migrations are applied on start.
Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			exec := a.startExecutor()
			if closer, ok := exec.(*docker.Executor); ok {
				defer closer.Close()
			}

			srv, err := server.New(cmd.Context(), a.cfg, a.logger, exec)
			if err != nil {
				return err
			}
			return srv.Start(cmd.Context())
		},
	}

	cmd.Flags().Int("port", 0, "port to listen on (default 8080)")
	cmd.Flags().Bool("executor", true, "run snippets in Docker sandboxes")
	cmd.Flags().Int("page-size", 0, "search results per page (default 4)")
	bindFlag(a.v, config.KeyPort, cmd.Flags().Lookup("port"))
	bindFlag(a.v, config.KeyExecutorEnabled, cmd.Flags().Lookup("executor"))
	bindFlag(a.v, config.KeyPageSize, cmd.Flags().Lookup("page-size"))

	return cmd
}

// startExecutor brings up the Docker sandboxes. Docker is optional: when it
// is disabled or unreachable the server starts anyway and runs answer 503.
// The result is a nil interface in that case, never a nil *docker.Executor.
func (a *app) startExecutor() executor.Executor {
	if !a.cfg.Executor.Enabled {
		a.logger.Info("code execution disabled by configuration")
		return nil
	}

	dcfg := docker.DefaultConfig()
	if a.cfg.Executor.Timeout > 0 {
		dcfg.Timeout = a.cfg.Executor.Timeout
	}
	if a.cfg.Executor.PoolSize > 0 {
		dcfg.PoolSize = a.cfg.Executor.PoolSize
	}

	exec, err := docker.New(dcfg, a.logger)
	if err != nil {
		a.logger.Warn("Docker executor unavailable, running snippets is disabled",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return exec
}
