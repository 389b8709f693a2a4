// Package cli implements the formula command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/git-pkgs/formula/fetch"
	"github.com/git-pkgs/formula/install"
	"github.com/git-pkgs/formula/internal/config"
	"github.com/git-pkgs/formula/internal/core"
	"github.com/git-pkgs/formula/internal/logging"
)

// Version is set with -ldflags at build time.
var Version = "dev"

// app holds the state shared by every subcommand.
type app struct {
	cfgFile string
	prefix  string
	verbose bool

	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "formula",
		Short:         "Install pre-built artifacts behind interpreter launchers",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/formula/config.toml)")
	root.PersistentFlags().StringVar(&a.prefix, "prefix", "", "install prefix (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.installCommand(),
		a.fetchCommand(),
		a.testCommand(),
		a.infoCommand(),
		a.uninstallCommand(),
		a.listCommand(),
	)
	return root
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
	}
	return ExitCode(err)
}

func (a *app) setup() error {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: a.cfgFile})
	if err != nil {
		return err
	}
	if a.prefix != "" {
		cfg.Prefix = a.prefix
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.LogLevel, a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func (a *app) pipeline() *install.Pipeline {
	fetcher := fetch.NewFetcher(
		fetch.WithTimeout(a.cfg.Timeout),
		fetch.WithMaxRetries(a.cfg.MaxRetries),
		fetch.WithLogger(a.logger),
		fetch.WithAuthFunc(fetch.GitHubTokenAuth(a.cfg.GitHubToken)),
	)

	opts := []install.Option{
		install.WithLogger(a.logger),
		install.WithFetcher(fetch.NewCircuitBreakerFetcher(fetcher)),
		install.WithLocatorConfig(a.locatorConfig()),
	}
	if a.cfg.Progress {
		opts = append(opts, install.WithProgress(a.stderr))
	}
	return install.New(a.cfg.Layout(), opts...)
}

func (a *app) locatorConfig() core.LocatorConfig {
	cfg := a.cfg.LocatorConfig()
	cfg.Client = core.NewClient(core.WithTimeout(30*time.Second), core.WithMaxRetries(a.cfg.MaxRetries))
	cfg.Logger = a.logger
	return cfg
}
