package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/launchdash/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	getenv     func(string) string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{getenv: os.Getenv}

	serve := newServeCmd(opts)
	root := &cobra.Command{
		Use:   "launchdash",
		Short: "SpaceX launch records dashboard",
		Long: "launchdash serves an interactive dashboard over a SpaceX launch dataset:\n" +
			"a success pie chart per launch site and a payload vs outcome scatter plot.\n" +
			"Without a subcommand it runs serve.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Args: cobra.NoArgs,
		RunE: serve.RunE,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML config file")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")

	root.AddCommand(serve)
	root.AddCommand(newSitesCmd(opts))
	root.AddCommand(newImportCmd(opts))
	root.AddCommand(newHashPasswordCmd())
	return root
}

// setup loads the configuration and installs the logger. override runs
// after the environment and before defaults.
func (o *rootOptions) setup(cmd *cobra.Command, override func(*Config)) (*Config, *slog.Logger, error) {
	cfg, err := loadConfig(o.configPath, o.getenv, func(c *Config) {
		if o.logLevel != "" {
			c.LogLevel = o.logLevel
		}
		if override != nil {
			override(c)
		}
	})
	if err != nil {
		return nil, nil, err
	}
	lvl, _ := logging.ParseLevel(cfg.LogLevel)
	logger := logging.Init(lvl, cfg.LogFormat, cmd.ErrOrStderr())
	return cfg, logger, nil
}
