package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/forPelevin/podclips/internal/config"
	"github.com/forPelevin/podclips/internal/logging"
)

// app carries the loaded configuration to subcommands.
type app struct {
	cfg    config.Config
	logger zerolog.Logger

	configPath string
	logLevel   string
	logFormat  string
}

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "podclips",
		Short:        "Cut short vertical clips from long videos",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (default ./podclips.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (console, json)")

	root.AddCommand(
		newRunCmd(a),
		newSelectCmd(a),
		newServeCmd(a),
		newStatusCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, path, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}
	a.cfg = cfg
	a.logger = logging.Init(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if path != "" {
		a.logger.Debug().Str("path", path).Msg("config loaded")
	}
	return nil
}
