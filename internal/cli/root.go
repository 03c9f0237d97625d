// Package cli wires the scry commands: the Telegram bot, the spreadsheet
// importer and the NATS feed relay.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/scry/internal/config"
	"github.com/example/scry/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	LogFile string
}

// NewRootCommand creates the root command for the scry CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "scry",
		Short:         "scry - spaced repetition review bot",
		Long:          "A Telegram bot that quizzes you on your own questions using spaced repetition.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log to the console instead of the log file")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "log file path (overrides LOG_FILE_PATH)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewRelayCommand(opts))

	return cmd
}

// setup loads the configuration and builds the logger every command shares
func setup(opts *RootOptions) (*config.Config, logger.ILogger) {
	cfg := config.Load()
	if opts.LogFile != "" {
		cfg.App.LogFilePath = opts.LogFile
	}
	if opts.Verbose {
		return cfg, logger.NewConsole()
	}
	return cfg, logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
}

func requireToken(cfg *config.Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	return nil
}
