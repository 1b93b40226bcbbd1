package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"meirbatch/internal/config"
	"meirbatch/internal/util"
)

const defaultConfigPath = "config/meir.yaml"

var (
	configPath string
	logLevel   string

	cfg      *config.Config
	logger   *slog.Logger
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "meir-batch",
	Short:         "meir-batch exports MEIR dashboard data in date windows and variable batches.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return setup()
	},
}

func init() {
	path := defaultConfigPath
	if p := os.Getenv("MEIR_CONFIG"); p != "" {
		path = p
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", path, "path to the YAML config (env MEIR_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
}

// setup loads the configuration and installs the process logger.
func setup() error {
	c, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", configPath, err)
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}

	l, closeFn, err := util.NewLogger(c.Logging.Level, c.Logging.Format, c.Logging.File)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	util.SetDefault(l)

	cfg, logger, closeLog = c, l, closeFn
	return nil
}

// ExecuteContext runs the command named on the command line. Errors are
// logged (or printed to stderr before the logger exists) and returned.
func ExecuteContext(ctx context.Context) error {
	defer func() { _ = closeLog() }()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("command failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}
