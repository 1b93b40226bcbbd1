package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"meirbatch/internal/artifact"
	"meirbatch/internal/browser"
	"meirbatch/internal/config"
	"meirbatch/internal/export"
)

var (
	runVariables string
	runCombine   bool
)

func init() {
	runCmd.Flags().StringVar(&runVariables, "variables", "", "variable list file (overrides variables.file)")
	runCmd.Flags().BoolVar(&runCombine, "combine", false, "combine the output directory after the export sequence")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--variables <file>] [--combine]",
	Short: "Log in, select the device and export every window and variable batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.RequireCredentials(); err != nil {
			return err
		}

		path := cfg.Variables.File
		if runVariables != "" {
			path = runVariables
		}
		vars, err := config.LoadVariables(path)
		if err != nil {
			return fmt.Errorf("loading variables: %w", err)
		}

		journal, err := openJournal()
		if err != nil {
			return err
		}
		defer journal.Close()

		runID := uuid.NewString()
		opts := []export.Option{
			export.WithLogger(logger),
			export.WithJournal(journal),
			export.WithManifest(openManifest()),
			export.WithRunID(runID),
		}

		if cfg.Files.WatchDownloads {
			renamer := artifact.NewRenamer(cfg.Files.DownloadDir, cfg.Files.OutputDir, cfg.Files.DownloadPattern, logger)
			watcher, err := artifact.NewWatcher(cfg.Files.DownloadDir, renamer.Matches, logger)
			if err != nil {
				logger.Warn("download watcher unavailable, using fixed waits", "error", err)
			} else {
				defer watcher.Close()
				opts = append(opts, export.WithRenamer(renamer), export.WithDownloadWaiter(watcher))
			}
		}

		logger.Info("opening browser", "headless", cfg.Browser.Headless, "remote", cfg.Browser.RemoteURL != "")
		session, err := browser.Open(ctx, browser.Config{
			RemoteURL:   cfg.Browser.RemoteURL,
			Bin:         cfg.Browser.Bin,
			Headless:    cfg.Browser.Headless,
			Stealth:     cfg.Browser.Stealth,
			DownloadDir: cfg.Files.DownloadDir,
			Logger:      logger,
		})
		if err != nil {
			return fmt.Errorf("starting browser: %w", err)
		}
		defer func() {
			if err := session.Close(); err != nil {
				logger.Warn("closing browser", "error", err)
			}
		}()

		exp := export.New(cfg, session, vars, opts...)
		if err := exp.Run(ctx); err != nil {
			return err
		}

		if runCombine {
			res, err := exp.Combine(ctx)
			if err != nil {
				return fmt.Errorf("combining: %w", err)
			}
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "combined %d files into %s\n", len(res.Sources), res.Path)
			}
		}
		return nil
	},
}
