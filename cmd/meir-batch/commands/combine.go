package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"meirbatch/internal/artifact"
	"meirbatch/internal/export"
)

var (
	combineDir          string
	combineDropRepeated bool
)

func init() {
	combineCmd.Flags().StringVar(&combineDir, "dir", "", "directory holding the renamed exports (default files.output_dir)")
	combineCmd.Flags().BoolVar(&combineDropRepeated, "drop-repeated-columns", false, "leave out columns whose header already appeared")
	rootCmd.AddCommand(combineCmd)
}

var combineCmd = &cobra.Command{
	Use:   "combine [--dir <output dir>]",
	Short: "Merge the renamed exports column-wise into one AllVars file and delete the sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.Files.OutputDir
		if combineDir != "" {
			dir = combineDir
		}
		drop := cfg.Files.DropRepeatedColumns || combineDropRepeated

		exp := export.New(cfg, nil, nil,
			export.WithLogger(logger),
			export.WithCombiner(artifact.NewCombiner(dir, cfg.Files.CombinedFormat, drop, logger)),
			export.WithManifest(openManifest()),
		)
		res, err := exp.Combine(cmd.Context())
		if err != nil {
			return err
		}
		if res == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to combine")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "combined %d files into %s (%d columns, %d rows)\n",
			len(res.Sources), res.Path, res.Columns, res.Rows)
		return nil
	},
}
