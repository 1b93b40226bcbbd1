package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"meirbatch/internal/domain"
)

var manifestRun string

func init() {
	manifestCmd.Flags().StringVar(&manifestRun, "run", "", "only show artifacts of this run")
	rootCmd.AddCommand(manifestCmd)
}

var manifestCmd = &cobra.Command{
	Use:   "manifest [--run <run-id>]",
	Short: "List every artifact recorded in the manifest",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := openManifest().Read(cmd.Context())
		if err != nil {
			return err
		}
		if manifestRun != "" {
			records = filterRun(records, manifestRun)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderManifest(records))
		return nil
	},
}

func filterRun(records []domain.ArtifactRecord, runID string) []domain.ArtifactRecord {
	var out []domain.ArtifactRecord
	for _, r := range records {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out
}
