package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past runs, or the batches and dropped variables of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		journal, err := openJournal()
		if err != nil {
			return err
		}
		defer journal.Close()

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			runs, err := journal.ListRuns(ctx, historyLimit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderRuns(runs))
			return nil
		}

		batches, err := journal.ListBatches(ctx, args[0])
		if err != nil {
			return err
		}
		failures, err := journal.ListEntryFailures(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, renderBatches(batches))
		if len(failures) > 0 {
			fmt.Fprintln(out, "\nVariables not entered:")
			fmt.Fprintln(out, renderEntryFailures(failures))
		}
		return nil
	},
}
