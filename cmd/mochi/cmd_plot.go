package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"mochi/pkg/data"
	"mochi/pkg/report"
)

func newPlotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [dataset.csv]",
		Short: "Chart a dataset",
		Long: `Plot writes activities.png (records per activity) and hours.png (time of
day histogram) into the output directory. With --activity the histogram
is restricted to that activity.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out")
			activity, _ := cmd.Flags().GetString("activity")

			records, source, err := a.loadDataset(cmd.Context(), cmd, args)
			if err != nil {
				return err
			}
			sum := data.Summarize(records)

			written := []string{filepath.Join(outDir, "activities.png"), filepath.Join(outDir, "hours.png")}
			if err := report.ActivityCounts(sum.Activities, written[0]); err != nil {
				return err
			}
			if err := report.HourHistogram(records, activity, written[1]); err != nil {
				return fmt.Errorf("hour histogram: %w", err)
			}
			a.log.Info("charts written", "source", source, "dir", outDir)

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string][]string{"files": written})
			}
			for _, f := range written {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
	addDatasetFlags(cmd)
	cmd.Flags().String("out", "charts", "Output directory")
	cmd.Flags().String("activity", "", "Restrict the time histogram to one activity")
	return cmd
}
