package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mochi/pkg/data"
	"mochi/pkg/synth"
)

var numericColumns = []string{"Time", "Duration_minutes", "People_home"}

func newDescribeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe [dataset.csv]",
		Short: "Summarize a dataset",
		Long: `Describe prints activity counts and numeric column statistics. CSV rows
that cannot be parsed are logged and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				records []synth.Record
				source  string
				err     error
			)
			if runID, _ := cmd.Flags().GetString("run"); runID != "" {
				records, source, err = a.loadDataset(cmd.Context(), cmd, args)
			} else {
				source = a.datasetPath(cmd, args)
				records, err = a.streamDataset(cmd.Context(), source)
			}
			if err != nil {
				return err
			}
			sum := data.Summarize(records)
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), sum)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d records\n\n", source, sum.Rows)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTIVITY\tCOUNT\tSHARE")
			for _, c := range sum.Activities {
				fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", c.Activity, c.Count, 100*c.Share)
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "COLUMN\tMEAN\tSTD\tMIN\tMEDIAN\tP90\tMAX")
			for _, col := range numericColumns {
				s := sum.Numeric[col]
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.1f\t%.1f\t%.1f\t%.1f\n", col, s.Mean, s.Std, s.Min, s.Median, s.P90, s.Max)
			}
			return tw.Flush()
		},
	}
	addDatasetFlags(cmd)
	return cmd
}
