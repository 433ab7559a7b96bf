package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mochi/pkg/data"
)

func newRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored dataset runs",
		Long: `Every generate call stores its records as a run in the SQLite run store.

Examples:
  mochi runs list
  mochi runs show <id>
  mochi runs export <id> out.csv
  mochi runs delete <id>`,
	}
	cmd.AddCommand(
		newRunsListCmd(a),
		newRunsShowCmd(a),
		newRunsExportCmd(a),
		newRunsDeleteCmd(a),
	)
	return cmd
}

func newRunsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			runs, err := st.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs stored.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tROWS\tSEED\tWORKERS\tRULES")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Rows, r.Seed, r.Workers, r.RulesPath)
			}
			return tw.Flush()
		},
	}
}

func newRunsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a run and its activity counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			run, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			counts, err := st.ActivityCounts(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			activities := data.RankActivities(counts)
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"run": run, "activities": activities})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s\n  created: %s\n  rows:    %d\n  seed:    %d\n  workers: %d\n  rules:   %s\n\n",
				run.ID, run.CreatedAt.Local().Format(time.DateTime), run.Rows, run.Seed, run.Workers, run.RulesPath)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, c := range activities {
				fmt.Fprintf(tw, "  %s\t%d\n", c.Activity, c.Count)
			}
			return tw.Flush()
		},
	}
}

func newRunsExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id> <file.csv>",
		Short: "Write a run's records as CSV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			_, records, err := st.LoadRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := data.WriteFile(args[1], records); err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"run_id": args[0], "rows": len(records), "output": args[1]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(records), args[1])
			return nil
		},
	}
}

func newRunsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a run and its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.DeleteRun(cmd.Context(), args[0]); err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}
