package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mochi/pkg/data"
	"mochi/pkg/synth"
)

// addDatasetFlags registers the flags that pick a dataset: a CSV path or a
// stored run.
func addDatasetFlags(cmd *cobra.Command) {
	cmd.Flags().String("dataset", "", "Dataset CSV (default from config)")
	cmd.Flags().String("run", "", "Use a stored run instead of a CSV file")
}

// loadDataset reads the dataset selected by --run, a positional argument,
// --dataset, or the configured default, in that order.
func (a *app) loadDataset(ctx context.Context, cmd *cobra.Command, args []string) ([]synth.Record, string, error) {
	if runID, _ := cmd.Flags().GetString("run"); runID != "" {
		st, err := a.openStore(ctx)
		if err != nil {
			return nil, "", err
		}
		defer st.Close()
		_, records, err := st.LoadRun(ctx, runID)
		if err != nil {
			return nil, "", fmt.Errorf("load run %s: %w", runID, err)
		}
		return records, "run " + runID, nil
	}

	path := a.datasetPath(cmd, args)
	records, err := data.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read dataset: %w", err)
	}
	return records, path, nil
}

func (a *app) datasetPath(cmd *cobra.Command, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	if p, _ := cmd.Flags().GetString("dataset"); p != "" {
		return p
	}
	return a.cfg.Training.DatasetPath
}

// streamDataset reads a CSV row by row, logging and skipping malformed rows
// instead of failing on them.
func (a *app) streamDataset(ctx context.Context, path string) ([]synth.Record, error) {
	ch := make(chan synth.Record, 256)
	done, err := data.StreamCSV(path, a.log, ch)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var records []synth.Record
	for {
		select {
		case <-ctx.Done():
			close(done)
			return nil, ctx.Err()
		case r, ok := <-ch:
			if !ok {
				return records, nil
			}
			records = append(records, r)
		}
	}
}
