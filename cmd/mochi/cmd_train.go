package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"mochi/pkg/pipeline"
	"mochi/pkg/report"
)

func newTrainCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train [dataset.csv]",
		Short: "Train the activity classifier",
		Long: `Train splits the dataset, fits the feature encoders and a random forest
(optionally through a cross-validated grid search), prints a classification
report on the held-out split and saves the trained pipeline.

Examples:
  mochi train
  mochi train --run 6f1c... --no-search
  mochi train data.csv --model model.gob --plot-dir charts
  mochi train --prune 0.2`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := a.cfg.Training
			if cmd.Flags().Changed("model") {
				tc.ModelPath, _ = cmd.Flags().GetString("model")
			}
			if cmd.Flags().Changed("search") {
				tc.Search, _ = cmd.Flags().GetBool("search")
			}
			if noSearch, _ := cmd.Flags().GetBool("no-search"); noSearch {
				tc.Search = false
			}
			pruneRatio, _ := cmd.Flags().GetFloat64("prune")
			if pruneRatio < 0 || pruneRatio >= 1 {
				return fmt.Errorf("--prune %v outside [0,1)", pruneRatio)
			}
			plotDir, _ := cmd.Flags().GetString("plot-dir")
			showConfusion, _ := cmd.Flags().GetBool("confusion")

			records, source, err := a.loadDataset(cmd.Context(), cmd, args)
			if err != nil {
				return err
			}
			a.log.Info("training", "source", source, "rows", len(records), "search", tc.Search)

			start := time.Now()
			p, res, err := pipeline.Train(cmd.Context(), records, pipeline.TrainOptions{
				TestRatio:   tc.TestRatio,
				Seed:        tc.Seed,
				Search:      tc.Search,
				Grid:        tc.Grid,
				Folds:       tc.Folds,
				Jobs:        tc.Jobs,
				ClassWeight: tc.ClassWeight,
				Forest:      tc.Forest.Params(),
				PruneRatio:  pruneRatio,
				Logger:      a.log,
			})
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}
			if err := p.Save(tc.ModelPath); err != nil {
				return fmt.Errorf("save model: %w", err)
			}
			a.log.Info("model saved", "path", tc.ModelPath, "elapsed", time.Since(start))

			if plotDir != "" && res.Search != nil {
				path := filepath.Join(plotDir, "grid_search.png")
				if err := report.SearchScores(res.Search.Results, 20, path); err != nil {
					return err
				}
				a.log.Info("chart written", "path", path)
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Trained on %d rows, tested on %d\n", res.TrainRows, res.TestRows)
			if res.ValidationRows > 0 {
				fmt.Fprintf(out, "Pruned %d nodes against %d held-back rows\n", res.PrunedNodes, res.ValidationRows)
			}
			if res.Search != nil {
				fmt.Fprintf(out, "Best parameters: %s (CV weighted F1 %.4f)\n", res.Search.Best, res.Search.BestScore)
			} else {
				fmt.Fprintf(out, "Parameters: %s\n", res.Params)
			}
			fmt.Fprintln(out)
			if _, err := res.Report.WriteTo(out); err != nil {
				return err
			}
			fmt.Fprintf(out, "log loss: %.4f\n", res.LogLoss)
			if showConfusion {
				fmt.Fprintln(out)
				if _, err := res.Confusion.WriteTo(out, p.Labels.Name); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "\nModel saved to %s\n", tc.ModelPath)
			return nil
		},
	}
	addDatasetFlags(cmd)
	cmd.Flags().String("model", "", "Where to save the trained model (default from config)")
	cmd.Flags().Bool("search", false, "Run the cross-validated grid search")
	cmd.Flags().Bool("no-search", false, "Train a single forest with the configured parameters")
	cmd.Flags().Float64("prune", 0, "Hold back this share of the training rows and prune every tree against it (0 disables)")
	cmd.Flags().String("plot-dir", "", "Write a grid-search score chart into this directory")
	cmd.Flags().Bool("confusion", false, "Print the confusion matrix of the held-out split")
	return cmd
}
