package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mochi/pkg/config"
	"mochi/pkg/logging"
	"mochi/pkg/metrics"
	"mochi/pkg/store"
)

var version = "0.1.0-dev"

// app carries the state every subcommand shares. It is filled in by the
// root command's PersistentPreRunE.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	jsonOut bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "mochi",
		Short: "Synthetic pet-activity data, activity classifier and prediction service",
		Long: `mochi generates synthetic records of what Mochi the dog is doing,
trains a random forest to predict the activity from the time and day,
and serves the predictions over HTTP.

Typical flow:
  mochi generate --rows 1000
  mochi train
  mochi serve`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "Config file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, trace, warn, error")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(a),
		newGenerateCmd(a),
		newDescribeCmd(a),
		newTrainCmd(a),
		newPredictCmd(a),
		newServeCmd(a),
		newPlotCmd(a),
		newRunsCmd(a),
	)
	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	a.jsonOut, _ = cmd.Flags().GetBool("json")
	a.log = logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	a.metrics = metrics.New()
	a.log.Debug("configuration loaded", "file", path, "image", cfg.Image.String())
	return nil
}

// openStore opens the run store named by the configuration.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, a.cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	return st, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mochi version %s\n", version)
			return nil
		},
	}
}
