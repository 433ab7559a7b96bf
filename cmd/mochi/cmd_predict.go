package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mochi/pkg/imagegen"
	"mochi/pkg/pipeline"
)

type predictResult struct {
	Time        float64 `json:"time"`
	Day         string  `json:"day"`
	Activity    string  `json:"activity"`
	Description string  `json:"description"`
	Prompt      string  `json:"prompt"`
}

func newPredictCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict what Mochi is doing at a given time",
		Example: `  mochi predict --time 08:30 --day mon
  mochi predict --time 22.5 --day Saturday --location "Living room"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rawTime, _ := cmd.Flags().GetString("time")
			rawDay, _ := cmd.Flags().GetString("day")
			modelPath := a.cfg.Training.ModelPath
			if cmd.Flags().Changed("model") {
				modelPath, _ = cmd.Flags().GetString("model")
			}

			var (
				hours float64
				err   error
			)
			if strings.Contains(rawTime, ":") {
				hours, err = pipeline.ParseClock(rawTime)
			} else {
				hours, err = pipeline.ParseHours(rawTime)
			}
			if err != nil {
				return err
			}
			day, err := pipeline.ParseDay(rawDay)
			if err != nil {
				return err
			}

			q := pipeline.NewQuery(hours, day)
			q.Duration, _ = cmd.Flags().GetInt("duration")
			q.PeopleHome, _ = cmd.Flags().GetInt("people-home")
			q.Location, _ = cmd.Flags().GetString("location")
			q.Weather, _ = cmd.Flags().GetString("weather")
			q.Mood, _ = cmd.Flags().GetString("mood")

			p, err := pipeline.Load(modelPath)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}
			activity, err := p.PredictQuery(q)
			if err != nil {
				return err
			}
			a.metrics.Prediction(activity)
			details := imagegen.Describe(activity)

			res := predictResult{Time: hours, Day: day, Activity: activity, Description: details.Description, Prompt: details.Prompt}
			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n%s\n", day, rawTime, activity, details.Description)
			return nil
		},
	}
	cmd.Flags().String("time", "8.5", "Time of day as HH:MM or decimal hours")
	cmd.Flags().String("day", "mon", "Day of week (mon..sun or full name)")
	cmd.Flags().String("model", "", "Trained model (default from config)")
	cmd.Flags().Int("duration", pipeline.DefaultDuration, "Duration in minutes")
	cmd.Flags().Int("people-home", 0, "People at home")
	cmd.Flags().String("location", "", "Location, if known")
	cmd.Flags().String("weather", "", "Weather, if known")
	cmd.Flags().String("mood", "", "Mood, if known")
	return cmd
}
