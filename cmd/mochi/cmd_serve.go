package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mochi/pkg/imagegen"
	"mochi/pkg/pipeline"
	"mochi/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Serve loads the trained model and answers GET and POST /predict with the
predicted activity, a description and an image URL. Images come from the
text-to-image provider when image generation is enabled, otherwise from
the placeholders in the static directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := a.cfg.Server
			if cmd.Flags().Changed("addr") {
				sc.Addr, _ = cmd.Flags().GetString("addr")
			}
			modelPath := a.cfg.Training.ModelPath
			if cmd.Flags().Changed("model") {
				modelPath, _ = cmd.Flags().GetString("model")
			}

			p, err := pipeline.Load(modelPath)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}
			a.log.Info("model loaded", "path", modelPath, "classes", len(p.Classes()))

			ic := a.cfg.Image
			images := imagegen.New(imagegen.Options{
				Enabled:      ic.Enabled,
				URL:          ic.URL,
				APIKey:       ic.APIKey,
				StylePreset:  ic.StylePreset,
				Width:        ic.Width,
				Height:       ic.Height,
				Steps:        ic.Steps,
				CfgScale:     ic.CfgScale,
				Timeout:      ic.Timeout,
				StaticDir:    sc.StaticDir,
				Placeholders: ic.Placeholders,
			}, a.log, a.metrics)
			if !ic.Enabled {
				a.log.Info("image generation disabled, serving placeholders")
			}

			h := &server.Handlers{
				Log:       a.log,
				Predictor: p,
				Images:    images,
				Metrics:   a.metrics,
				Classes:   p.Classes(),
			}
			srv := server.NewServer(server.Options{
				Addr:            sc.Addr,
				StaticDir:       sc.StaticDir,
				AllowedOrigins:  sc.AllowedOrigins,
				ReadTimeout:     sc.ReadTimeout,
				WriteTimeout:    sc.WriteTimeout,
				IdleTimeout:     sc.IdleTimeout,
				ShutdownTimeout: sc.ShutdownTimeout,
			}, h, a.metrics)
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default from config)")
	cmd.Flags().String("model", "", "Trained model (default from config)")
	return cmd
}
