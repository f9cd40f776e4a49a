package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/llamad-dev/llamad/internal/api"
	"github.com/llamad-dev/llamad/internal/diag"
	"github.com/llamad-dev/llamad/internal/inference"
	"github.com/llamad-dev/llamad/internal/logger"
)

func serveCmd() *cli.Command {
	var readTimeout time.Duration

	return &cli.Command{
		Name:  "serve",
		Usage: "Load the model and serve the inference API",
		Flags: append(append(serveFlags(), loggingFlags()...),
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			log := newLogger(cfg)
			ctx = logger.WithContext(ctx, log)

			device := cfg.ResolveDevice(diag.CUDAAvailable())
			cfg.Device = device
			log.Info("running environment", "env", cfg.Env)
			log.Info("compute device", "device", device)

			// Phase one: the model pair is fully loaded before the
			// listener ever opens. Any load failure aborts startup.
			loader := inference.Loader{
				RuntimeURL: cfg.RuntimeURL,
				RuntimeBin: cfg.RuntimeBin,
				Device:     device,
				Log:        log,
			}
			pipe, err := loader.Load(ctx, cfg.ModelPath)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}
			defer pipe.Close()

			// Phase two: serve.
			server := api.NewServer(cfg, log)
			server.SetEngine(pipe)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			e.Use(middleware.CORS())
			server.Register(e)

			log.Info("starting server", "address", cfg.Addr)
			sc := echo.StartConfig{
				Address: cfg.Addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
