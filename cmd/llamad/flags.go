package main

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/llamad-dev/llamad/internal/config"
	"github.com/llamad-dev/llamad/internal/logger"
)

var (
	flagModel       string
	flagDevice      string
	flagEnv         string
	flagAddr        string
	flagRoundDigits int64
	flagRuntimeURL  string
	flagRuntimeBin  string
	flagLogLevel    string
	flagLogFormat   string
	flagDebug       bool
)

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to the model checkpoint",
			Destination: &flagModel,
		},
		&cli.StringFlag{
			Name:        "device",
			Usage:       "compute device (auto, cpu, cuda)",
			Destination: &flagDevice,
		},
		&cli.StringFlag{
			Name:        "env",
			Usage:       "deployment environment tag",
			Destination: &flagEnv,
		},
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Destination: &flagAddr,
		},
		&cli.Int64Flag{
			Name:        "round-digits",
			Usage:       "decimal precision for returned scores",
			Destination: &flagRoundDigits,
		},
		&cli.StringFlag{
			Name:        "runtime-url",
			Usage:       "attach to a running llama-server instead of spawning one",
			Destination: &flagRuntimeURL,
		},
		&cli.StringFlag{
			Name:        "runtime-bin",
			Usage:       "llama-server binary to spawn",
			Destination: &flagRuntimeBin,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Destination: &flagLogLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Destination: &flagLogFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &flagDebug,
		},
	}
}

// resolveConfig layers explicitly-set CLI flags over the file/environment
// configuration and validates the result.
func resolveConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if cmd.IsSet("model") {
		cfg.ModelPath = flagModel
	}
	if cmd.IsSet("device") {
		cfg.Device = flagDevice
	}
	if cmd.IsSet("env") {
		cfg.Env = flagEnv
	}
	if cmd.IsSet("addr") {
		cfg.Addr = flagAddr
	}
	if cmd.IsSet("round-digits") {
		cfg.RoundDigits = int(flagRoundDigits)
	}
	if cmd.IsSet("runtime-url") {
		cfg.RuntimeURL = flagRuntimeURL
	}
	if cmd.IsSet("runtime-bin") {
		cfg.RuntimeBin = flagRuntimeBin
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if cmd.IsSet("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flagDebug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.Config) logger.Logger {
	level := logger.ParseLevel(cfg.LogLevel)
	switch cfg.LogFormat {
	case "json":
		return logger.JSON(os.Stderr, level)
	case "text":
		return logger.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	default:
		return logger.Pretty(os.Stderr, level)
	}
}
