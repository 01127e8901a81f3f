package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/AaronLay10/SignalGrid/internal/version"
)

func main() {
	cmd := &cli.Command{
		Name:    "gridd",
		Usage:   "Run a signal grid with its HTTP API and MQTT bridge",
		Version: version.Version,
		Action:  run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to grid.yaml",
				Value:   "grid.yaml",
				Sources: cli.EnvVars("SIGNALGRID_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "addr-override",
				Usage:   "Listen address, overrides network.http_port",
				Sources: cli.EnvVars("SIGNALGRID_ADDR"),
			},
			&cli.BoolFlag{
				Name:    "no-watch",
				Usage:   "Do not reload the policy section on file change",
				Sources: cli.EnvVars("SIGNALGRID_NO_WATCH"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("gridd failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
