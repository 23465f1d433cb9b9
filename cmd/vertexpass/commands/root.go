package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/corvidlabs/vertexpass/internal/app"
	"github.com/corvidlabs/vertexpass/internal/observability"
)

// Execute runs the root command with the given context and arguments.
func Execute(ctx context.Context, args []string) error {
	cmd := &cli.Command{
		Name:  "vertexpass",
		Usage: "OpenAI-compatible proxy for Anthropic Claude on Vertex AI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug|info|warn|error)",
				Value: slog.LevelInfo.String(),
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
		},
	}

	return cmd.Run(ctx, args)
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log format (text|json)",
				Value: string(app.DefaultConfigLogFormat),
			},
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "server port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.StringFlag{
				Name:  "upstream--url",
				Usage: "Vertex resource URL for the upstream model",
			},
			&cli.StringFlag{
				Name:  "upstream--model",
				Usage: "upstream model identifier",
			},
			&cli.StringFlag{
				Name:  "upstream--openai-model-name",
				Usage: "model name echoed to OpenAI clients (defaults to upstream model)",
			},
			&cli.StringFlag{
				Name:  "credentials--source",
				Usage: "credential source (file|inline|env|keyring)",
				Value: string(app.DefaultConfigCredentialSource),
			},
			&cli.StringFlag{
				Name:  "credentials--file",
				Usage: "path to the service account key file",
			},
			&cli.StringFlag{
				Name:  "transmission--mode",
				Usage: "transmission mode (auto|non-streaming|standard|buffered|classic)",
				Value: string(app.DefaultConfigTransmissionMode),
			},
			&cli.BoolFlag{
				Name:  "retry--enabled",
				Usage: "retry transient upstream failures",
				Value: true,
			},
			&cli.IntFlag{
				Name:  "retry--max-attempts",
				Usage: "upstream attempt budget including the first try",
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Set up observability before creating app
	err = observability.Instrument(cfg.LogLevel, string(cfg.LogFormat))
	if err != nil {
		return fmt.Errorf("failed to set up observability layer: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	slog.InfoContext(ctx, "starting")

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("app failed to start: %w", err)
	}

	slog.InfoContext(ctx, "stopped gracefully")
	return nil
}
