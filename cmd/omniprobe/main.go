package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/paularlott/cli"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/s33g/omni-probe/internal/app"
	"github.com/s33g/omni-probe/internal/config"
)

const envPrefix = "OMNIPROBE"

var version = "dev"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC822})

	cmd := &cli.Command{
		Name:        "omniprobe",
		Version:     version,
		Usage:       "Multimodal cookbook and tool-calling limit probes",
		Description: "Drive a local OpenAI-compatible model server through media tasks, tool-calling probes and a continuous tool-chain orchestrator.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:         "config",
				Aliases:      []string{"c"},
				Usage:        "Path to configuration file.",
				EnvVars:      []string{envPrefix + "_CONFIG"},
				DefaultValue: "config/config.yaml",
				Global:       true,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error), overrides logging.level.",
				EnvVars: []string{envPrefix + "_LOG_LEVEL"},
				Global:  true,
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "Model reference as provider/model, overrides defaults.model.",
				EnvVars: []string{envPrefix + "_MODEL"},
				Global:  true,
			},
		},
		Commands: []*cli.Command{
			pingCmd,
			captionCmd,
			askCmd,
			ocrCmd,
			groundCmd,
			funcallCmd,
			describeVideoCmd,
			probeCmd,
			chainCmd,
			scenariosCmd,
			orchestrateCmd,
			mcpCmd,
			runsCmd,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setupLogging applies the configured level and format to the global logger
func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC822})
	}
}

// loadApp loads the configuration named by --config and builds the application
func loadApp(ctx context.Context, cmd *cli.Command) (*app.App, error) {
	path := cmd.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := cmd.GetString("log-level")
	if level == "" {
		level = cfg.Logging.Level
	}
	setupLogging(level, cfg.Logging.Format)

	logger := log.With().Str("component", "main").Logger()
	logger.Debug().Str("path", path).Msg("Loaded configuration")

	return app.New(ctx, cfg, path, log.Logger)
}
