// Command locosim runs the diesel locomotive simulator.
//
// Subcommands:
//  1. "serve" – HTTP server exposing the REST API, WebSocket updates and an /mcp endpoint
//  2. "mcp" – MCP stdio server; spins up an internal HTTP API if none is running
//  3. "validate" – checks locomotive configuration files
//  4. "simulate" – drives one configuration headlessly and prints a table
//
// Settings come from an optional settings file, LOCOSIM_* environment
// variables and a .env file, in that order of increasing precedence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/locosim/settings"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Diesel Locomotive Simulator"
)

func main() {
	// .env is optional
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if envErr != nil && !os.IsNotExist(envErr) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", envErr)
	}

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "locosim",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "settings",
				Usage:   "settings file (yaml, json or toml)",
				Sources: cli.EnvVars("LOCOSIM_SETTINGS"),
			},
			&cli.StringFlag{
				Name:  "config-dir",
				Usage: "directory containing locomotive configurations",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			mcpCommand(),
			validateCommand(),
			simulateCommand(),
		},
	}
}

// loadSettings reads the settings and applies the global flag overrides
func loadSettings(cmd *cli.Command) (*settings.Settings, zerolog.Logger, error) {
	s, err := settings.Load(cmd.String("settings"))
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if cmd.IsSet("config-dir") {
		s.ConfigDir = cmd.String("config-dir")
	}
	if cmd.Bool("debug") {
		s.LogLevel = zerolog.DebugLevel.String()
	}
	return s, s.Logger(os.Stderr), nil
}
