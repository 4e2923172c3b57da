package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/locosim/loco/config"
	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/traction"
	"github.com/wricardo/mcp-training/locosim/simulate"
	"github.com/wricardo/mcp-training/locosim/transport/mcp"
	"github.com/wricardo/mcp-training/locosim/validate"
)

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "run an MCP stdio server, reusing a running API or starting an internal one",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api-url", Usage: "API base URL to probe (default from settings host and port)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, log, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			externalURL := "http://" + s.Addr()
			if cmd.IsSet("api-url") {
				externalURL = cmd.String("api-url")
			}

			baseURL := externalURL
			if apiAvailable(ctx, externalURL) {
				log.Info().Str("url", externalURL).Msg("External API server found, using it for MCP")
			} else {
				log.Info().Msg("No external API server found, starting internal HTTP server")
				svc, err := initializeServices(s, log)
				if err != nil {
					return fmt.Errorf("failed to initialize services: %w", err)
				}
				defer svc.Close()
				go svc.maintain(ctx, s.SessionTTL)

				baseURL, err = startInternalAPI(ctx, svc, log)
				if err != nil {
					return err
				}
				log.Info().Str("url", baseURL).Msg("Internal HTTP server started for MCP stdio")
			}

			log.Info().Msg("MCP stdio server ready")
			return server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer())
		},
	}
}

// apiAvailable reports whether an API server answers its health check
func apiAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "check locomotive configuration files",
		ArgsUsage: "[file.json|dir ...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, _, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			targets := cmd.Args().Slice()
			if len(targets) == 0 {
				targets = []string{s.ConfigDir}
			}

			var results []validate.Result
			for _, target := range targets {
				rs, err := validateTarget(target)
				if err != nil {
					return err
				}
				results = append(results, rs...)
			}

			if !validate.Report(cmd.Root().Writer, results) {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func validateTarget(target string) ([]validate.Result, error) {
	if isDir(target) {
		return validate.Dir(target)
	}
	return []validate.Result{validate.File(target)}, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "drive a configuration headlessly at a fixed throttle and print a table",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "configuration id (default: the default configuration)"},
			&cli.FloatFlag{Name: "duration", Value: 120, Usage: "simulated seconds"},
			&cli.FloatFlag{Name: "throttle", Value: 1, Usage: "throttle notch in [0,1]"},
			&cli.BoolFlag{Name: "reverse", Usage: "drive in reverse"},
			&cli.FloatFlag{Name: "dt", Usage: "tick length in seconds (default from settings)"},
			&cli.FloatFlag{Name: "report-every", Value: 1, Usage: "seconds between table rows"},
			&cli.FloatFlag{Name: "mass", Usage: "train mass in kg (default from the configuration)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, log, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			configs, err := config.NewManager(s.ConfigDir)
			if err != nil {
				return fmt.Errorf("failed to create config manager: %w", err)
			}
			cfg := configs.GetDefault()
			if name := cmd.String("config"); name != "" {
				if cfg, err = configs.LoadConfig(name); err != nil {
					return err
				}
			}

			loco, err := locomotive.New(cfg, locomotive.WithLogger(log))
			if err != nil {
				return err
			}

			plan := simulate.Plan{
				DurationS:    cmd.Float("duration"),
				Dt:           s.DefaultDt,
				Throttle:     cmd.Float("throttle"),
				Direction:    traction.Forward,
				ReportEveryS: cmd.Float("report-every"),
				MassKg:       cmd.Float("mass"),
			}
			if cmd.IsSet("dt") {
				plan.Dt = cmd.Float("dt")
			}
			if cmd.Bool("reverse") {
				plan.Direction = traction.Reverse
			}

			summary, err := simulate.Run(ctx, loco, plan)
			if err != nil {
				return err
			}
			simulate.WriteTable(cmd.Root().Writer, summary)
			return nil
		},
	}
}
