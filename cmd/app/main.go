package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/notecommits/internal"
	"github.com/starford/notecommits/internal/render"
	"github.com/starford/notecommits/internal/spotlight"
	pkgconfig "github.com/starford/notecommits/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	found, err := pkgconfig.LoadOptional(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if !found {
		slog.Debug("config file not found, using defaults", slog.String("path", configPath))
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func runReport(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req := internal.ReportRequest{
		Kind:    cmd.String("kind"),
		Project: cmd.String("project"),
		Top:     int(cmd.Int("top")),
	}
	return internal.Report(ctx, req, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func runSpotlight(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var src []string
	if tags := cmd.StringSlice("tags"); len(tags) > 0 {
		src = append(src, "tags="+strings.Join(tags, ";"))
	}
	if match := cmd.String("match"); match != "" {
		src = append(src, "match="+match)
	}
	req := spotlight.Request{
		Source: strings.Join(src, "\n"),
		Block:  cmd.Bool("block"),
	}
	return internal.Spotlight(ctx, req, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func main() {
	cmd := &cli.Command{
		Name:   "notecommits",
		Usage:  "Track commit-style activity in a Markdown vault and spotlight random notes",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools on stdio",
				Action: runMCP,
			},
			{
				Name:   "report",
				Usage:  "Print commit activity of a project",
				Action: runReport,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "project",
						Aliases: []string{"p"},
						Usage:   "Tracked folder, / for the whole vault",
						Value:   "/",
					},
					&cli.StringFlag{
						Name:    "kind",
						Aliases: []string{"k"},
						Usage:   "Block kind: " + strings.Join(render.Kinds(), ", "),
						Value:   render.KindTypes,
					},
					&cli.IntFlag{
						Name:  "top",
						Usage: "Entries per action for commit-recent",
					},
				},
			},
			{
				Name:   "spotlight",
				Usage:  "Print a random note",
				Action: runSpotlight,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "block",
						Usage: "Pick a random ^block instead of a whole note",
					},
					&cli.StringSliceFlag{
						Name:  "tags",
						Usage: "Only notes carrying one of these tags",
					},
					&cli.StringFlag{
						Name:  "match",
						Usage: "Only notes whose path matches this regular expression",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
