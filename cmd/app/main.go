package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tatami/internal"
	"github.com/starford/tatami/internal/codec"
	"github.com/starford/tatami/internal/record"
	pkgconfig "github.com/starford/tatami/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

// withRuntime opens the configured stores for a one-shot command. Logs go
// to stderr so stdout carries only command output.
func withRuntime(cmd *cli.Command, fn func(rt *internal.Runtime) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := internal.Open(cfg, internal.NewLogger(cfg, os.Stderr))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readRecord(path string) (*record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r, err := codec.ForFile(path).Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return r, nil
}

func clean(ctx context.Context, cmd *cli.Command) error {
	return withRuntime(cmd, func(rt *internal.Runtime) error {
		if family := cmd.String("family"); family != "" {
			rep, err := rt.Service.Clean(ctx, family)
			if err != nil {
				return err
			}
			return printJSON(rep)
		}
		reports, err := rt.Service.CleanAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(reports)
	})
}

func create(ctx context.Context, cmd *cli.Command) error {
	r, err := readRecord(cmd.String("file"))
	if err != nil {
		return err
	}
	family := cmd.String("family")
	return withRuntime(cmd, func(rt *internal.Runtime) error {
		if _, err := rt.Service.Create(ctx, family, r); err != nil {
			return err
		}
		if !cmd.Bool("clean") {
			return printJSON(r)
		}
		rep, err := rt.Service.Clean(ctx, family)
		if err != nil {
			return err
		}
		return printJSON(rep)
	})
}

func update(ctx context.Context, cmd *cli.Command) error {
	r, err := readRecord(cmd.String("file"))
	if err != nil {
		return err
	}
	return withRuntime(cmd, func(rt *internal.Runtime) error {
		d, err := rt.Service.Update(ctx, cmd.String("family"), r, cmd.String("if-match"))
		if err != nil {
			return err
		}
		return printJSON(d)
	})
}

func remove(ctx context.Context, cmd *cli.Command) error {
	return withRuntime(cmd, func(rt *internal.Runtime) error {
		return rt.Service.Delete(ctx, cmd.String("family"), cmd.String("id"))
	})
}

func familyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "family",
		Aliases: []string{"f"},
		Usage:   "Record family (techniques, articles)",
		Value:   record.Techniques.Name,
	}
}

func fileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "file",
		Usage:    "Record document (.json, .yaml or .yml)",
		Required: true,
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "tatami",
		Usage:  "Martial-arts technique knowledge base with referential-integrity reconciliation",
		Action: serve,
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
				Name:   "serve",
				Usage:  "Serve the HTTP API and watch record files",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: serveMCP,
			},
			{
				Name:  "clean",
				Usage: "Run the clean pass over one family, or every family when --family is empty",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "family", Aliases: []string{"f"}, Usage: "Record family"},
				},
				Action: clean,
			},
			{
				Name:  "create",
				Usage: "Create a record from a document file",
				Flags: []cli.Flag{
					familyFlag(),
					fileFlag(),
					&cli.BoolFlag{Name: "clean", Usage: "Run the clean pass afterwards"},
				},
				Action: create,
			},
			{
				Name:  "update",
				Usage: "Overwrite an existing record from a document file",
				Flags: []cli.Flag{
					familyFlag(),
					fileFlag(),
					&cli.StringFlag{Name: "if-match", Usage: "Expected checksum of the stored document"},
				},
				Action: update,
			},
			{
				Name:  "delete",
				Usage: "Delete a record",
				Flags: []cli.Flag{
					familyFlag(),
					&cli.StringFlag{Name: "id", Usage: "Record id", Required: true},
				},
				Action: remove,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
