// Package main provides the semmap binary entry point.
// Semmap maps typed entity views onto a triple store and serializes its
// contents as RDF.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/semmap/config"
	"github.com/c360studio/semmap/export"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semmap"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	logLevel   string
	inputs     []string
}

func rootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Typed entity views over a triple store",
		Long: `Semmap maps typed entity views onto RDF graphs.

Mappings are read from YAML files, facts live in memory or in a
NATS JetStream key-value bucket.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringSliceVarP(&opts.inputs, "input", "i", nil, "N-Quads files imported before the command runs")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})
	cmd.AddCommand(mappingsCmd(opts), importCmd(opts), describeCmd(opts), countCmd(opts), exportCmd(opts))

	return cmd
}

func mappingsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect and validate mapping files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check that mapping files resolve",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			app := NewApp(cfg, logger)
			files, err := app.source.Files()
			if err != nil {
				return err
			}
			if _, err := app.source.Set(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d mapping files OK\n", len(files))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List mapped views with their classes and properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			app := NewApp(cfg, logger)
			if err := app.LoadMappings(); err != nil {
				return err
			}
			return listMappings(cmd.OutOrStdout(), app)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Rebuild mappings whenever mapping files change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(opts)
			if err != nil {
				return err
			}
			app := NewApp(cfg, logger)
			if err := app.LoadMappings(); err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			logger.Info("Watching mapping files", slog.Any("patterns", app.source.Patterns))
			return app.Watch(ctx)
		},
	})

	return cmd
}

func listMappings(w io.Writer, app *App) error {
	set := app.Mappings()
	registry := set.Registry()
	for _, m := range set.Mappings() {
		fmt.Fprintf(w, "%s\n", m.Type)
		for _, c := range m.Classes {
			fmt.Fprintf(w, "  a %s\n", registry.Shorten(c.Class))
		}
		for _, p := range m.Properties {
			shape := p.Kind.String()
			if p.Collection {
				shape = "[]" + shape
			}
			if p.Target != nil {
				shape += " " + p.Target.Name()
			}
			fmt.Fprintf(w, "  %s %s (%s)\n", p.Name, registry.Shorten(p.Predicate), shape)
		}
	}
	return nil
}

func importCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE...",
		Short: "Import N-Quads files into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.inputs = append(opts.inputs, args...)
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				facts, err := app.Facts(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d facts in store\n", len(facts))
				return nil
			})
		},
	}
}

func describeCmd(opts *options) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "describe ID",
		Short: "Show an entity through a mapped view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				return app.Describe(ctx, cmd.OutOrStdout(), args[0], typeName)
			})
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "View to load the entity as (default: resource)")
	return cmd
}

func countCmd(opts *options) *cobra.Command {
	var typeName string
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count entities matching a view",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				n, err := app.Count(ctx, typeName)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "View to count (default: resource)")
	return cmd
}

func exportCmd(opts *options) *cobra.Command {
	var (
		formatName string
		profile    string
		output     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Serialize the store as RDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := export.ParseFormat(formatName)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, app *App) error {
				w := cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create output: %w", err)
					}
					defer f.Close()
					w = f
				}
				return app.Export(ctx, w, format, export.Profile(profile))
			})
		},
	}
	cmd.Flags().StringVarP(&formatName, "format", "f", string(export.FormatTurtle), "Output format (turtle, ntriples, nquads, jsonld)")
	cmd.Flags().StringVarP(&profile, "profile", "p", string(export.ProfileMinimal), "Alignment profile (minimal, prov, bfo, cco)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

// withApp starts an app, imports --input files and runs fn.
func withApp(cmd *cobra.Command, opts *options, fn func(ctx context.Context, app *App) error) error {
	cfg, logger, err := setup(opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app := NewApp(cfg, logger)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Shutdown()

	for _, path := range opts.inputs {
		if err := importFile(ctx, app, path); err != nil {
			return err
		}
	}
	return fn(ctx, app)
}

func importFile(ctx context.Context, app *App, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	if _, err := app.Import(ctx, f); err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	return nil
}

// setup loads configuration and configures logging. The --log-level flag
// overrides the configured level.
func setup(opts *options) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// loadConfig reads an explicit config file or falls back to the layered
// user and project configuration.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.NewLoader(nil).Load()
	}
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Root == "" {
		cfg.Root = filepath.Dir(configPath)
	}
	return cfg, nil
}
