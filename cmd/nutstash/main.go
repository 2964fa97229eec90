// Command nutstash runs the cache-aside catalog demo service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	gonutstash "github.com/Keksclan/goNutStash"
	"github.com/Keksclan/goNutStash/latency"
	"github.com/Keksclan/goNutStash/logging"
	"github.com/Keksclan/goNutStash/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "nutstash",
		Short:         "Cache-aside catalog demo service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newSeedCmd(&configPath))
	return root
}

// loadConfig layers defaults, the optional config file and environment
// overrides.
func loadConfig(path string) (gonutstash.Config, error) {
	cfg := gonutstash.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = gonutstash.LoadFromFile(path); err != nil {
			return cfg, err
		}
	}
	return gonutstash.LoadFromEnv(cfg), nil
}

func newServeCmd(configPath *string) *cobra.Command {
	var enableTracing bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP (and optional gRPC) server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := logging.New(os.Stderr, cfg.LogLevel)
			opts := []gonutstash.Option{gonutstash.WithLogger(logger)}

			if enableTracing {
				exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
				if err != nil {
					return fmt.Errorf("trace exporter: %w", err)
				}
				tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
				defer func() { _ = tp.Shutdown(context.Background()) }()
				opts = append(opts, gonutstash.WithTracerProvider(tp))
			}

			svc, err := gonutstash.NewService(ctx, cfg, opts...)
			if err != nil {
				return err
			}
			defer svc.Close()

			return svc.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&enableTracing, "trace", false, "emit spans to stdout")
	return cmd
}

func newSeedCmd(configPath *string) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the backing store with demo products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pg, err := store.NewPostgres(ctx, cfg.PostgresDSN, latency.None)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Seed(ctx, count); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products\n", count)
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 100, "number of products to seed")
	return cmd
}
