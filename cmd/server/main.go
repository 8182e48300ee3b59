package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/ichat-server/internal/app"
	"github.com/vovakirdan/ichat-server/internal/config"
	logpkg "github.com/vovakirdan/ichat-server/internal/log"
)

type flags struct {
	configPath string
	addr       string
	logLevel   string
	dbPath     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "ichat-server",
		Short:         "Friend-gated realtime chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f)
		},
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&f.addr, "addr", "", "HTTP listen address")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&f.dbPath, "db", "", "sqlite database path")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), f)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, logger, err := load(f)
			if err != nil {
				return err
			}
			return app.Migrate(&cfg, logger)
		},
	})

	return root
}

// load resolves configuration and builds the logger; flags override file and env values.
func load(f *flags) (config.Config, *zerolog.Logger, error) {
	bootLogger := logpkg.New("info", "console")

	cfg, path, err := config.Load(bootLogger, f.configPath)
	if err != nil {
		return cfg, bootLogger, fmt.Errorf("load config: %w", err)
	}
	cfg.UpdateFrom(config.Config{
		Addr:         f.addr,
		LogLevel:     f.logLevel,
		DatabasePath: f.dbPath,
	})

	logger := logpkg.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return cfg, logger, nil
}

func serve(parent context.Context, f *flags) error {
	cfg, logger, err := load(f)
	if err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(&cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting ichat server")
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited with error: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
