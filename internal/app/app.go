package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ichat-server/internal/auth"
	"github.com/vovakirdan/ichat-server/internal/config"
	"github.com/vovakirdan/ichat-server/internal/core"
	"github.com/vovakirdan/ichat-server/internal/metrics"
	"github.com/vovakirdan/ichat-server/internal/store"
	"github.com/vovakirdan/ichat-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/ichat-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server *stdhttp.Server
	cfg    *config.Config
	hub    *core.Hub
	store  store.Store
	log    *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}
	authService := auth.NewService(st, jwtConfig)

	var (
		m              *metrics.Metrics
		metricsHandler stdhttp.Handler
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	hub := core.NewHub(core.Options{
		Verifier:        auth.NewVerifier(jwtConfig, st),
		Store:           st,
		EvictionTimeout: cfg.EvictionTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Metrics:         m,
		Logger:          *logger,
	})

	if logger.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	server := transporthttp.NewServer(hub, authService, st, cfg, logger, metricsHandler)

	return &App{
		server: server,
		cfg:    cfg,
		hub:    hub,
		store:  st,
		log:    logger,
	}, nil
}

// Run listens on the configured address and serves until context
// cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		a.cleanup()
		return fmt.Errorf("listen %s: %w", a.cfg.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or the server fails.
// The store is closed only after every live session has persisted its teardown.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	serverErr := make(chan error, 1)

	// Websocket connections are hijacked and ignored by server Shutdown; the hub
	// kicks them and waits for their teardown.
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		a.hub.Run(hubCtx)
	}()

	go func() {
		a.log.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		stopHub()
		<-hubDone
		a.cleanup()
		return err
	case <-ctx.Done():
		a.log.Info().Msg("shutting down sessions")
		<-hubDone

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}

// Migrate applies the database schema and exits.
func Migrate(cfg *config.Config, logger *zerolog.Logger) error {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("schema applied")
	return st.Close()
}
