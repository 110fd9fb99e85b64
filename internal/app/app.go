package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-live/internal/config"
	"github.com/vovakirdan/wirechat-live/internal/core"
	"github.com/vovakirdan/wirechat-live/internal/log"
	"github.com/vovakirdan/wirechat-live/internal/relay"
	"github.com/vovakirdan/wirechat-live/internal/store"
	transporthttp "github.com/vovakirdan/wirechat-live/internal/transport/http"
)

// App wires together store, core, relay and transport layers.
type App struct {
	server          *transporthttp.Server
	shutdownTimeout time.Duration
	mode            string
	registry        *core.Registry
	relay           *relay.Relay
	store           store.MessageStore
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, ps, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("backend", cfg.Store.Backend).Msg("message store initialized")

	opts := core.RegistryOptions{
		Store:     st,
		KeyPrefix: cfg.Store.KeyPrefix,
		Logger:    log.Component(logger, "core"),
	}
	if cfg.Mode == config.ModeDistributed {
		if ps == nil {
			_ = st.Close()
			return nil, fmt.Errorf("backend %q has no pub/sub for distributed mode", cfg.Store.Backend)
		}
		opts.Publisher = ps
	}
	registry := core.NewRegistry(opts)

	a := &App{
		shutdownTimeout: cfg.ShutdownTimeout,
		mode:            cfg.Mode,
		registry:        registry,
		store:           st,
		log:             logger,
	}

	var status transporthttp.RelayStatus
	if registry.Distributed() {
		a.relay = relay.New(ps, registry, relay.Options{
			Channel:    registry.Channel(),
			BackoffMin: cfg.Relay.BackoffMin,
			BackoffMax: cfg.Relay.BackoffMax,
			Logger:     logger,
		})
		status = a.relay
	}

	a.server = transporthttp.NewServer(registry, status, cfg, log.Component(logger, "http"))
	return a, nil
}

// Registry returns the room registry.
func (a *App) Registry() *core.Registry { return a.registry }

// Run listens on the configured address and serves until ctx is canceled or
// the server fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		a.cleanup()
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener. Open live connections are closed when
// ctx is canceled.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	defer a.cleanup()

	g, gctx := errgroup.WithContext(ctx)
	a.server.BaseContext = func(net.Listener) context.Context { return gctx }

	g.Go(func() error {
		a.log.Info().Str("addr", ln.Addr().String()).Str("mode", a.mode).Msg("http server listening")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	if a.relay != nil {
		g.Go(func() error {
			return a.relay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	// Live connections were canceled through gctx; they must be gone before
	// the store closes.
	a.server.WaitConnections()
	return err
}

// cleanup closes the store.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
