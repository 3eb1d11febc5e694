package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatr/internal/config"
	"github.com/vovakirdan/chatr/internal/console"
	"github.com/vovakirdan/chatr/internal/core"
	"github.com/vovakirdan/chatr/internal/settings"
	"github.com/vovakirdan/chatr/internal/store"
	"github.com/vovakirdan/chatr/internal/store/inifile"
	"github.com/vovakirdan/chatr/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/chatr/internal/transport/http"
)

// Options replace the process defaults. Tests use them to run without a
// terminal or a multicast-capable network.
type Options struct {
	In    io.Reader
	Out   io.Writer
	Dial  core.Dialer
	Addrs console.AddrLister
}

// App wires together the hub, its front-ends and the settings store.
type App struct {
	cfg     config.Config
	hub     *core.Hub
	feed    *core.Feed
	store   store.Store
	console *console.Console
	server  *stdhttp.Server
	addrs   console.AddrLister
	log     *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger, opts Options) (*App, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("backend", cfg.SettingsBackend).Str("path", cfg.SettingsPath).Msg("settings store ready")

	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	dial := opts.Dial
	if dial == nil {
		dial = core.MulticastDialer(logger)
	}

	feed := core.NewFeed(logger)
	hub := core.NewHub(core.HubOptions{
		Dial:   dial,
		Sink:   feed,
		Logger: logger,
		Globals: settings.Globals{
			DisplayName:  settings.Normalize(cfg.DisplayName),
			ConnectionIP: cfg.ConnectionIP,
		},
		SettleDelay:  cfg.SettleDelay,
		UniqueRoster: cfg.DedupeRoster,
		Store:        st,
	})

	a := &App{
		cfg:     cfg,
		hub:     hub,
		feed:    feed,
		store:   st,
		console: console.New(hub, feed, in, out, cfg.EventBuffer, logger),
		addrs:   opts.Addrs,
		log:     logger,
	}
	if cfg.HTTPAddr != "" {
		a.server = transporthttp.NewServer(hub, feed, cfg, logger)
	}
	return a, nil
}

// Hub exposes the orchestrator.
func (a *App) Hub() *core.Hub {
	return a.hub
}

// Run restores saved channels, then serves the console (and the control API when
// enabled) until the user quits, input ends, ctx is cancelled or the API fails.
// Channels are always shut down and settings saved before it returns.
func (a *App) Run(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		a.console.Close()
		a.cleanup()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErr := make(chan error, 1)
	if a.server != nil {
		go func() {
			a.log.Info().Str("addr", a.server.Addr).Msg("control api listening")
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- err
				return
			}
			serverErr <- nil
		}()
	}

	consoleErr := make(chan error, 1)
	go func() {
		consoleErr <- a.console.Run(runCtx)
	}()

	var runErr error
	select {
	case err := <-consoleErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	case err := <-serverErr:
		runErr = err
		cancel()
		<-consoleErr
	}

	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (a *App) restore(ctx context.Context) error {
	snap, err := a.store.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		snap, err = a.firstRun(ctx)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("load settings: %w", err)
	}

	if err := a.hub.Load(snap, a.cfg.Autoconnect); err != nil {
		// individual channels failed; the rest are usable
		a.log.Warn().Err(err).Msg("some saved channels were skipped")
	}
	a.log.Info().Int("channels", len(snap.Channels)).Bool("autoconnect", a.cfg.Autoconnect).Msg("settings restored")
	return nil
}

// firstRun asks the user for their identity unless the configuration already names them.
func (a *App) firstRun(ctx context.Context) (store.Snapshot, error) {
	if a.hub.Globals().DisplayName != "" {
		return store.Snapshot{Channels: []settings.ChannelSettings{
			settings.New(console.FirstChannel, "", "", settings.DefaultMulticastIP, settings.DefaultPort, ""),
		}}, nil
	}
	snap, err := a.console.Onboard(ctx, a.addrs)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("first run: %w", err)
	}
	return snap, nil
}

func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.server != nil {
		a.log.Info().Msg("shutting down control api")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown control api: %w", err))
		}
	}
	if err := a.hub.ShutDown(shutdownCtx); err != nil {
		errs = append(errs, err)
	} else {
		a.log.Info().Msg("settings saved")
	}
	a.cleanup()
	return errors.Join(errs...)
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Debug().Msg("store closed")
		}
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.SettingsBackend {
	case store.BackendFile, "":
		return inifile.New(cfg.SettingsPath), nil
	case store.BackendSQLite:
		return sqlite.New(cfg.SettingsPath)
	default:
		return nil, fmt.Errorf("unknown settings backend %q", cfg.SettingsBackend)
	}
}
