// Package app wires the chat client's services together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/nfrund/chatapp/internal/config"
	"github.com/nfrund/chatapp/internal/feed"
	"github.com/nfrund/chatapp/internal/hub"
	"github.com/nfrund/chatapp/internal/identity"
	"github.com/nfrund/chatapp/internal/logging"
	"github.com/nfrund/chatapp/internal/pubsub"
	"github.com/nfrund/chatapp/internal/session"
	"github.com/nfrund/chatapp/internal/transport"
	"github.com/nfrund/chatapp/internal/web"
	"github.com/samber/do/v2"
	"github.com/spf13/afero"
)

// userFile is the name of the stored session inside the state directory.
const userFile = "user.json"

// Options select where configuration and state come from.
type Options struct {
	RuntimeConfigPath string
	EnvFiles          []string
	// StateDir holds the stored session. Empty keeps it in memory.
	StateDir  string
	LogFormat string
	LogLevel  string

	// Navigator is used when a request carries none, e.g. the browser opener
	// of the CLI.
	Navigator    session.Navigator
	StrictExpiry bool

	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// Build overrides the build-time configuration source, mainly for tests.
	Build config.Source
	// Logger skips building one from LogFormat and LogLevel.
	Logger *slog.Logger
}

// App resolves services lazily, so a command only builds what it uses.
type App struct {
	injector *do.RootScope
	ctx      context.Context

	mu   sync.Mutex
	bus  *pubsub.WatermillBridge
	feed *feed.Feed
}

// New registers every service. Nothing is built until it is first asked for.
func New(ctx context.Context, opts Options) *App {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Build == nil {
		opts.Build = config.BuildSource()
	}

	a := &App{injector: do.New(), ctx: ctx}
	do.ProvideValue(a.injector, opts)
	do.Provide(a.injector, provideLogger)
	do.Provide(a.injector, provideConfig)
	do.Provide(a.injector, provideUserStore)
	do.Provide(a.injector, a.provideIdentity)
	do.Provide(a.injector, provideSessions)
	do.Provide(a.injector, provideTransport)
	do.Provide(a.injector, a.provideBus)
	do.Provide(a.injector, provideHub)
	do.Provide(a.injector, a.provideFeed)
	do.Provide(a.injector, provideWeb)
	return a
}

func provideLogger(i do.Injector) (*slog.Logger, error) {
	opts := do.MustInvoke[Options](i)
	if opts.Logger != nil {
		return opts.Logger, nil
	}
	return logging.New(opts.LogFormat, opts.LogLevel), nil
}

func provideConfig(i do.Injector) (*config.Config, error) {
	opts := do.MustInvoke[Options](i)
	runtime, err := config.LoadRuntimeSource(opts.Fs, opts.RuntimeConfigPath)
	if err != nil {
		return nil, err
	}
	return config.Resolve(opts.Build, config.EnvSource(runtime, opts.EnvFiles...))
}

func provideUserStore(i do.Injector) (identity.UserStore, error) {
	opts := do.MustInvoke[Options](i)
	if opts.StateDir == "" {
		return identity.NewMemoryStore(), nil
	}
	return identity.NewFileStore(opts.Fs, filepath.Join(opts.StateDir, userFile)), nil
}

func (a *App) provideIdentity(i do.Injector) (*identity.Client, error) {
	cfg, err := do.Invoke[*config.Config](i)
	if err != nil {
		return nil, err
	}
	store := do.MustInvoke[identity.UserStore](i)
	logger := do.MustInvoke[*slog.Logger](i)

	return identity.NewClient(a.ctx, identity.Settings{
		Authority:             cfg.IssuerURL,
		ClientID:              cfg.ClientID,
		RedirectURI:           cfg.RedirectURI,
		PostLogoutRedirectURI: cfg.PostLogoutRedirectURI(),
		Scopes:                cfg.ScopeList(),
	}, store, identity.WithLogger(logger))
}

func provideSessions(i do.Injector) (*session.Manager, error) {
	client, err := do.Invoke[*identity.Client](i)
	if err != nil {
		return nil, err
	}
	opts := do.MustInvoke[Options](i)
	logger := do.MustInvoke[*slog.Logger](i)

	sessionOpts := []session.Option{session.WithLogger(logger)}
	if opts.Navigator != nil {
		sessionOpts = append(sessionOpts, session.UseNavigator(opts.Navigator))
	}
	if opts.StrictExpiry {
		sessionOpts = append(sessionOpts, session.WithStrictExpiry())
	}
	return session.NewManager(client, sessionOpts...), nil
}

func provideTransport(i do.Injector) (*transport.Client, error) {
	cfg, err := do.Invoke[*config.Config](i)
	if err != nil {
		return nil, err
	}
	sessions, err := do.Invoke[*session.Manager](i)
	if err != nil {
		return nil, err
	}
	return transport.New(cfg, sessions, transport.WithLogger(do.MustInvoke[*slog.Logger](i))), nil
}

func (a *App) provideBus(i do.Injector) (*pubsub.WatermillBridge, error) {
	bus := pubsub.NewWatermillBridge(do.MustInvoke[*slog.Logger](i))
	a.mu.Lock()
	a.bus = bus
	a.mu.Unlock()
	return bus, nil
}

func provideHub(i do.Injector) (*hub.Hub, error) {
	return hub.New(do.MustInvoke[*slog.Logger](i)), nil
}

func (a *App) provideFeed(i do.Injector) (*feed.Feed, error) {
	client, err := do.Invoke[*transport.Client](i)
	if err != nil {
		return nil, err
	}
	bus := do.MustInvoke[*pubsub.WatermillBridge](i)
	f := feed.New(client, bus, do.MustInvoke[*slog.Logger](i))
	a.mu.Lock()
	a.feed = f
	a.mu.Unlock()
	return f, nil
}

func provideWeb(i do.Injector) (*web.Server, error) {
	cfg, err := do.Invoke[*config.Config](i)
	if err != nil {
		return nil, err
	}
	sessions, err := do.Invoke[*session.Manager](i)
	if err != nil {
		return nil, err
	}
	client, err := do.Invoke[*transport.Client](i)
	if err != nil {
		return nil, err
	}
	f, err := do.Invoke[*feed.Feed](i)
	if err != nil {
		return nil, err
	}
	return web.New(web.Deps{
		Config:   cfg,
		Sessions: sessions,
		API:      client,
		Feed:     f,
		Hub:      do.MustInvoke[*hub.Hub](i),
		Logger:   do.MustInvoke[*slog.Logger](i),
	})
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return do.MustInvoke[*slog.Logger](a.injector)
}

func (a *App) Config() (*config.Config, error) {
	return do.Invoke[*config.Config](a.injector)
}

func (a *App) Store() (identity.UserStore, error) {
	return do.Invoke[identity.UserStore](a.injector)
}

func (a *App) Identity() (*identity.Client, error) {
	return do.Invoke[*identity.Client](a.injector)
}

func (a *App) Sessions() (*session.Manager, error) {
	return do.Invoke[*session.Manager](a.injector)
}

func (a *App) Transport() (*transport.Client, error) {
	return do.Invoke[*transport.Client](a.injector)
}

func (a *App) Bus() (*pubsub.WatermillBridge, error) {
	return do.Invoke[*pubsub.WatermillBridge](a.injector)
}

func (a *App) Feed() (*feed.Feed, error) {
	return do.Invoke[*feed.Feed](a.injector)
}

// Serve runs the web UI on addr until ctx is cancelled.
func (a *App) Serve(ctx context.Context, addr string) error {
	srv, err := do.Invoke[*web.Server](a.injector)
	if err != nil {
		return fmt.Errorf("build web server: %w", err)
	}
	bus := do.MustInvoke[*pubsub.WatermillBridge](a.injector)
	h := do.MustInvoke[*hub.Hub](a.injector)

	go h.Run(ctx)
	if err := srv.ListenLive(ctx, bus); err != nil {
		return err
	}
	a.watchStore(ctx)
	return srv.Start(ctx, addr)
}

// watchStore logs sessions written by another process, such as `chatapp login`.
func (a *App) watchStore(ctx context.Context) {
	store, err := a.Store()
	if err != nil {
		return
	}
	fs, ok := store.(*identity.FileStore)
	if !ok {
		return
	}
	logger := a.Logger()
	err = fs.Watch(ctx, func() {
		logger.Info("Stored session changed", "path", fs.Path())
	})
	if err != nil && !errors.Is(err, identity.ErrWatchUnsupported) {
		logger.Warn("Could not watch the stored session", "error", err)
	}
}

// Close stops the live feed and the bus if they were built.
func (a *App) Close() error {
	a.mu.Lock()
	f, bus := a.feed, a.bus
	a.mu.Unlock()

	var errs []error
	if f != nil {
		errs = append(errs, f.Stop())
	}
	if bus != nil {
		errs = append(errs, bus.Close())
	}
	return errors.Join(errs...)
}
