// pkg/app/app.go

// Package app is the lifecycle orchestrator of xploit. It owns the
// configuration, the job registry, the module registry, lifecycle hooks and
// the internal event bus, builds them in Init and tears them down in
// Shutdown.
package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/xploit/pkg/config"
	"github.com/vulntor/xploit/pkg/console"
	"github.com/vulntor/xploit/pkg/event"
	"github.com/vulntor/xploit/pkg/hook"
	"github.com/vulntor/xploit/pkg/jobs"
	"github.com/vulntor/xploit/pkg/module"
	"github.com/vulntor/xploit/pkg/modules"
	"github.com/vulntor/xploit/pkg/version"
)

// ErrNotInitialized is returned when the App is used before Init.
var ErrNotInitialized = errors.New("app not initialized")

// App is the central controller for the application's lifecycle.
type App struct {
	ctx    context.Context    // shared context for all subsystems
	cancel context.CancelFunc // cancellation for graceful shutdown

	ConfigManager *config.Manager
	Config        *config.Config
	Hooks         *hook.Manager
	Events        event.EventBus
	Jobs          *jobs.Registry
	Modules       *module.Registry
	IO            *console.Layer
	Version       version.Struct

	logger   zerolog.Logger
	initOnce sync.Once
	downOnce sync.Once
	initErr  error
	closers  []io.Closer
}

// Option configures an App before Init.
type Option func(*App)

// WithConfig uses cfg instead of the built-in defaults.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) { a.Config = cfg }
}

// WithConfigManager takes the configuration from an already loaded manager.
func WithConfigManager(m *config.Manager) Option {
	return func(a *App) { a.ConfigManager = m }
}

// WithIO binds the console collaborator. Without it the App runs headless.
func WithIO(c console.IO) Option {
	return func(a *App) { a.IO = console.NewLayer(c) }
}

// WithModules replaces the built-in module registry.
func WithModules(r *module.Registry) Option {
	return func(a *App) { a.Modules = r }
}

// New creates an App with an isolated context.
func New(opts ...Option) *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		ctx:    ctx,
		cancel: cancel,
		logger: log.With().Str("component", "app").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init initializes all subsystems. Only the first call has an effect.
func (a *App) Init() error {
	a.initOnce.Do(func() {
		if a.ConfigManager == nil {
			a.ConfigManager = config.NewManager()
			if err := a.ConfigManager.Load(config.DefaultSources("", nil, false)...); err != nil {
				a.initErr = err
				return
			}
		}
		if a.Config == nil {
			cfg := a.ConfigManager.Get()
			a.Config = &cfg
		}
		if a.IO == nil {
			a.IO = console.NewLayer(nil)
		}

		a.Hooks = hook.NewManager()
		a.Events = event.New()
		a.Jobs = jobs.NewRegistry(jobs.WithEventBus(a.Events))
		a.Hooks.Register(hook.OnShutdown, a.killJobs)

		if a.Modules == nil {
			r, err := modules.NewRegistry()
			if err != nil {
				a.initErr = err
				return
			}
			a.Modules = r
		}
		a.Version = version.Get()

		a.Hooks.TriggerSync(a.ctx, hook.OnStartup)
		a.logger.Debug().
			Int("modules", len(a.Modules.Modules())).
			Int("payloads", len(a.Modules.Payloads())).
			Msg("App initialized")
	})
	return a.initErr
}

// Context returns the shared application context.
func (a *App) Context() context.Context {
	return a.ctx
}

// Runtime returns what modules run with.
func (a *App) Runtime() (*module.Runtime, error) {
	if a.Jobs == nil {
		return nil, ErrNotInitialized
	}
	return &module.Runtime{
		Jobs:   a.Jobs,
		IO:     a.IO,
		Events: a.Events,
		Config: a.Config,
		Logger: log.With().Str("component", "module").Logger(),
	}, nil
}

// Shutdown runs the shutdown hooks, the first of which kills every job, and
// drops the registry. Only the first call has an effect.
func (a *App) Shutdown() {
	a.downOnce.Do(func() {
		if a.Hooks != nil {
			a.Hooks.TriggerSync(a.ctx, hook.OnShutdown)
		}

		a.Jobs = nil

		a.cancel()
		if bus, ok := a.Events.(*event.Bus); ok {
			bus.Wait()
		}
		for _, c := range a.closers {
			_ = c.Close()
		}
	})
}

// killJobs disposes every job within jobs.shutdown_timeout.
func (a *App) killJobs(context.Context) {
	if a.Jobs == nil {
		return
	}
	ctx := context.Background()
	if a.Config != nil && a.Config.Jobs.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.Config.Jobs.ShutdownTimeout)
		defer cancel()
	}
	n := a.Jobs.KillAllContext(ctx)
	a.logger.Debug().Int("jobs", n).Msg("Jobs killed at shutdown")
}
