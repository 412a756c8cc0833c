package app

import (
	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/provider"
	"github.com/skybox-dev/skybox/internal/secret"
	"github.com/skybox-dev/skybox/internal/session"
	"github.com/skybox-dev/skybox/internal/task"
)

// App bundles the process-wide collaborators. It is built once in the
// root command and handed down explicitly; nothing in the engine
// reaches for package-level state.
type App struct {
	Paths   *config.Paths
	Config  *config.Config
	Store   *session.Store
	Secrets secret.Store
	Queue   *task.Queue
}

// Option overrides one collaborator, mainly for tests.
type Option func(*App)

// WithPaths sets the path layout.
func WithPaths(paths *config.Paths) Option {
	return func(a *App) {
		a.Paths = paths
	}
}

// WithConfig sets the merged configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) {
		a.Config = cfg
	}
}

// WithStore sets the session store.
func WithStore(store *session.Store) Option {
	return func(a *App) {
		a.Store = store
	}
}

// WithSecrets sets the secret store.
func WithSecrets(secrets secret.Store) Option {
	return func(a *App) {
		a.Secrets = secrets
	}
}

// WithQueue sets the background task queue.
func WithQueue(queue *task.Queue) Option {
	return func(a *App) {
		a.Queue = queue
	}
}

// New builds the application context, filling in anything the options
// left unset: default paths, loaded config, keyring-backed secrets, the
// SQLite store, and a fresh task queue.
func New(opts ...Option) (*App, error) {
	a := &App{}
	for _, opt := range opts {
		opt(a)
	}

	if a.Paths == nil {
		a.Paths = config.DefaultPaths()
	}
	if a.Config == nil {
		cfg, err := config.Load(a.Paths)
		if err != nil {
			return nil, err
		}
		a.Config = cfg
	}
	if a.Secrets == nil {
		a.Secrets = secret.Open(a.Paths.CredentialsPath)
	}
	if a.Store == nil {
		if err := a.Paths.EnsureDirs(); err != nil {
			return nil, err
		}
		store, err := session.Open(a.Paths.DBPath)
		if err != nil {
			return nil, err
		}
		a.Store = store
	}
	if a.Queue == nil {
		a.Queue = task.NewQueue()
	}
	return a, nil
}

// Provider returns the backend selected by tag, or by the configured
// default when tag is empty.
func (a *App) Provider(tag string) (provider.Provider, error) {
	if tag == "" {
		tag = a.Config.Provider
	}
	return provider.New(tag, provider.Deps{
		Store:   a.Store,
		Config:  a.Config,
		Paths:   a.Paths,
		Secrets: a.Secrets,
		Queue:   a.Queue,
	})
}

// Close releases the store. Safe to call once at process exit.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
