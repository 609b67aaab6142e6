package sitecost

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/sitecost/internal/platform"
	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/typed"
)

// --- Types ---

// App is the application context returned by Open.
type App = platform.App

// AppState is the aggregated introspection state of an App.
type AppState = platform.AppState

// TypedRepository is a public alias for the typed document repository.
type TypedRepository[T any] = typed.Repository[T]

// ErrAuthRequired is returned by App.Authorize when the password must be
// entered again.
var ErrAuthRequired = platform.ErrAuthRequired

// --- Configuration ---

// Option defines a functional option for configuring an App.
type Option = platform.Option

// Adapter names.
const (
	AdapterGitHub = platform.AdapterGitHub
	AdapterFS     = platform.AdapterFS
	AdapterMemory = platform.AdapterMemory
)

// WithAutoInit creates the workspace directory when it is missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithAdapter selects the remote adapter by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithConnector injects a remote connector, e.g. a memory.Server.
func WithConnector(c core.Connector) Option {
	return platform.WithConnector(c)
}

// WithHTTPClient sets the HTTP client of the GitHub adapter.
func WithHTTPClient(hc *http.Client) Option {
	return platform.WithHTTPClient(hc)
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return platform.WithClock(now)
}

// WithSystemDir allows specifying the hidden directory name (e.g. ".sitecost").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithEnv toggles the SITECOST_* environment overlay and names the .env
// files to load.
func WithEnv(enabled bool, files ...string) Option {
	return platform.WithEnv(enabled, files...)
}

// WithCommit toggles git commits in the fs adapter.
func WithCommit(enabled bool) Option {
	return platform.WithCommit(enabled)
}

// --- Factory ---

// Open loads the workspace at path and returns its App.
func Open(path string, opts ...Option) (*App, error) {
	return platform.Open(path, opts...)
}

// FindRoot looks upwards from startDir for a workspace.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}

// NewTypedRepository creates a type-safe wrapper around a remote store.
func NewTypedRepository[T any](store core.RemoteStore) *TypedRepository[T] {
	return typed.NewRepository[T](store)
}
