package platform

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/sitecost/pkg/core"
)

// Adapter names accepted by WithAdapter and the "adapter" setting.
const (
	AdapterGitHub = "github"
	AdapterFS     = "fs"
	AdapterMemory = "memory"
)

// options holds the internal configuration for an App.
type options struct {
	logger     *slog.Logger
	adapter    string
	connector  core.Connector
	httpClient *http.Client
	now        func() time.Time
	systemDir  string
	useEnv     bool
	envFiles   []string
	autoInit   bool
	commit     bool
}

// Option defines a functional option for configuring an App.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
		useEnv: true,
		commit: true,
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAdapter overrides the remote adapter named in the settings
// ("github", "fs" or "memory").
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithConnector injects a remote connector (e.g. a memory.Server). It
// takes precedence over any adapter name.
func WithConnector(c core.Connector) Option {
	return func(o *options) {
		o.connector = c
	}
}

// WithHTTPClient sets the HTTP client used by the GitHub adapter.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// WithClock overrides the time source of every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithSystemDir allows specifying the hidden directory name.
// Defaults to ".sitecost".
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithEnv controls whether SITECOST_* variables and .env files are laid
// over the stored settings. Enabled by default. Files default to ".env".
func WithEnv(enabled bool, files ...string) Option {
	return func(o *options) {
		o.useEnv = enabled
		o.envFiles = files
	}
}

// WithAutoInit creates the workspace if it does not exist yet.
func WithAutoInit(auto bool) Option {
	return func(o *options) {
		o.autoInit = auto
	}
}

// WithCommit controls whether the fs adapter commits each document
// write when its directory is a git repository. Enabled by default.
func WithCommit(enabled bool) Option {
	return func(o *options) {
		o.commit = enabled
	}
}
