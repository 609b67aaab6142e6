// Package config overlays environment variables (and an optional .env
// file) on top of the persisted workspace settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"

	"github.com/aretw0/sitecost/pkg/core"
)

// Prefix is prepended to every variable name.
const Prefix = "SITECOST_"

// Config holds the values read from the environment. Empty fields leave
// the corresponding setting alone.
type Config struct {
	GitHub       GitHub
	Adapter      string        `env:"ADAPTER"`
	APIURL       string        `env:"API_URL"`
	SyncInterval time.Duration `env:"SYNC_INTERVAL"`
	AutoSync     string        `env:"AUTO_SYNC"` // "true"/"false"; empty keeps the setting
	Currency     string        `env:"CURRENCY"`
}

// GitHub holds the remote coordinates and access token.
type GitHub struct {
	Owner  string `env:"GITHUB_OWNER"`
	Repo   string `env:"GITHUB_REPO"`
	Branch string `env:"GITHUB_BRANCH"`
	Token  string `env:"GITHUB_TOKEN"`
}

// Load reads the given .env files (".env" when none are named; missing
// files are skipped) and then parses the process environment. Variables
// already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return Parse(nil)
}

// Parse reads variables from environ, or from the process environment
// when environ is nil.
func Parse(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: Prefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.AutoSync != "" {
		if _, err := strconv.ParseBool(cfg.AutoSync); err != nil {
			return Config{}, fmt.Errorf("invalid %sAUTO_SYNC %q: %w", Prefix, cfg.AutoSync, err)
		}
	}
	return cfg, nil
}

// Empty reports whether no variable was set.
func (c Config) Empty() bool {
	return c == Config{}
}

// Apply returns s with every non-empty field of c laid over it.
func (c Config) Apply(s core.Settings) core.Settings {
	if c.GitHub.Owner != "" {
		s.Remote.Owner = c.GitHub.Owner
	}
	if c.GitHub.Repo != "" {
		s.Remote.Repo = c.GitHub.Repo
	}
	if c.GitHub.Branch != "" {
		s.Remote.Branch = c.GitHub.Branch
	}
	if c.GitHub.Token != "" {
		s.Credential = c.GitHub.Token
	}
	if c.Adapter != "" {
		s.Adapter = c.Adapter
	}
	if c.APIURL != "" {
		s.APIURL = c.APIURL
	}
	if c.SyncInterval > 0 {
		s.SyncInterval = c.SyncInterval
	}
	if c.AutoSync != "" {
		s.AutoSync, _ = strconv.ParseBool(c.AutoSync)
	}
	if c.Currency != "" {
		s.Currency = c.Currency
	}
	return s.Normalize()
}
