package core

import "time"

// Defaults applied to fresh settings.
const (
	DefaultAPIURL         = "https://api.github.com"
	DefaultSyncInterval   = 30 * time.Second
	DefaultSessionTimeout = time.Hour
	DefaultCurrency       = "₹"
)

// AuthSettings holds the local password gate configuration.
type AuthSettings struct {
	PasswordHash   string        `yaml:"passwordHash,omitempty"`
	Salt           string        `yaml:"salt,omitempty"`
	SessionTimeout time.Duration `yaml:"sessionTimeout"`
}

// Settings is the resolved configuration of a workspace.
type Settings struct {
	Adapter      string         `yaml:"adapter,omitempty"`
	APIURL       string         `yaml:"apiUrl,omitempty"`
	Remote       RemoteLocation `yaml:"remote"`
	Credential   string         `yaml:"credential,omitempty"`
	AutoSync     bool           `yaml:"autoSync"`
	SyncInterval time.Duration  `yaml:"syncInterval"`
	Currency     string         `yaml:"currency,omitempty"`
	Auth         AuthSettings   `yaml:"auth"`
}

// DefaultSettings returns the settings of a new workspace.
func DefaultSettings() Settings {
	return Settings{
		Adapter:      "github",
		APIURL:       DefaultAPIURL,
		Remote:       RemoteLocation{DataPath: DefaultDataPath, LogPath: DefaultLogPath},
		AutoSync:     true,
		SyncInterval: DefaultSyncInterval,
		Currency:     DefaultCurrency,
		Auth:         AuthSettings{SessionTimeout: DefaultSessionTimeout},
	}
}

// Normalize fills zero values with defaults.
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	if s.Adapter == "" {
		s.Adapter = d.Adapter
	}
	if s.APIURL == "" {
		s.APIURL = d.APIURL
	}
	if s.SyncInterval <= 0 {
		s.SyncInterval = d.SyncInterval
	}
	if s.Currency == "" {
		s.Currency = d.Currency
	}
	if s.Auth.SessionTimeout <= 0 {
		s.Auth.SessionTimeout = d.Auth.SessionTimeout
	}
	s.Remote = s.Remote.WithDefaults()
	return s
}

// RemoteConfigured reports whether a remote location has been set.
func (s Settings) RemoteConfigured() bool {
	return s.Remote.Validate() == nil
}
