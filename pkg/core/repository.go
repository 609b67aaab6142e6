package core

import (
	"context"
	"fmt"
	"strings"
)

// Default document paths inside the remote repository.
const (
	DefaultDataPath = "data/construction-data.json"
	DefaultLogPath  = "data/change-log.json"
)

// RemoteLocation identifies the two remote documents.
type RemoteLocation struct {
	Owner    string `yaml:"owner" json:"owner"`
	Repo     string `yaml:"repo" json:"repo"`
	Branch   string `yaml:"branch,omitempty" json:"branch,omitempty"`
	DataPath string `yaml:"dataPath,omitempty" json:"dataPath,omitempty"`
	LogPath  string `yaml:"logPath,omitempty" json:"logPath,omitempty"`
}

// WithDefaults fills the document paths when they are empty.
func (l RemoteLocation) WithDefaults() RemoteLocation {
	if l.DataPath == "" {
		l.DataPath = DefaultDataPath
	}
	if l.LogPath == "" {
		l.LogPath = DefaultLogPath
	}
	return l
}

// Validate checks that the location can be addressed.
func (l RemoteLocation) Validate() error {
	switch {
	case strings.TrimSpace(l.Owner) == "":
		return fmt.Errorf("%w: owner is required", ErrNotConfigured)
	case strings.TrimSpace(l.Repo) == "":
		return fmt.Errorf("%w: repo is required", ErrNotConfigured)
	case strings.Contains(l.Owner, "/") || strings.Contains(l.Repo, "/"):
		return fmt.Errorf("%w: owner and repo must not contain '/'", ErrNotConfigured)
	}
	l = l.WithDefaults()
	if l.DataPath == l.LogPath {
		return fmt.Errorf("%w: data and log paths must differ", ErrNotConfigured)
	}
	return nil
}

func (l RemoteLocation) String() string {
	s := l.Owner + "/" + l.Repo
	if l.Branch != "" {
		s += "@" + l.Branch
	}
	return s
}

// RemoteFile is a document as read from the store.
type RemoteFile struct {
	Path    string
	Content []byte
	Token   string
}

// RemoteFileHandle is the last-known revision of a remote document.
type RemoteFileHandle struct {
	Path  string `json:"path"`
	Token string `json:"token"`
}

// RemoteStore is a path-addressed document store guarded by conflict tokens.
//
// Fetch returns an error matching ErrNotFound when the path does not exist.
// Put with an empty token creates the document and fails with ErrConflict
// if it already exists; a non-empty token must match the current revision.
type RemoteStore interface {
	Fetch(ctx context.Context, path string) (RemoteFile, error)
	Put(ctx context.Context, path string, content []byte, token, message string) (string, error)
	// Ping checks that the location itself exists.
	Ping(ctx context.Context) error
}

// Connector builds a RemoteStore for a location. It performs no I/O.
type Connector interface {
	Connect(loc RemoteLocation, credential string) (RemoteStore, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(loc RemoteLocation, credential string) (RemoteStore, error)

// Connect implements Connector.
func (f ConnectorFunc) Connect(loc RemoteLocation, credential string) (RemoteStore, error) {
	return f(loc, credential)
}
