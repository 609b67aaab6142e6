package fs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/git"
)

// Store is a core.RemoteStore over a directory tree laid out as
// <root>/<owner>/<repo>/<path>. Tokens are git blob hashes, so a store
// directory can be pushed to GitHub and keep the same token chain.
type Store struct {
	dir    string
	loc    core.RemoteLocation
	git    *git.Client
	commit bool
	logger *slog.Logger

	mu        sync.Mutex
	writes    int
	lastWrite time.Time
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	logger      *slog.Logger
	commit      bool
	lockTimeout time.Duration
}

// WithStoreLogger sets the logger used by the store and its git client.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCommit makes every successful Put commit the document, when the
// repository directory is a git work tree.
func WithCommit(enabled bool) StoreOption {
	return func(o *storeOptions) {
		o.commit = enabled
	}
}

// WithLockTimeout bounds how long a Put waits for the lock file.
func WithLockTimeout(d time.Duration) StoreOption {
	return func(o *storeOptions) {
		o.lockTimeout = d
	}
}

func buildStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		lockTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewStore returns a store for loc below root. It performs no I/O.
func NewStore(root string, loc core.RemoteLocation, opts ...StoreOption) (*Store, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if !filepath.IsLocal(loc.Owner) || !filepath.IsLocal(loc.Repo) {
		return nil, fmt.Errorf("%w: invalid repository name %s", core.ErrNotConfigured, loc)
	}
	o := buildStoreOptions(opts)
	dir := filepath.Join(root, loc.Owner, loc.Repo)

	client := git.NewClient(dir, o.logger)
	client.LockTimeout = o.lockTimeout

	return &Store{
		dir:    dir,
		loc:    loc,
		git:    client,
		commit: o.commit,
		logger: o.logger,
	}, nil
}

// NewConnector returns a core.Connector producing stores below root. The
// credential is ignored: access is governed by file permissions.
func NewConnector(root string, opts ...StoreOption) core.Connector {
	return core.ConnectorFunc(func(loc core.RemoteLocation, _ string) (core.RemoteStore, error) {
		return NewStore(root, loc, opts...)
	})
}

// CreateRepo creates the repository directory for loc below root.
func CreateRepo(root string, loc core.RemoteLocation) (string, error) {
	dir := filepath.Join(root, loc.Owner, loc.Repo)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create repository directory: %w", err)
	}
	return dir, nil
}

// Dir returns the repository directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) resolve(op, path string) (string, error) {
	clean := filepath.FromSlash(path)
	if path == "" || !filepath.IsLocal(clean) {
		return "", core.NewSyncError(op, path, core.ErrMalformed, fmt.Errorf("path escapes repository"))
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *Store) checkRepo(op, path string) error {
	info, err := os.Stat(s.dir)
	if os.IsNotExist(err) {
		return core.NewSyncError(op, path, core.ErrNotFound, fmt.Errorf("repository %s", s.loc))
	}
	if err != nil {
		return core.NewSyncError(op, path, core.ErrTransport, err)
	}
	if !info.IsDir() {
		return core.NewSyncError(op, path, core.ErrMalformed, fmt.Errorf("%s is not a directory", s.dir))
	}
	return nil
}

// Fetch implements core.RemoteStore.
func (s *Store) Fetch(ctx context.Context, path string) (core.RemoteFile, error) {
	if err := ctx.Err(); err != nil {
		return core.RemoteFile{}, core.NewSyncError("fetch", path, core.ErrTransport, err)
	}
	if err := s.checkRepo("fetch", path); err != nil {
		return core.RemoteFile{}, err
	}
	full, err := s.resolve("fetch", path)
	if err != nil {
		return core.RemoteFile{}, err
	}
	content, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return core.RemoteFile{}, core.NewSyncError("fetch", path, core.ErrNotFound, nil)
	}
	if err != nil {
		return core.RemoteFile{}, core.NewSyncError("fetch", path, core.ErrTransport, err)
	}
	return core.RemoteFile{Path: path, Content: content, Token: core.ContentToken(content)}, nil
}

// Put implements core.RemoteStore. The token check and the write happen
// under the repository lock file, so concurrent processes cannot both win.
func (s *Store) Put(ctx context.Context, path string, content []byte, token, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", core.NewSyncError("put", path, core.ErrTransport, err)
	}
	if err := s.checkRepo("put", path); err != nil {
		return "", err
	}
	full, err := s.resolve("put", path)
	if err != nil {
		return "", err
	}

	unlock, err := s.git.Lock()
	if err != nil {
		return "", core.NewSyncError("put", path, core.ErrTransport, err)
	}
	defer unlock()

	current := ""
	if existing, err := os.ReadFile(full); err == nil {
		current = core.ContentToken(existing)
	} else if !os.IsNotExist(err) {
		return "", core.NewSyncError("put", path, core.ErrTransport, err)
	}
	if current != token {
		return "", &core.ConflictError{Path: path, ExpectedToken: token, CurrentToken: current}
	}

	if err := writeFileAtomic(full, content, 0644); err != nil {
		return "", core.NewSyncError("put", path, core.ErrTransport, err)
	}
	if s.commit {
		s.commitDocument(path, message)
	}

	s.mu.Lock()
	s.writes++
	s.lastWrite = time.Now()
	s.mu.Unlock()

	return core.ContentToken(content), nil
}

// commitDocument records the write in git. Failures are logged: the
// document itself is already stored.
func (s *Store) commitDocument(path, message string) {
	if !s.git.IsRepo() {
		s.logger.Debug("skipping commit, not a git repository", "dir", s.dir)
		return
	}
	if err := s.git.Add(filepath.FromSlash(path)); err != nil {
		s.logger.Warn("git add failed", "path", path, "error", err)
		return
	}
	if err := s.git.Commit(message); err != nil {
		s.logger.Warn("git commit failed", "path", path, "error", err)
	}
}

// Ping implements core.RemoteStore.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return core.NewSyncError("ping", "", core.ErrTransport, err)
	}
	return s.checkRepo("ping", "")
}

var _ core.RemoteStore = (*Store)(nil)
