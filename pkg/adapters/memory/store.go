// Package memory implements an in-process remote document store. It is
// used by tests and dry runs and follows the same token rules as the
// GitHub contents API.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/sitecost/pkg/core"
)

type repoKey struct{ owner, repo string }

// Server holds any number of repositories. Every Store connected to the
// same Server sees the same documents.
type Server struct {
	mu         sync.Mutex
	repos      map[repoKey]map[string][]byte
	credential string
	failure    error
	writes     int
}

// NewServer returns an empty server.
func NewServer() *Server {
	return &Server{repos: make(map[repoKey]map[string][]byte)}
}

// CreateRepo makes a repository addressable.
func (s *Server) CreateRepo(owner, repo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := repoKey{owner, repo}
	if _, ok := s.repos[k]; !ok {
		s.repos[k] = make(map[string][]byte)
	}
}

// RequireCredential makes every request without this credential fail
// as unauthorized.
func (s *Server) RequireCredential(credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
}

// FailWith makes every request fail with err until called with nil.
func (s *Server) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Write stores content directly, bypassing token checks. It simulates a
// concurrent writer and returns the new token.
func (s *Server) Write(owner, repo, path string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := repoKey{owner, repo}
	if _, ok := s.repos[k]; !ok {
		s.repos[k] = make(map[string][]byte)
	}
	s.repos[k][path] = append([]byte(nil), content...)
	return core.ContentToken(content)
}

// Read returns the stored content of a document.
func (s *Server) Read(owner, repo, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.repos[repoKey{owner, repo}]
	if !ok {
		return nil, false
	}
	content, ok := docs[path]
	return append([]byte(nil), content...), ok
}

// Writes counts successful Put calls.
func (s *Server) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Connect implements core.Connector.
func (s *Server) Connect(loc core.RemoteLocation, credential string) (core.RemoteStore, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return &Store{server: s, key: repoKey{loc.Owner, loc.Repo}, credential: credential}, nil
}

var _ core.Connector = (*Server)(nil)

// Store is a core.RemoteStore bound to one repository of a Server.
type Store struct {
	server     *Server
	key        repoKey
	credential string
}

// check must be called with the server lock held.
func (st *Store) check(op, path string) (map[string][]byte, error) {
	s := st.server
	if s.failure != nil {
		return nil, core.NewSyncError(op, path, core.ErrTransport, s.failure)
	}
	if s.credential != "" && st.credential != s.credential {
		return nil, core.NewSyncError(op, path, core.ErrUnauthorized, nil)
	}
	docs, ok := s.repos[st.key]
	if !ok {
		return nil, core.NewSyncError(op, path, core.ErrNotFound, fmt.Errorf("repository %s/%s", st.key.owner, st.key.repo))
	}
	return docs, nil
}

// Fetch implements core.RemoteStore.
func (st *Store) Fetch(ctx context.Context, path string) (core.RemoteFile, error) {
	st.server.mu.Lock()
	defer st.server.mu.Unlock()

	docs, err := st.check("fetch", path)
	if err != nil {
		return core.RemoteFile{}, err
	}
	content, ok := docs[path]
	if !ok {
		return core.RemoteFile{}, core.NewSyncError("fetch", path, core.ErrNotFound, nil)
	}
	return core.RemoteFile{
		Path:    path,
		Content: append([]byte(nil), content...),
		Token:   core.ContentToken(content),
	}, nil
}

// Put implements core.RemoteStore.
func (st *Store) Put(ctx context.Context, path string, content []byte, token, message string) (string, error) {
	st.server.mu.Lock()
	defer st.server.mu.Unlock()

	docs, err := st.check("put", path)
	if err != nil {
		return "", err
	}
	current := ""
	if existing, ok := docs[path]; ok {
		current = core.ContentToken(existing)
	}
	if current != token {
		return "", &core.ConflictError{Path: path, ExpectedToken: token, CurrentToken: current}
	}
	docs[path] = append([]byte(nil), content...)
	st.server.writes++
	return core.ContentToken(content), nil
}

// Ping implements core.RemoteStore.
func (st *Store) Ping(ctx context.Context) error {
	st.server.mu.Lock()
	defer st.server.mu.Unlock()
	_, err := st.check("ping", "")
	return err
}
