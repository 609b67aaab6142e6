package fs

import (
	"os"
	"time"

	"github.com/aretw0/introspection"
)

// WorkspaceState exposes internal state for observability.
type WorkspaceState struct {
	Root          string     `json:"root"`
	SystemDir     string     `json:"system_dir"`
	Handles       int        `json:"handles"`
	WatcherActive bool       `json:"watcher_active"`
	LastSave      *time.Time `json:"last_save,omitempty"`
	LastPush      *time.Time `json:"last_push,omitempty"`
	LastPull      *time.Time `json:"last_pull,omitempty"`
}

// State implements introspection.Introspectable.
func (w *Workspace) State() any {
	w.mu.RLock()
	defer w.mu.RUnlock()

	lastSave := w.lastSave
	if lastSave.IsZero() {
		// Saved by an earlier process.
		if info, err := os.Stat(w.path(LedgerFile)); err == nil {
			lastSave = info.ModTime()
		}
	}
	lastPush, lastPull := w.cache.Times()
	return WorkspaceState{
		Root:          w.Root,
		SystemDir:     w.systemDir,
		Handles:       w.cache.Len(),
		WatcherActive: w.watcherActive,
		LastSave:      timePtr(lastSave),
		LastPush:      timePtr(lastPush),
		LastPull:      timePtr(lastPull),
	}
}

// ComponentType implements introspection.Component.
func (w *Workspace) ComponentType() string {
	return "workspace"
}

// StoreState describes a directory-backed remote store.
type StoreState struct {
	Dir       string     `json:"dir"`
	Location  string     `json:"location"`
	Commit    bool       `json:"commit"`
	Writes    int        `json:"writes"`
	LastWrite *time.Time `json:"last_write,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreState{
		Dir:       s.dir,
		Location:  s.loc.String(),
		Commit:    s.commit,
		Writes:    s.writes,
		LastWrite: timePtr(s.lastWrite),
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "fs-store"
}

var _ introspection.Introspectable = (*Workspace)(nil)
var _ introspection.Component = (*Workspace)(nil)
var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
