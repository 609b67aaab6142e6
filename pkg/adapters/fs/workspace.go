package fs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/sitecost/pkg/auth"
	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/transfer"
)

// DefaultSystemDir is the workspace directory created under the project root.
const DefaultSystemDir = ".sitecost"

// Files kept inside the system directory.
const (
	SettingsFile = "settings.yaml"
	SessionFile  = "session.json"
	LedgerFile   = "ledger.json"
	SyncFile     = "sync.json"
)

// ErrNoWorkspace is returned when the system directory does not exist.
var ErrNoWorkspace = errors.New("not a sitecost workspace")

// Workspace is the local durable cache of one project: settings, the
// password session, the last saved ledger and the remote handles.
type Workspace struct {
	Root      string
	systemDir string
	logger    *slog.Logger
	now       func() time.Time
	cache     *syncCache

	mu            sync.RWMutex
	watcherActive bool
	lastSave      time.Time
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithLogger sets the logger used by the workspace.
func WithLogger(logger *slog.Logger) WorkspaceOption {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithSystemDir overrides the name of the system directory.
func WithSystemDir(name string) WorkspaceOption {
	return func(w *Workspace) {
		if name != "" {
			w.systemDir = name
		}
	}
}

// WithClock overrides the time source used for export dates.
func WithClock(now func() time.Time) WorkspaceOption {
	return func(w *Workspace) {
		if now != nil {
			w.now = now
		}
	}
}

func newWorkspace(root string, opts ...WorkspaceOption) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	w := &Workspace{
		Root:      abs,
		systemDir: DefaultSystemDir,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.cache = newSyncCache(w.path(SyncFile))
	return w, nil
}

// InitWorkspace creates the system directory under root and writes
// default settings. Re-running it keeps existing files.
func InitWorkspace(root string, opts ...WorkspaceOption) (*Workspace, error) {
	w, err := newWorkspace(root, opts...)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(w.Dir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	if _, err := os.Stat(w.path(SettingsFile)); os.IsNotExist(err) {
		if err := w.SaveSettings(core.DefaultSettings()); err != nil {
			return nil, err
		}
	}
	if err := w.ensureIgnore(); err != nil {
		return nil, fmt.Errorf("failed to ensure .gitignore: %w", err)
	}
	if err := w.cache.Load(); err != nil {
		return nil, err
	}
	w.logger.Debug("workspace initialized", "root", w.Root)
	return w, nil
}

// OpenWorkspace opens an existing workspace.
func OpenWorkspace(root string, opts ...WorkspaceOption) (*Workspace, error) {
	w, err := newWorkspace(root, opts...)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(w.Dir())
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNoWorkspace, w.Root)
	}
	if err := w.cache.Load(); err != nil {
		return nil, err
	}
	return w, nil
}

// Dir returns the absolute path of the system directory.
func (w *Workspace) Dir() string {
	return filepath.Join(w.Root, w.systemDir)
}

func (w *Workspace) path(name string) string {
	return filepath.Join(w.Dir(), name)
}

// ensureIgnore keeps the system directory out of a surrounding git
// repository, since settings.yaml holds the access credential.
func (w *Workspace) ensureIgnore() error {
	if _, err := os.Stat(filepath.Join(w.Root, ".git")); err != nil {
		return nil
	}
	ignorePath := filepath.Join(w.Root, ".gitignore")
	entry := w.systemDir + "/"

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == entry {
			return nil
		}
	}

	f, err := os.OpenFile(ignorePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		if _, err := f.WriteString("\n"); err != nil {
			return err
		}
	}
	_, err = f.WriteString(entry + "\n")
	return err
}

// LoadSettings reads settings.yaml. Missing fields take their defaults.
func (w *Workspace) LoadSettings() (core.Settings, error) {
	settings := core.DefaultSettings()
	data, err := os.ReadFile(w.path(SettingsFile))
	if os.IsNotExist(err) {
		return settings, nil
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return core.Settings{}, fmt.Errorf("failed to parse %s: %w", SettingsFile, err)
	}
	return settings.Normalize(), nil
}

// SaveSettings writes settings.yaml, readable by the owner only.
func (w *Workspace) SaveSettings(s core.Settings) error {
	data, err := yaml.Marshal(s.Normalize())
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return writeFileAtomic(w.path(SettingsFile), data, 0600)
}

// LoadSession returns the stored session. ok is false when none exists.
func (w *Workspace) LoadSession() (session auth.Session, ok bool, err error) {
	data, err := os.ReadFile(w.path(SessionFile))
	if os.IsNotExist(err) {
		return auth.Session{}, false, nil
	}
	if err != nil {
		return auth.Session{}, false, fmt.Errorf("failed to read session: %w", err)
	}
	if err := json.Unmarshal(data, &session); err != nil {
		// Unreadable sessions are dropped; the user logs in again.
		w.logger.Warn("discarding unreadable session", "error", err)
		return auth.Session{}, false, nil
	}
	return session, true, nil
}

// SaveSession persists a granted session.
func (w *Workspace) SaveSession(s auth.Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(w.path(SessionFile), data, 0600)
}

// ClearSession removes the stored session.
func (w *Workspace) ClearSession() error {
	err := os.Remove(w.path(SessionFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// LoadLedger replaces the contents of ledger with ledger.json. A missing
// file leaves ledger untouched.
func (w *Workspace) LoadLedger(ledger *core.Ledger) error {
	data, err := os.ReadFile(w.path(LedgerFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}
	b, err := transfer.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", LedgerFile, err)
	}
	return transfer.Apply(ledger, b)
}

// SaveLedger writes snap to ledger.json in the export format.
func (w *Workspace) SaveLedger(snap core.Snapshot) error {
	data, err := transfer.Marshal(transfer.FromSnapshot(snap, w.now()))
	if err != nil {
		return err
	}
	if err := writeFileAtomic(w.path(LedgerFile), data, 0644); err != nil {
		return err
	}
	w.mu.Lock()
	w.lastSave = w.now()
	w.mu.Unlock()
	w.logger.Debug("ledger saved", "entries", len(snap.Entries), "records", len(snap.ChangeLog))
	return nil
}

// Handles returns the remote handles recorded for location.
func (w *Workspace) Handles(location string) []core.RemoteFileHandle {
	return w.cache.Handles(location)
}

// SyncTimes returns the last recorded push and pull times.
func (w *Workspace) SyncTimes() (lastPush, lastPull time.Time) {
	return w.cache.Times()
}

// RecordSync persists the handles and times of the last sync.
func (w *Workspace) RecordSync(location string, handles []core.RemoteFileHandle, lastPush, lastPull time.Time) error {
	w.cache.Set(location, handles, lastPush, lastPull)
	if err := w.cache.Save(); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

// MarkSynced persists the digest of the ledger as last synced.
func (w *Workspace) MarkSynced(digest string) error {
	w.cache.MarkSynced(digest)
	if err := w.cache.Save(); err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

// SyncedDigest returns the ledger digest recorded by MarkSynced, or "".
func (w *Workspace) SyncedDigest() string {
	return w.cache.Synced()
}

// Reload re-reads sync.json, picking up syncs made by other processes.
func (w *Workspace) Reload() error {
	return w.cache.Load()
}
