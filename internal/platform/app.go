// Package platform wires the workspace, the ledger, the sync coordinator,
// the auth gate and the scheduler into one App.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/sitecost/internal/config"
	"github.com/aretw0/sitecost/pkg/adapters/fs"
	"github.com/aretw0/sitecost/pkg/adapters/github"
	lifecycleadapter "github.com/aretw0/sitecost/pkg/adapters/lifecycle"
	"github.com/aretw0/sitecost/pkg/adapters/memory"
	"github.com/aretw0/sitecost/pkg/auth"
	"github.com/aretw0/sitecost/pkg/coordinator"
	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/scheduler"
	"github.com/aretw0/sitecost/pkg/transfer"
)

// ErrAuthRequired is returned by Authorize when no valid session exists
// and no secret was supplied.
var ErrAuthRequired = errors.New("authorization required")

// App is the explicit application context. Every component is reachable
// from it; nothing is global.
type App struct {
	Workspace   *fs.Workspace
	Ledger      *core.Ledger
	Service     *core.Service
	Coordinator *coordinator.Coordinator
	Gate        *auth.Gate

	logger    *slog.Logger
	now       func() time.Time
	connector core.Connector

	mu        sync.Mutex
	settings  core.Settings
	scheduler *scheduler.Scheduler
}

// Open loads the workspace rooted at dir and builds the App around it.
func Open(dir string, opts ...Option) (*App, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	wsOpts := []fs.WorkspaceOption{fs.WithLogger(o.logger), fs.WithSystemDir(o.systemDir), fs.WithClock(o.now)}
	var (
		ws  *fs.Workspace
		err error
	)
	if o.autoInit {
		ws, err = fs.InitWorkspace(dir, wsOpts...)
	} else {
		ws, err = fs.OpenWorkspace(dir, wsOpts...)
	}
	if err != nil {
		return nil, err
	}

	settings, err := ws.LoadSettings()
	if err != nil {
		return nil, err
	}
	if o.useEnv {
		cfg, err := config.Load(o.envFiles...)
		if err != nil {
			return nil, err
		}
		if !cfg.Empty() {
			o.logger.Debug("environment overrides applied")
		}
		settings = cfg.Apply(settings)
	}
	if o.adapter != "" {
		settings.Adapter = o.adapter
	}

	ledger := core.NewLedger()
	if err := ws.LoadLedger(ledger); err != nil {
		return nil, err
	}

	connector, err := o.connectorFor(settings)
	if err != nil {
		return nil, err
	}

	app := &App{
		Workspace: ws,
		Ledger:    ledger,
		Service: core.NewService(ledger,
			core.WithServiceLogger(o.logger),
			core.WithClock(o.now),
			core.WithCurrency(settings.Currency),
		),
		Coordinator: coordinator.New(connector, ledger,
			coordinator.WithLogger(o.logger),
			coordinator.WithClock(o.now),
		),
		Gate: auth.NewGate(settings.Auth,
			auth.WithClock(o.now),
			auth.WithLogger(o.logger),
		),
		logger:    o.logger,
		now:       o.now,
		connector: connector,
		settings:  settings,
	}

	if settings.RemoteConfigured() {
		if err := app.Coordinator.Configure(settings.Remote, settings.Credential); err != nil {
			return nil, err
		}
		app.restoreSync()
	}
	return app, nil
}

func (o *options) connectorFor(s core.Settings) (core.Connector, error) {
	if o.connector != nil {
		return o.connector, nil
	}
	switch s.Adapter {
	case AdapterGitHub, "":
		ghOpts := []github.Option{github.WithBaseURL(s.APIURL), github.WithLogger(o.logger)}
		if o.httpClient != nil {
			ghOpts = append(ghOpts, github.WithHTTPClient(o.httpClient))
		}
		return github.NewConnector(ghOpts...), nil
	case AdapterFS:
		root := strings.TrimPrefix(s.APIURL, "file://")
		if root == "" || strings.Contains(root, "://") {
			return nil, fmt.Errorf("%w: the fs adapter needs apiUrl set to a directory, got %q", core.ErrNotConfigured, s.APIURL)
		}
		return fs.NewConnector(root, fs.WithStoreLogger(o.logger), fs.WithCommit(o.commit)), nil
	case AdapterMemory:
		return memory.NewServer(), nil
	default:
		return nil, fmt.Errorf("unknown adapter: %s", s.Adapter)
	}
}

// restoreSync hands the persisted token chain back to the coordinator.
func (a *App) restoreSync() {
	loc, ok := a.Coordinator.Location()
	if !ok {
		return
	}
	a.Coordinator.RestoreHandles(a.Workspace.Handles(loc.String()))
	a.Coordinator.RestoreTimes(a.Workspace.SyncTimes())
}

// Settings returns the resolved settings.
func (a *App) Settings() core.Settings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// SaveSettings persists s and applies it to the running components.
func (a *App) SaveSettings(s core.Settings) error {
	s = s.Normalize()
	if err := a.Workspace.SaveSettings(s); err != nil {
		return err
	}
	a.mu.Lock()
	a.settings = s
	a.mu.Unlock()
	return nil
}

// Configure stores new remote coordinates and credential, then points
// the coordinator at them. No network I/O happens.
func (a *App) Configure(loc core.RemoteLocation, credential string) error {
	loc = loc.WithDefaults()
	if err := a.Coordinator.Configure(loc, credential); err != nil {
		return err
	}
	s := a.Settings()
	s.Remote = loc
	s.Credential = credential
	if err := a.SaveSettings(s); err != nil {
		return err
	}
	a.restoreSync()
	return nil
}

// TestConnection checks that the configured remote is reachable.
func (a *App) TestConnection(ctx context.Context) error {
	return a.Coordinator.TestReachability(ctx)
}

// Save writes the ledger to the workspace.
func (a *App) Save() error {
	return a.Workspace.SaveLedger(a.Ledger.Snapshot())
}

// Pull replaces the local ledger with the remote documents and persists
// the result.
func (a *App) Pull(ctx context.Context) (core.Snapshot, error) {
	snap, err := a.Coordinator.Pull(ctx)
	if err != nil {
		return core.Snapshot{}, err
	}
	if err := a.Save(); err != nil {
		return snap, err
	}
	if err := a.persistSync(); err != nil {
		return snap, err
	}
	// An absent remote document leaves its local side in place, and any
	// edits there are still unpushed.
	if digest := snap.Digest(); a.Ledger.Snapshot().Digest() == digest {
		return snap, a.Workspace.MarkSynced(digest)
	}
	return snap, nil
}

// Push writes the local ledger to the remote. Handles are persisted even
// when the push fails part way, so the token chain stays accurate.
func (a *App) Push(ctx context.Context, opts ...coordinator.PushOption) error {
	digest := a.Ledger.Snapshot().Digest()
	err := a.Coordinator.Push(ctx, opts...)
	if perr := a.persistSync(); perr != nil {
		return errors.Join(err, perr)
	}
	if err != nil {
		return err
	}
	return a.Workspace.MarkSynced(digest)
}

// Unsynced reports whether the ledger holds changes that neither a push
// nor a pull has reconciled with the remote. A Pull would discard them.
func (a *App) Unsynced() bool {
	snap := a.Ledger.Snapshot()
	synced := a.Workspace.SyncedDigest()
	if synced == "" {
		return !snap.Empty()
	}
	return snap.Digest() != synced
}

func (a *App) persistSync() error {
	loc, ok := a.Coordinator.Location()
	if !ok {
		return nil
	}
	return a.Workspace.RecordSync(loc.String(), a.Coordinator.Handles(), a.Coordinator.LastPush(), a.Coordinator.LastPull())
}

// AutoPush pushes the ledger when auto-sync is on and a remote is
// configured. pushed reports whether a push was attempted.
func (a *App) AutoPush(ctx context.Context) (pushed bool, err error) {
	s := a.Settings()
	if !s.AutoSync || !s.RemoteConfigured() {
		return false, nil
	}
	return true, a.Push(ctx)
}

// Export returns the ledger as an export bundle.
func (a *App) Export() transfer.Bundle {
	return transfer.FromSnapshot(a.Ledger.Snapshot(), a.now())
}

// Import applies b to the ledger and saves it.
func (a *App) Import(b transfer.Bundle) error {
	if err := transfer.Apply(a.Ledger, b); err != nil {
		return err
	}
	return a.Save()
}

// Authorize returns a valid session for action. A stored, unexpired
// session is reused; otherwise secret is checked through the two-step
// challenge and the new session is stored. Without a password set,
// access is granted with an empty session.
func (a *App) Authorize(action, secret string) (auth.Session, error) {
	if !a.Gate.HasPassword() {
		return auth.Session{}, nil
	}
	if session, ok, err := a.Workspace.LoadSession(); err != nil {
		return auth.Session{}, err
	} else if ok && session.Valid(a.now()) {
		return session, nil
	}
	if secret == "" {
		return auth.Session{}, ErrAuthRequired
	}

	challenge := a.Gate.RequestAuthorization(action)
	session, err := a.Gate.SubmitCredential(challenge, secret)
	if err != nil {
		return auth.Session{}, err
	}
	if err := a.Workspace.SaveSession(session); err != nil {
		return auth.Session{}, err
	}
	return session, nil
}

// SessionValid reports whether a stored session is still usable.
func (a *App) SessionValid() bool {
	session, ok, err := a.Workspace.LoadSession()
	return err == nil && ok && session.Valid(a.now())
}

// Logout drops the stored session.
func (a *App) Logout() error {
	return a.Workspace.ClearSession()
}

// SetPassword sets the first password, or changes it when one exists,
// and persists the auth settings.
func (a *App) SetPassword(current, password, confirm string) error {
	var err error
	if a.Gate.HasPassword() {
		err = a.Gate.ChangePassword(current, password, confirm)
	} else {
		err = a.Gate.SetPassword(password, confirm)
	}
	if err != nil {
		return err
	}
	s := a.Settings()
	s.Auth = a.Gate.Settings()
	if err := a.SaveSettings(s); err != nil {
		return err
	}
	return a.Workspace.ClearSession()
}

// AutoSync pushes on every interval tick and whenever another process
// rewrites the workspace ledger, until ctx is done. Before each push the
// ledger and the token chain are reloaded from the workspace.
func (a *App) AutoSync(ctx context.Context) error {
	s := a.Settings()
	if !s.RemoteConfigured() {
		return core.ErrNotConfigured
	}

	sched := scheduler.New(s.SyncInterval, a.syncFromWorkspace, scheduler.WithLogger(a.logger))
	a.mu.Lock()
	a.scheduler = sched
	a.mu.Unlock()

	handle := sched.Start(ctx)
	defer handle.Stop()

	changes, err := a.Workspace.Watch(ctx, fs.LedgerFile)
	if err != nil {
		return err
	}
	source := lifecycleadapter.NewSource(changes)
	if err := source.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("auto-sync started", "interval", s.SyncInterval, "location", s.Remote.String())
	handle.Trigger()
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("auto-sync stopped")
			return nil
		case <-handle.Done():
			return nil
		case e, ok := <-source.Events():
			if !ok {
				<-ctx.Done()
				return nil
			}
			a.logger.Debug("workspace event", "event", e.String())
			handle.Trigger()
		}
	}
}

func (a *App) syncFromWorkspace(ctx context.Context) error {
	if err := a.Workspace.Reload(); err != nil {
		return err
	}
	if err := a.Workspace.LoadLedger(a.Ledger); err != nil {
		return err
	}
	a.restoreSync()
	return a.Push(ctx)
}

// Scheduler returns the auto-sync scheduler, nil until AutoSync runs.
func (a *App) Scheduler() *scheduler.Scheduler {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scheduler
}
