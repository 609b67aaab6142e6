// Package coordinator reconciles the local ledger with a remote document
// store. It never overwrites a remote revision it has not seen, and it
// reports its connectivity as a tri-state SyncState.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/typed"
)

// Commit messages used for remote writes.
const (
	DataMessage = "Update construction data"
	LogMessage  = "Update change log"
)

// Coordinator owns pull and push of the data and change log documents.
// Pull and Push never run concurrently: an overlapping call fails fast
// with core.ErrBusy.
type Coordinator struct {
	connector core.Connector
	ledger    *core.Ledger
	logger    *slog.Logger
	now       func() time.Time

	busy  atomic.Bool
	state atomic.Int32

	mu         sync.RWMutex
	loc        core.RemoteLocation
	credential string
	store      core.RemoteStore
	handles    map[string]string // path -> last seen token ("" = seen absent)
	lastPush   time.Time
	lastPull   time.Time
	lastErr    error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for the coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for last push/pull times.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an unconfigured coordinator in the offline state.
func New(connector core.Connector, ledger *core.Ledger, opts ...Option) *Coordinator {
	c := &Coordinator{
		connector: connector,
		ledger:    ledger,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		handles:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Store(int32(core.StateOffline))
	return c
}

// Configure sets the remote coordinates and credential used by later
// calls. It performs no I/O. Known handles are dropped when the
// location changes.
func (c *Coordinator) Configure(loc core.RemoteLocation, credential string) error {
	loc = loc.WithDefaults()
	if err := loc.Validate(); err != nil {
		return err
	}
	store, err := c.connector.Connect(loc, credential)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", loc, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loc != loc {
		c.handles = make(map[string]string)
	}
	c.loc = loc
	c.credential = credential
	c.store = store
	c.logger.Debug("remote configured", "location", loc.String(), "data", loc.DataPath, "log", loc.LogPath)
	return nil
}

// Location returns the configured location and whether one is set.
func (c *Coordinator) Location() (core.RemoteLocation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loc, c.store != nil
}

func (c *Coordinator) target() (core.RemoteLocation, core.RemoteStore, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.store == nil {
		return core.RemoteLocation{}, nil, core.ErrNotConfigured
	}
	return c.loc, c.store, nil
}

// begin claims the busy flag and enters the syncing state.
func (c *Coordinator) begin() (core.RemoteLocation, core.RemoteStore, func(error), error) {
	if !c.busy.CompareAndSwap(false, true) {
		return core.RemoteLocation{}, nil, nil, core.ErrBusy
	}
	loc, store, err := c.target()
	if err != nil {
		c.busy.Store(false)
		return core.RemoteLocation{}, nil, nil, err
	}
	c.state.Store(int32(core.StateSyncing))

	finish := func(err error) {
		next := core.StateOnline
		if err != nil {
			next = core.StateOffline
		}
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.state.Store(int32(next))
		c.busy.Store(false)
	}
	return loc, store, finish, nil
}

// Pull fetches both remote documents and replaces the matching local
// structures wholesale. A document that does not exist yet is returned
// empty and leaves its local counterpart untouched. On any failure the
// ledger is not modified.
func (c *Coordinator) Pull(ctx context.Context) (snap core.Snapshot, err error) {
	loc, store, finish, err := c.begin()
	if err != nil {
		return core.Snapshot{}, err
	}
	defer func() { finish(err) }()

	dataDoc, err := typed.NewRepository[core.Dataset](store).Get(ctx, loc.DataPath)
	dataFound, err := absentOK(err)
	if err != nil {
		return core.Snapshot{}, c.fail("pull", loc.DataPath, err)
	}
	logDoc, err := typed.NewRepository[core.ChangeLog](store).Get(ctx, loc.LogPath)
	logFound, err := absentOK(err)
	if err != nil {
		return core.Snapshot{}, c.fail("pull", loc.LogPath, err)
	}

	snap = core.Snapshot{Entries: []core.Entry{}, ChangeLog: []core.ChangeLogRecord{}}
	handles := map[string]string{loc.DataPath: "", loc.LogPath: ""}
	if dataFound {
		snap.Entries = dataDoc.Data.Entries()
		handles[loc.DataPath] = dataDoc.Token
		if err := c.ledger.ReplaceEntries(snap.Entries); err != nil {
			return core.Snapshot{}, c.fail("pull", loc.DataPath, core.NewSyncError("pull", loc.DataPath, core.ErrMalformed, err))
		}
	}
	if logFound {
		snap.ChangeLog = logDoc.Data.Records()
		handles[loc.LogPath] = logDoc.Token
		c.ledger.ReplaceChangeLog(snap.ChangeLog)
	}

	c.mu.Lock()
	maps.Copy(c.handles, handles)
	c.lastPull = c.now()
	c.mu.Unlock()

	c.logger.Info("pull completed",
		"location", loc.String(),
		"entries", len(snap.Entries),
		"records", len(snap.ChangeLog),
		"data_found", dataFound,
		"log_found", logFound,
	)
	return snap, nil
}

// PushOption tunes a single Push call.
type PushOption func(*pushOptions)

type pushOptions struct {
	force bool
}

// Force adopts whatever revision the remote currently holds instead of
// requiring it to match the last one this coordinator saw.
func Force() PushOption {
	return func(o *pushOptions) { o.force = true }
}

// Push writes the data document and then the change log document.
// Before each write the current remote token is fetched; if it differs
// from the last token this coordinator saw (or the document appeared
// without being pulled), Push fails with a conflict and writes nothing
// for that document. Push never retries. A failure on the change log
// after the data document was written is reported, not rolled back.
func (c *Coordinator) Push(ctx context.Context, opts ...PushOption) (err error) {
	var o pushOptions
	for _, opt := range opts {
		opt(&o)
	}

	loc, store, finish, err := c.begin()
	if err != nil {
		return err
	}
	defer func() { finish(err) }()

	snap := c.ledger.Snapshot()
	data, err := core.NewDataset(snap.Entries...)
	if err != nil {
		return c.fail("push", loc.DataPath, err)
	}

	// Keep the layout of the document being replaced, so a per-floor
	// document stays readable by the browser tracker.
	keepLayout := func(d *core.Dataset, current []byte) {
		d.SetLayout(core.DetectLayout(current))
	}
	if err := pushDocument(ctx, c, typed.NewRepository[core.Dataset](store), loc.DataPath, data, keepLayout, DataMessage, o.force); err != nil {
		return err
	}
	log := core.NewChangeLog(snap.ChangeLog...)
	if err := pushDocument(ctx, c, typed.NewRepository[core.ChangeLog](store), loc.LogPath, log, nil, LogMessage, o.force); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastPush = c.now()
	c.mu.Unlock()

	c.logger.Info("push completed", "location", loc.String(), "entries", len(snap.Entries), "records", len(snap.ChangeLog))
	return nil
}

func pushDocument[T any](ctx context.Context, c *Coordinator, repo *typed.Repository[T], path string, body *T, adapt func(*T, []byte), message string, force bool) error {
	head, found, err := repo.Head(ctx, path)
	if err != nil {
		return c.fail("push", path, err)
	}
	current := head.Token
	if found && adapt != nil {
		adapt(body, head.Content)
	}

	if !force {
		c.mu.RLock()
		known, seen := c.handles[path]
		c.mu.RUnlock()
		if (seen && known != current) || (!seen && current != "") {
			return c.fail("push", path, &core.ConflictError{Path: path, ExpectedToken: known, CurrentToken: current})
		}
	}

	doc := &typed.Document[T]{Path: path, Token: current, Data: *body}
	if err := repo.Save(ctx, doc, message); err != nil {
		return c.fail("push", path, err)
	}

	c.mu.Lock()
	c.handles[path] = doc.Token
	c.mu.Unlock()
	c.logger.Debug("document written", "path", path, "token", doc.Token)
	return nil
}

// TestReachability checks that the configured location exists without
// transferring any document. It does not change the SyncState.
func (c *Coordinator) TestReachability(ctx context.Context) error {
	loc, store, err := c.target()
	if err != nil {
		return err
	}
	if err := store.Ping(ctx); err != nil {
		return core.NewSyncError("ping", loc.String(), core.ErrTransport, err)
	}
	return nil
}

// fail wraps err as a SyncError and logs it. A SyncError from a lower
// layer is relabelled with op, keeping its kind and cause.
func (c *Coordinator) fail(op, path string, err error) error {
	var se *core.SyncError
	switch {
	case errors.As(err, &se) && se.Op == op:
	case errors.As(err, &se):
		se = &core.SyncError{Op: op, Path: path, Kind: se.Kind, Err: se.Err}
	default:
		se = core.NewSyncError(op, path, core.ErrTransport, err)
	}
	c.logger.Warn("sync failed", "op", op, "path", path, "error", se)
	return se
}

func absentOK(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if core.KindOf(err) == core.ErrNotFound {
		return false, nil
	}
	return false, err
}

// Status returns the current SyncState.
func (c *Coordinator) Status() core.SyncState {
	return core.SyncState(c.state.Load())
}

// Busy reports whether a pull or push is in flight.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

// LastPush returns the time of the last successful push.
func (c *Coordinator) LastPush() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPush
}

// LastPull returns the time of the last successful pull.
func (c *Coordinator) LastPull() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPull
}

// LastError returns the error of the last pull or push, if any.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Handles returns the known remote revisions, sorted by path.
func (c *Coordinator) Handles() []core.RemoteFileHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]core.RemoteFileHandle, 0, len(c.handles))
	for _, path := range slices.Sorted(maps.Keys(c.handles)) {
		out = append(out, core.RemoteFileHandle{Path: path, Token: c.handles[path]})
	}
	return out
}

// RestoreHandles seeds the known revisions, e.g. from a previous process.
func (c *Coordinator) RestoreHandles(handles []core.RemoteFileHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles = make(map[string]string, len(handles))
	for _, h := range handles {
		c.handles[h.Path] = h.Token
	}
}

// RestoreTimes seeds the last push and pull times.
func (c *Coordinator) RestoreTimes(lastPush, lastPull time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPush, c.lastPull = lastPush, lastPull
}
