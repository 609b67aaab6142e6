package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/sitecost/pkg/core"
)

// syncRecord is the persisted sync bookkeeping of a workspace.
type syncRecord struct {
	Version  int               `json:"version"`
	Location string            `json:"location,omitempty"`
	Handles  map[string]string `json:"handles"` // remote path -> token
	LastPush time.Time         `json:"lastPush,omitzero"`
	LastPull time.Time         `json:"lastPull,omitzero"`
	Synced   string            `json:"synced,omitempty"` // ledger digest at the last successful sync
}

// syncCache loads and saves sync.json. A missing or corrupted file is
// treated as empty so the workspace can self-heal.
type syncCache struct {
	Path   string
	mu     sync.RWMutex
	record syncRecord
	dirty  bool
}

func newSyncCache(path string) *syncCache {
	return &syncCache{
		Path:   path,
		record: syncRecord{Version: 1, Handles: make(map[string]string)},
	}
}

// Load reads the cache from disk.
func (c *syncCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read sync state: %w", err)
	}

	var rec syncRecord
	if err := json.Unmarshal(data, &rec); err != nil || rec.Handles == nil {
		// Corrupted: start over. The next pull rebuilds the handles.
		c.record = syncRecord{Version: 1, Handles: make(map[string]string)}
		c.dirty = true
		return nil
	}
	c.record = rec
	c.dirty = false
	return nil
}

// Save persists the cache if it changed.
func (c *syncCache) Save() error {
	c.mu.RLock()
	if !c.dirty {
		c.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(c.record, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := writeFileAtomic(c.Path, data, 0644); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}

// Handles returns the stored handles for location, sorted by path. Handles
// recorded for another location are ignored.
func (c *syncCache) Handles(location string) []core.RemoteFileHandle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.record.Location != location {
		return nil
	}
	out := make([]core.RemoteFileHandle, 0, len(c.record.Handles))
	for path, token := range c.record.Handles {
		out = append(out, core.RemoteFileHandle{Path: path, Token: token})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Set replaces the bookkeeping for location.
func (c *syncCache) Set(location string, handles []core.RemoteFileHandle, lastPush, lastPull time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record.Location = location
	c.record.Handles = make(map[string]string, len(handles))
	for _, h := range handles {
		c.record.Handles[h.Path] = h.Token
	}
	c.record.LastPush = lastPush
	c.record.LastPull = lastPull
	c.dirty = true
}

// MarkSynced records the ledger digest of a successful sync.
func (c *syncCache) MarkSynced(digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.record.Synced != digest {
		c.record.Synced = digest
		c.dirty = true
	}
}

// Synced returns the ledger digest of the last successful sync.
func (c *syncCache) Synced() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record.Synced
}

// Times returns the last push and pull times.
func (c *syncCache) Times() (lastPush, lastPull time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record.LastPush, c.record.LastPull
}

// Len returns the number of stored handles.
func (c *syncCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.record.Handles)
}
