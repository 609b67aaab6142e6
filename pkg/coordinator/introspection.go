package coordinator

import (
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/sitecost/pkg/core"
)

// CoordinatorState exposes internal state for observability.
type CoordinatorState struct {
	State      core.SyncState          `json:"state"`
	Configured bool                    `json:"configured"`
	Location   string                  `json:"location,omitempty"`
	Busy       bool                    `json:"busy"`
	LastPush   *time.Time              `json:"last_push,omitempty"`
	LastPull   *time.Time              `json:"last_pull,omitempty"`
	LastError  string                  `json:"last_error,omitempty"`
	Handles    []core.RemoteFileHandle `json:"handles,omitempty"`
}

// State implements introspection.Introspectable.
func (c *Coordinator) State() any {
	loc, configured := c.Location()
	s := CoordinatorState{
		State:      c.Status(),
		Configured: configured,
		Busy:       c.Busy(),
		Handles:    c.Handles(),
	}
	if configured {
		s.Location = loc.String()
	}
	if t := c.LastPush(); !t.IsZero() {
		s.LastPush = &t
	}
	if t := c.LastPull(); !t.IsZero() {
		s.LastPull = &t
	}
	if err := c.LastError(); err != nil {
		s.LastError = err.Error()
	}
	return s
}

// ComponentType implements introspection.Component.
func (c *Coordinator) ComponentType() string {
	return "sync-coordinator"
}

var _ introspection.Introspectable = (*Coordinator)(nil)
var _ introspection.Component = (*Coordinator)(nil)
