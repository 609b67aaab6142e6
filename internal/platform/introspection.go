package platform

import (
	"fmt"

	"github.com/aretw0/introspection"

	"github.com/aretw0/sitecost/pkg/adapters/fs"
	"github.com/aretw0/sitecost/pkg/coordinator"
	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/scheduler"
)

// AppState aggregates the state of every component of an App.
type AppState struct {
	Adapter     string                       `json:"adapter"`
	AutoSync    bool                         `json:"auto_sync"`
	Protected   bool                         `json:"protected"`
	Session     bool                         `json:"session"`
	Unsynced    bool                         `json:"unsynced"`
	Workspace   fs.WorkspaceState            `json:"workspace"`
	Ledger      core.ServiceState            `json:"ledger"`
	Coordinator coordinator.CoordinatorState `json:"coordinator"`
	Scheduler   *scheduler.Stats             `json:"scheduler,omitempty"`
}

// State implements introspection.Introspectable.
func (a *App) State() any {
	s := a.Settings()
	st := AppState{
		Adapter:     s.Adapter,
		AutoSync:    s.AutoSync,
		Protected:   a.Gate.HasPassword(),
		Session:     a.SessionValid(),
		Unsynced:    a.Unsynced(),
		Workspace:   a.Workspace.State().(fs.WorkspaceState),
		Ledger:      a.Service.State().(core.ServiceState),
		Coordinator: a.Coordinator.State().(coordinator.CoordinatorState),
	}
	if sched := a.Scheduler(); sched != nil {
		stats := sched.Stats()
		st.Scheduler = &stats
	}
	return st
}

// ComponentType implements introspection.Component.
func (a *App) ComponentType() string {
	return "app"
}

var _ introspection.Introspectable = (*App)(nil)
var _ introspection.Component = (*App)(nil)

// Node is one box of the topology diagram.
type Node struct {
	Name     string
	Status   string
	Metadata map[string]string
	Children []Node
}

// Diagram renders the App topology as a Mermaid diagram.
func (a *App) Diagram() string {
	config := introspection.DefaultDiagramConfig()
	config.SecondaryID = "sitecost"
	config.SecondaryLabel = "Workspace Topology"
	return introspection.TreeDiagram(a.Tree(), config)
}

// Tree describes the App as a tree of components. Status values follow
// the classes of introspection.DefaultStyles.
func (a *App) Tree() Node {
	st := a.State().(AppState)

	syncStatus := "stopped"
	switch st.Coordinator.State {
	case core.StateSyncing:
		syncStatus = "running"
	case core.StateOnline:
		syncStatus = "suspended"
	}
	if st.Coordinator.LastError != "" {
		syncStatus = "failed"
	}

	watcherStatus := "suspended"
	if st.Workspace.WatcherActive {
		watcherStatus = "running"
	}

	remote := Node{
		Name:   "Coordinator",
		Status: syncStatus,
		Metadata: map[string]string{
			"type":    "process",
			"adapter": st.Adapter,
			"state":   st.Coordinator.State.String(),
		},
	}
	if st.Coordinator.Location != "" {
		remote.Metadata["location"] = st.Coordinator.Location
	}

	children := []Node{
		{
			Name:   "Ledger",
			Status: "running",
			Metadata: map[string]string{
				"type":    "container",
				"entries": fmt.Sprintf("%d", st.Ledger.Entries),
				"log":     fmt.Sprintf("%d", st.Ledger.ChangeLogLength),
				"synced":  fmt.Sprintf("%t", !st.Unsynced),
			},
		},
		remote,
		{
			Name:     "Watcher",
			Status:   watcherStatus,
			Metadata: map[string]string{"type": "goroutine"},
		},
	}
	if st.Scheduler != nil {
		schedStatus := "suspended"
		if st.Scheduler.Active {
			schedStatus = "running"
		}
		children = append(children, Node{
			Name:   "Scheduler",
			Status: schedStatus,
			Metadata: map[string]string{
				"type":     "goroutine",
				"interval": st.Scheduler.Interval.String(),
				"runs":     fmt.Sprintf("%d", st.Scheduler.Runs),
			},
		})
	}

	return Node{
		Name:     "Workspace",
		Status:   "running",
		Metadata: map[string]string{"type": "container", "path": st.Workspace.Root},
		Children: children,
	}
}
