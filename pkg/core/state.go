package core

import "fmt"

// SyncState is the coordinator's last known connectivity.
type SyncState int32

const (
	StateOffline SyncState = iota
	StateSyncing
	StateOnline
)

func (s SyncState) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateSyncing:
		return "syncing"
	case StateOnline:
		return "online"
	}
	return fmt.Sprintf("SyncState(%d)", int32(s))
}

// MarshalText renders the state by name.
func (s SyncState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
