package core

import (
	"github.com/aretw0/introspection"
)

// ServiceState exposes internal state for observability.
type ServiceState struct {
	Entries         int      `json:"entries"`
	ChangeLogLength int      `json:"change_log_length"`
	Revision        uint64   `json:"revision"`
	Groups          []string `json:"groups"`
	Currency        string   `json:"currency"`
}

// State implements introspection.Introspectable.
func (s *Service) State() any {
	data := s.ledger.Dataset()
	return ServiceState{
		Entries:         data.Len(),
		ChangeLogLength: s.ledger.ChangeLog().Len(),
		Revision:        s.ledger.Revision(),
		Groups:          data.Groups(),
		Currency:        s.currency,
	}
}

// ComponentType implements introspection.Component.
func (s *Service) ComponentType() string {
	return "ledger-service"
}

var _ introspection.Introspectable = (*Service)(nil)
var _ introspection.Component = (*Service)(nil)
