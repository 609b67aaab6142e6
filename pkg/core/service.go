package core

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service applies user edits to a Ledger and records them in its change log.
type Service struct {
	ledger   *Ledger
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	currency string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source used for change log timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides ID generation for entries and records.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithCurrency sets the symbol used in change descriptions.
func WithCurrency(symbol string) ServiceOption {
	return func(s *Service) {
		if symbol != "" {
			s.currency = symbol
		}
	}
}

// NewService creates a Service over ledger.
func NewService(ledger *Ledger, opts ...ServiceOption) *Service {
	s := &Service{
		ledger:   ledger,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		newID:    uuid.NewString,
		currency: DefaultCurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger returns the underlying ledger.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// AddEntry stores a new entry. An empty ID is filled in.
func (s *Service) AddEntry(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	err := s.ledger.Mutate(func(data *Dataset, log *ChangeLog) error {
		if err := data.Add(e); err != nil {
			return err
		}
		created := e
		log.Append(s.record(ActionCreate, e.ID, Changes{New: &created},
			fmt.Sprintf("Added new %s entry for %s%s", e.Category, s.currency, e.Amount.String())))
		return nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to add entry: %w", err)
	}
	s.logger.Debug("entry added", "id", e.ID, "category", e.Category)
	return e, nil
}

// UpdateEntry replaces an existing entry and returns its previous value.
func (s *Service) UpdateEntry(e Entry) (Entry, error) {
	var old Entry
	err := s.ledger.Mutate(func(data *Dataset, log *ChangeLog) error {
		var err error
		old, err = data.Update(e)
		if err != nil {
			return err
		}
		prev, next := old, e
		log.Append(s.record(ActionUpdate, e.ID, Changes{Old: &prev, New: &next},
			fmt.Sprintf("Updated %s entry", e.Category)))
		return nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to update entry: %w", err)
	}
	s.logger.Debug("entry updated", "id", e.ID)
	return old, nil
}

// DeleteEntry removes an entry and returns it.
func (s *Service) DeleteEntry(id string) (Entry, error) {
	if id == "" {
		return Entry{}, errors.New("entry ID cannot be empty")
	}
	var old Entry
	err := s.ledger.Mutate(func(data *Dataset, log *ChangeLog) error {
		var err error
		old, err = data.Delete(id)
		if err != nil {
			return err
		}
		removed := old
		log.Append(s.record(ActionDelete, id, Changes{Old: &removed},
			fmt.Sprintf("Deleted %s entry for %s%s", old.Category, s.currency, old.Amount.String())))
		return nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to delete entry: %w", err)
	}
	s.logger.Debug("entry deleted", "id", id)
	return old, nil
}

// GetEntry looks an entry up by ID.
func (s *Service) GetEntry(id string) (Entry, error) {
	return s.ledger.Dataset().Get(id)
}

// Entries returns all entries in insertion order.
func (s *Service) Entries() []Entry {
	return s.ledger.Dataset().Entries()
}

// ChangeLog returns the change log records, newest first.
func (s *Service) ChangeLog() []ChangeLogRecord {
	return s.ledger.ChangeLog().Records()
}

func (s *Service) record(action Action, entryID string, changes Changes, details string) ChangeLogRecord {
	return ChangeLogRecord{
		ID:        s.newID(),
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
		Action:    action,
		EntryID:   entryID,
		Changes:   changes,
		Details:   details,
	}
}
