package core

import (
	"errors"
	"fmt"
)

// Sync error kinds. Every failure returned by a RemoteStore or the
// coordinator matches exactly one of them through errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrTransport    = errors.New("transport failure")
	ErrMalformed    = errors.New("malformed document")
)

// Common errors.
var (
	ErrInvalidEntry   = errors.New("invalid entry")
	ErrDuplicateEntry = errors.New("duplicate entry id")
	ErrEntryNotFound  = errors.New("entry not found")
	ErrBusy           = errors.New("sync already in progress")
	ErrNotConfigured  = errors.New("remote location is not configured")
)

// SyncError describes a failed remote operation.
type SyncError struct {
	Op   string // "pull", "push", "ping"
	Path string
	Kind error // one of the Err* kinds above
	Err  error
}

func (e *SyncError) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil && !errors.Is(e.Kind, e.Err) {
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", msg, e.Kind)
}

func (e *SyncError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// NewSyncError wraps err with the given kind. If err already carries a
// kind, that kind wins.
func NewSyncError(op, path string, kind, err error) *SyncError {
	if k := KindOf(err); k != nil {
		kind = k
	}
	return &SyncError{Op: op, Path: path, Kind: kind, Err: err}
}

// ConflictError is returned when a write presents a stale token.
type ConflictError struct {
	Path          string
	ExpectedToken string
	CurrentToken  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: expected token %q, remote has %q", e.Path, e.ExpectedToken, e.CurrentToken)
}

// Is reports ConflictError as ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// KindOf returns the sync error kind carried by err, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrNotFound, ErrUnauthorized, ErrConflict, ErrTransport, ErrMalformed} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsRetryable reports whether the operation can be retried later as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrBusy)
}

// IsUserActionRequired reports whether a person has to intervene
// (fix the credential, or pull and re-apply) before retrying.
func IsUserActionRequired(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrConflict)
}
