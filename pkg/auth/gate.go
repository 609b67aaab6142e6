// Package auth implements the password gate guarding edits. Access is
// granted through two explicit steps: RequestAuthorization issues a
// Challenge, SubmitCredential exchanges it and the secret for a Session.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/sitecost/pkg/core"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 6

// DefaultChallengeTimeout bounds how long a challenge can be answered.
const DefaultChallengeTimeout = 5 * time.Minute

var (
	ErrNoPassword        = errors.New("no password has been set")
	ErrInvalidCredential = errors.New("incorrect password")
	ErrUnknownChallenge  = errors.New("unknown or already used challenge")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrWeakPassword      = errors.New("password must be at least 6 characters long")
	ErrPasswordMismatch  = errors.New("new passwords do not match")
	ErrMissingField      = errors.New("please fill in all password fields")
)

// Challenge is an outstanding request for a credential.
type Challenge struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Session grants access until ExpiresAt.
type Session struct {
	Action    string    `json:"action"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the session is still usable at now.
func (s Session) Valid(now time.Time) bool {
	return !s.IssuedAt.IsZero() && now.Before(s.ExpiresAt)
}

// Gate checks passwords and hands out sessions.
type Gate struct {
	mu           sync.Mutex
	hash         string
	salt         string
	sessionTTL   time.Duration
	challengeTTL time.Duration
	now          func() time.Time
	pending      map[string]Challenge
	logger       *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithChallengeTimeout sets how long a challenge stays answerable.
func WithChallengeTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.challengeTTL = d
		}
	}
}

// WithLogger sets the logger for the gate.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGate builds a gate from persisted auth settings.
func NewGate(settings core.AuthSettings, opts ...Option) *Gate {
	g := &Gate{
		hash:         settings.PasswordHash,
		salt:         settings.Salt,
		sessionTTL:   settings.SessionTimeout,
		challengeTTL: DefaultChallengeTimeout,
		now:          time.Now,
		pending:      make(map[string]Challenge),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if g.sessionTTL <= 0 {
		g.sessionTTL = core.DefaultSessionTimeout
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// HasPassword reports whether a password is configured.
func (g *Gate) HasPassword() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hash != ""
}

// Settings returns the auth settings to persist.
func (g *Gate) Settings() core.AuthSettings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return core.AuthSettings{PasswordHash: g.hash, Salt: g.salt, SessionTimeout: g.sessionTTL}
}

// RequestAuthorization issues a single-use challenge for action.
func (g *Gate) RequestAuthorization(action string) Challenge {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, ch := range g.pending {
		if !now.Before(ch.ExpiresAt) {
			delete(g.pending, id)
		}
	}
	ch := Challenge{ID: uuid.NewString(), Action: action, ExpiresAt: now.Add(g.challengeTTL)}
	g.pending[ch.ID] = ch
	return ch
}

// SubmitCredential answers a challenge. The challenge is consumed whether
// or not the secret is correct.
func (g *Gate) SubmitCredential(ch Challenge, secret string) (Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pending, ok := g.pending[ch.ID]
	if !ok {
		return Session{}, ErrUnknownChallenge
	}
	delete(g.pending, ch.ID)

	now := g.now()
	if !now.Before(pending.ExpiresAt) {
		return Session{}, ErrChallengeExpired
	}
	if g.hash == "" {
		return Session{}, ErrNoPassword
	}
	if !g.matches(secret) {
		g.logger.Warn("authorization rejected", "action", pending.Action)
		return Session{}, ErrInvalidCredential
	}

	g.logger.Debug("authorization granted", "action", pending.Action)
	return Session{Action: pending.Action, IssuedAt: now, ExpiresAt: now.Add(g.sessionTTL)}, nil
}

// SetPassword sets the first password. It fails if one already exists.
func (g *Gate) SetPassword(password, confirm string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hash != "" {
		return errors.New("a password is already set, use ChangePassword")
	}
	return g.store(password, confirm)
}

// ChangePassword replaces the password after checking the current one.
func (g *Gate) ChangePassword(current, password, confirm string) error {
	if current == "" || password == "" || confirm == "" {
		return ErrMissingField
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hash == "" {
		return ErrNoPassword
	}
	if !g.matches(current) {
		return ErrInvalidCredential
	}
	return g.store(password, confirm)
}

func (g *Gate) store(password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}
	salt, err := newSalt()
	if err != nil {
		return err
	}
	g.salt = salt
	g.hash = HashPassword(password, salt)
	return nil
}

func (g *Gate) matches(secret string) bool {
	got := HashPassword(secret, g.salt)
	return subtle.ConstantTimeCompare([]byte(got), []byte(g.hash)) == 1
}

// HashPassword returns the hex SHA-256 of salt and password.
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

func newSalt() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
