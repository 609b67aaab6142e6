package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sitecost/pkg/auth"
	"github.com/aretw0/sitecost/pkg/core"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time           { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newGate(t *testing.T, clock *fakeClock) *auth.Gate {
	t.Helper()
	g := auth.NewGate(core.AuthSettings{SessionTimeout: time.Hour}, auth.WithClock(clock.Now))
	require.NoError(t, g.SetPassword("builder1", "builder1"))
	return g
}

func TestGate_TwoStepAuthorization(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)}
	g := newGate(t, clock)

	t.Run("Correct Secret Grants Session", func(t *testing.T) {
		ch := g.RequestAuthorization("add")
		s, err := g.SubmitCredential(ch, "builder1")
		require.NoError(t, err)
		assert.Equal(t, "add", s.Action)
		assert.True(t, s.Valid(clock.Now()))
		assert.False(t, s.Valid(clock.Now().Add(time.Hour)), "sessions expire after the timeout")
	})

	t.Run("Wrong Secret Is Rejected", func(t *testing.T) {
		ch := g.RequestAuthorization("delete")
		_, err := g.SubmitCredential(ch, "nope")
		assert.ErrorIs(t, err, auth.ErrInvalidCredential)
	})

	t.Run("Challenge Is Single Use", func(t *testing.T) {
		ch := g.RequestAuthorization("edit")
		_, err := g.SubmitCredential(ch, "wrong")
		require.Error(t, err)
		_, err = g.SubmitCredential(ch, "builder1")
		assert.ErrorIs(t, err, auth.ErrUnknownChallenge)
	})

	t.Run("Challenge Expires", func(t *testing.T) {
		ch := g.RequestAuthorization("edit")
		clock.Advance(auth.DefaultChallengeTimeout)
		_, err := g.SubmitCredential(ch, "builder1")
		assert.ErrorIs(t, err, auth.ErrChallengeExpired)
	})

	t.Run("Forged Challenge Is Unknown", func(t *testing.T) {
		_, err := g.SubmitCredential(auth.Challenge{ID: "forged", ExpiresAt: clock.Now().Add(time.Hour)}, "builder1")
		assert.ErrorIs(t, err, auth.ErrUnknownChallenge)
	})
}

func TestGate_NoPassword(t *testing.T) {
	g := auth.NewGate(core.AuthSettings{})
	assert.False(t, g.HasPassword())
	_, err := g.SubmitCredential(g.RequestAuthorization("add"), "anything")
	assert.ErrorIs(t, err, auth.ErrNoPassword)
}

func TestGate_ChangePassword(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)}
	g := newGate(t, clock)

	assert.ErrorIs(t, g.ChangePassword("", "x", "x"), auth.ErrMissingField)
	assert.ErrorIs(t, g.ChangePassword("wrong", "newpass1", "newpass1"), auth.ErrInvalidCredential)
	assert.ErrorIs(t, g.ChangePassword("builder1", "newpass1", "newpass2"), auth.ErrPasswordMismatch)
	assert.ErrorIs(t, g.ChangePassword("builder1", "short", "short"), auth.ErrWeakPassword)
	require.NoError(t, g.ChangePassword("builder1", "newpass1", "newpass1"))

	_, err := g.SubmitCredential(g.RequestAuthorization("add"), "builder1")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)
	_, err = g.SubmitCredential(g.RequestAuthorization("add"), "newpass1")
	assert.NoError(t, err)

	t.Run("Settings Round Trip", func(t *testing.T) {
		settings := g.Settings()
		assert.NotEmpty(t, settings.Salt)
		assert.NotContains(t, settings.PasswordHash, "newpass1")

		restored := auth.NewGate(settings, auth.WithClock(clock.Now))
		_, err := restored.SubmitCredential(restored.RequestAuthorization("add"), "newpass1")
		assert.NoError(t, err)
	})
}
