package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sitecost/internal/config"
	"github.com/aretw0/sitecost/pkg/core"
)

func TestParse(t *testing.T) {
	t.Run("Reads Prefixed Variables", func(t *testing.T) {
		cfg, err := config.Parse(map[string]string{
			"SITECOST_GITHUB_OWNER":  "acme",
			"SITECOST_GITHUB_REPO":   "house",
			"SITECOST_GITHUB_TOKEN":  "ghp_x",
			"SITECOST_SYNC_INTERVAL": "1m",
			"SITECOST_AUTO_SYNC":     "false",
			"GITHUB_OWNER":           "ignored",
		})
		require.NoError(t, err)
		assert.Equal(t, "acme", cfg.GitHub.Owner)
		assert.Equal(t, "house", cfg.GitHub.Repo)
		assert.Equal(t, "ghp_x", cfg.GitHub.Token)
		assert.Equal(t, time.Minute, cfg.SyncInterval)
		assert.False(t, cfg.Empty())
	})

	t.Run("Empty Environment", func(t *testing.T) {
		cfg, err := config.Parse(map[string]string{})
		require.NoError(t, err)
		assert.True(t, cfg.Empty())
	})

	t.Run("Rejects Bad Values", func(t *testing.T) {
		_, err := config.Parse(map[string]string{"SITECOST_SYNC_INTERVAL": "often"})
		assert.Error(t, err)
		_, err = config.Parse(map[string]string{"SITECOST_AUTO_SYNC": "maybe"})
		assert.Error(t, err)
	})
}

func TestApply(t *testing.T) {
	base := core.DefaultSettings()
	base.Remote.Owner = "old"
	base.Credential = "old-token"

	t.Run("Overrides Set Fields Only", func(t *testing.T) {
		cfg := config.Config{AutoSync: "false", Currency: "$"}
		cfg.GitHub.Owner = "acme"

		got := cfg.Apply(base)
		assert.Equal(t, "acme", got.Remote.Owner)
		assert.Equal(t, "old-token", got.Credential)
		assert.False(t, got.AutoSync)
		assert.Equal(t, "$", got.Currency)
		assert.Equal(t, core.DefaultSyncInterval, got.SyncInterval)
	})

	t.Run("Empty Config Is Identity", func(t *testing.T) {
		assert.Equal(t, base, config.Config{}.Apply(base))
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SITECOST_GITHUB_REPO=from-file\nSITECOST_CURRENCY=€\n"), 0644))

	t.Setenv("SITECOST_GITHUB_REPO", "from-env")
	// Registers cleanup for the variable godotenv is about to set.
	t.Setenv("SITECOST_CURRENCY", "")
	os.Unsetenv("SITECOST_CURRENCY")

	cfg, err := config.Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.GitHub.Repo)
	assert.Equal(t, "€", cfg.Currency)
}
