package platform_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sitecost/internal/platform"
	"github.com/aretw0/sitecost/pkg/adapters/fs"
	"github.com/aretw0/sitecost/pkg/adapters/memory"
	"github.com/aretw0/sitecost/pkg/auth"
	"github.com/aretw0/sitecost/pkg/coordinator"
	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/transfer"
)

var site = core.RemoteLocation{Owner: "acme", Repo: "tower"}

func openApp(t *testing.T, dir string, opts ...platform.Option) *platform.App {
	t.Helper()
	base := []platform.Option{platform.WithEnv(false), platform.WithAutoInit(true)}
	app, err := platform.Open(dir, append(base, opts...)...)
	require.NoError(t, err)
	return app
}

func addEntry(t *testing.T, app *platform.App, category, amount string) core.Entry {
	t.Helper()
	e, err := core.NewEntry("2024-03-01", category, amount, "", "Ground")
	require.NoError(t, err)
	e, err = app.Service.AddEntry(e)
	require.NoError(t, err)
	require.NoError(t, app.Save())
	return e
}

func TestOpen(t *testing.T) {
	t.Run("Requires Workspace Without AutoInit", func(t *testing.T) {
		_, err := platform.Open(t.TempDir(), platform.WithEnv(false))
		assert.ErrorIs(t, err, fs.ErrNoWorkspace)
	})

	t.Run("Unconfigured Remote Is Offline", func(t *testing.T) {
		app := openApp(t, t.TempDir(), platform.WithConnector(memory.NewServer()))
		assert.Equal(t, core.StateOffline, app.Coordinator.Status())
		_, ok := app.Coordinator.Location()
		assert.False(t, ok)
	})

	t.Run("Unknown Adapter", func(t *testing.T) {
		_, err := platform.Open(t.TempDir(), platform.WithEnv(false), platform.WithAutoInit(true), platform.WithAdapter("ftp"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown adapter")
	})

	t.Run("FS Adapter Needs A Directory", func(t *testing.T) {
		_, err := platform.Open(t.TempDir(), platform.WithEnv(false), platform.WithAutoInit(true), platform.WithAdapter(platform.AdapterFS))
		assert.ErrorIs(t, err, core.ErrNotConfigured)
	})

	t.Run("Environment Overrides Settings", func(t *testing.T) {
		t.Setenv("SITECOST_GITHUB_OWNER", "env-owner")
		t.Setenv("SITECOST_GITHUB_REPO", "env-repo")
		app, err := platform.Open(t.TempDir(), platform.WithAutoInit(true), platform.WithEnv(true, filepath.Join(t.TempDir(), "missing.env")), platform.WithConnector(memory.NewServer()))
		require.NoError(t, err)

		loc, ok := app.Coordinator.Location()
		require.True(t, ok)
		assert.Equal(t, "env-owner/env-repo", loc.String())
	})
}

func TestApp_SyncSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	server := memory.NewServer()
	server.CreateRepo(site.Owner, site.Repo)

	app := openApp(t, dir, platform.WithConnector(server))
	require.NoError(t, app.Configure(site, "token"))
	e := addEntry(t, app, "Cement", "1200")
	require.NoError(t, app.Push(ctx))
	assert.Equal(t, 2, server.Writes())

	// A fresh process must pick up the token chain from the workspace,
	// otherwise the existing remote documents would look like conflicts.
	reopened := openApp(t, dir, platform.WithConnector(server))
	got, err := reopened.Service.GetEntry(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cement", got.Category)
	assert.Equal(t, app.Coordinator.Handles(), reopened.Coordinator.Handles())

	addEntry(t, reopened, "Steel", "800")
	require.NoError(t, reopened.Push(ctx))
	assert.Equal(t, 4, server.Writes())
	assert.False(t, reopened.Coordinator.LastPush().IsZero())
}

func TestApp_PullReplacesWorkspaceLedger(t *testing.T) {
	ctx := context.Background()
	server := memory.NewServer()
	server.CreateRepo(site.Owner, site.Repo)

	writer := openApp(t, t.TempDir(), platform.WithConnector(server))
	require.NoError(t, writer.Configure(site, "token"))
	e := addEntry(t, writer, "Bricks", "450.50")
	require.NoError(t, writer.Push(ctx))

	dir := t.TempDir()
	reader := openApp(t, dir, platform.WithConnector(server))
	require.NoError(t, reader.Configure(site, "token"))
	snap, err := reader.Pull(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, e.ID, snap.Entries[0].ID)

	reopened := openApp(t, dir, platform.WithConnector(server))
	assert.Len(t, reopened.Service.Entries(), 1)
	assert.Len(t, reopened.Service.ChangeLog(), 1)
	assert.False(t, reopened.Coordinator.LastPull().IsZero())
}

func TestApp_Unsynced(t *testing.T) {
	ctx := context.Background()
	server := memory.NewServer()
	server.CreateRepo(site.Owner, site.Repo)
	dir := t.TempDir()

	app := openApp(t, dir, platform.WithConnector(server))
	require.NoError(t, app.Configure(site, "token"))
	assert.False(t, app.Unsynced(), "an empty workspace has nothing to lose")

	addEntry(t, app, "Cement", "1200")
	assert.True(t, app.Unsynced())

	t.Run("Pull Of Absent Remote Keeps Changes Pending", func(t *testing.T) {
		_, err := app.Pull(ctx)
		require.NoError(t, err)
		assert.Len(t, app.Service.Entries(), 1)
		assert.True(t, app.Unsynced())
	})

	require.NoError(t, app.Push(ctx))
	assert.False(t, app.Unsynced())

	t.Run("Survives Restart", func(t *testing.T) {
		reopened := openApp(t, dir, platform.WithConnector(server))
		assert.False(t, reopened.Unsynced())

		addEntry(t, reopened, "Steel", "850")
		again := openApp(t, dir, platform.WithConnector(server))
		assert.True(t, again.Unsynced())
		assert.True(t, again.State().(platform.AppState).Unsynced)

		_, err := again.Pull(ctx)
		require.NoError(t, err)
		assert.Len(t, again.Service.Entries(), 1)
		assert.False(t, again.Unsynced())
	})

	t.Run("Failed Push Leaves Changes Pending", func(t *testing.T) {
		addEntry(t, app, "Sand", "90")
		server.Write(site.Owner, site.Repo, core.DefaultDataPath, []byte(`[]`))
		require.ErrorIs(t, app.Push(ctx), core.ErrConflict)
		assert.True(t, app.Unsynced())
	})
}

func TestApp_PushConflictKeepsLocalData(t *testing.T) {
	ctx := context.Background()
	server := memory.NewServer()
	server.CreateRepo(site.Owner, site.Repo)

	app := openApp(t, t.TempDir(), platform.WithConnector(server))
	require.NoError(t, app.Configure(site, "token"))
	addEntry(t, app, "Sand", "90")
	require.NoError(t, app.Push(ctx))

	server.Write(site.Owner, site.Repo, core.DefaultDataPath, []byte(`[]`))
	addEntry(t, app, "Gravel", "60")

	err := app.Push(ctx)
	assert.ErrorIs(t, err, core.ErrConflict)
	assert.Len(t, app.Service.Entries(), 2)

	require.NoError(t, app.Push(ctx, coordinator.Force()))
}

func TestApp_AutoPush(t *testing.T) {
	ctx := context.Background()
	server := memory.NewServer()
	server.CreateRepo(site.Owner, site.Repo)
	app := openApp(t, t.TempDir(), platform.WithConnector(server))

	pushed, err := app.AutoPush(ctx)
	require.NoError(t, err)
	assert.False(t, pushed, "no remote configured")

	require.NoError(t, app.Configure(site, "token"))
	addEntry(t, app, "Paint", "300")
	pushed, err = app.AutoPush(ctx)
	require.NoError(t, err)
	assert.True(t, pushed)
	assert.Equal(t, 2, server.Writes())

	s := app.Settings()
	s.AutoSync = false
	require.NoError(t, app.SaveSettings(s))
	pushed, err = app.AutoPush(ctx)
	require.NoError(t, err)
	assert.False(t, pushed)
}

func TestApp_ExportImport(t *testing.T) {
	src := openApp(t, t.TempDir(), platform.WithConnector(memory.NewServer()))
	addEntry(t, src, "Tiles", "75")
	addEntry(t, src, "Doors", "900")

	b := src.Export()
	assert.Len(t, b.Entries, 2)
	assert.Len(t, b.ChangeLog, 2)

	data, err := transfer.Marshal(b)
	require.NoError(t, err)
	decoded, err := transfer.Unmarshal(data)
	require.NoError(t, err)

	dir := t.TempDir()
	dst := openApp(t, dir, platform.WithConnector(memory.NewServer()))
	require.NoError(t, dst.Import(decoded))
	assert.Len(t, dst.Service.Entries(), 2)

	reopened := openApp(t, dir, platform.WithConnector(memory.NewServer()))
	assert.Len(t, reopened.Service.Entries(), 2)
}

func TestApp_Authorize(t *testing.T) {
	dir := t.TempDir()
	app := openApp(t, dir, platform.WithConnector(memory.NewServer()))

	t.Run("Open Without Password", func(t *testing.T) {
		session, err := app.Authorize("edit", "")
		require.NoError(t, err)
		assert.Empty(t, session.Action)
	})

	require.NoError(t, app.SetPassword("", "letmein", "letmein"))

	t.Run("Secret Required", func(t *testing.T) {
		_, err := app.Authorize("edit", "")
		assert.ErrorIs(t, err, platform.ErrAuthRequired)
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		_, err := app.Authorize("edit", "nope")
		assert.ErrorIs(t, err, auth.ErrInvalidCredential)
		assert.False(t, app.SessionValid())
	})

	t.Run("Session Is Reused", func(t *testing.T) {
		session, err := app.Authorize("edit", "letmein")
		require.NoError(t, err)
		assert.Equal(t, "edit", session.Action)

		again, err := app.Authorize("delete", "")
		require.NoError(t, err)
		assert.Equal(t, session.ExpiresAt.Unix(), again.ExpiresAt.Unix())
	})

	t.Run("Password And Session Persist", func(t *testing.T) {
		reopened := openApp(t, dir, platform.WithConnector(memory.NewServer()))
		assert.True(t, reopened.Gate.HasPassword())
		assert.True(t, reopened.SessionValid())

		require.NoError(t, reopened.Logout())
		assert.False(t, reopened.SessionValid())
	})

	t.Run("Change Password Drops Session", func(t *testing.T) {
		_, err := app.Authorize("edit", "letmein")
		require.NoError(t, err)

		err = app.SetPassword("wrong", "newpass", "newpass")
		assert.ErrorIs(t, err, auth.ErrInvalidCredential)

		require.NoError(t, app.SetPassword("letmein", "newpass", "newpass"))
		assert.False(t, app.SessionValid())
		_, err = app.Authorize("edit", "newpass")
		assert.NoError(t, err)
	})
}

func TestApp_Expiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	app := openApp(t, t.TempDir(), platform.WithConnector(memory.NewServer()), platform.WithClock(clock))
	require.NoError(t, app.SetPassword("", "letmein", "letmein"))

	_, err := app.Authorize("edit", "letmein")
	require.NoError(t, err)
	assert.True(t, app.SessionValid())

	now = now.Add(core.DefaultSessionTimeout + time.Minute)
	assert.False(t, app.SessionValid())
	_, err = app.Authorize("edit", "")
	assert.ErrorIs(t, err, platform.ErrAuthRequired)
}

func TestApp_FSAdapter(t *testing.T) {
	ctx := context.Background()
	remote := t.TempDir()
	repoDir, err := fs.CreateRepo(remote, site)
	require.NoError(t, err)

	dir := t.TempDir()
	app := openApp(t, dir, platform.WithConnector(memory.NewServer()))
	s := app.Settings()
	s.Adapter = platform.AdapterFS
	s.APIURL = "file://" + remote
	require.NoError(t, app.SaveSettings(s))

	app = openApp(t, dir, platform.WithCommit(false))
	require.NoError(t, app.Configure(site, ""))
	require.NoError(t, app.TestConnection(ctx))
	addEntry(t, app, "Cement", "1200")
	require.NoError(t, app.Push(ctx))

	data, err := os.ReadFile(filepath.Join(repoDir, core.DefaultDataPath))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Cement")
}

func TestApp_AutoSync(t *testing.T) {
	server := memory.NewServer()
	server.CreateRepo(site.Owner, site.Repo)
	dir := t.TempDir()

	app := openApp(t, dir, platform.WithConnector(server))
	assert.ErrorIs(t, app.AutoSync(context.Background()), core.ErrNotConfigured)

	require.NoError(t, app.Configure(site, "token"))
	s := app.Settings()
	s.SyncInterval = time.Hour
	require.NoError(t, app.SaveSettings(s))
	addEntry(t, app, "Cement", "1200")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.AutoSync(ctx) }()

	require.Eventually(t, func() bool { return server.Writes() >= 2 }, 5*time.Second, 10*time.Millisecond,
		"the initial trigger should push")

	// Another process edits the workspace ledger; the watcher picks it up.
	editor := openApp(t, dir, platform.WithConnector(server))
	steel := addEntry(t, editor, "Steel", "800")

	require.Eventually(t, func() bool {
		content, ok := server.Read(site.Owner, site.Repo, core.DefaultDataPath)
		return ok && strings.Contains(string(content), steel.ID)
	}, 5*time.Second, 20*time.Millisecond)

	require.NotNil(t, app.Scheduler())
	assert.GreaterOrEqual(t, app.Scheduler().Stats().Runs, int64(2))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("auto-sync did not stop")
	}
}

func TestApp_State(t *testing.T) {
	server := memory.NewServer()
	server.CreateRepo(site.Owner, site.Repo)
	app := openApp(t, t.TempDir(), platform.WithConnector(server))
	require.NoError(t, app.Configure(site, "token"))
	addEntry(t, app, "Cement", "1200")
	require.NoError(t, app.Push(context.Background()))

	st, ok := app.State().(platform.AppState)
	require.True(t, ok)
	assert.Equal(t, "app", app.ComponentType())
	assert.Equal(t, 1, st.Ledger.Entries)
	assert.Equal(t, core.StateOnline, st.Coordinator.State)
	assert.Equal(t, "acme/tower", st.Coordinator.Location)
	assert.Nil(t, st.Scheduler)
	assert.NotNil(t, st.Workspace.LastPush)

	tree := app.Tree()
	assert.Equal(t, "Workspace", tree.Name)
	require.Len(t, tree.Children, 3)
	assert.Equal(t, "suspended", tree.Children[1].Status)
	assert.Equal(t, "online", tree.Children[1].Metadata["state"])
}
