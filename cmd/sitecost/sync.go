package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/sitecost"
	"github.com/aretw0/sitecost/pkg/coordinator"
	"github.com/aretw0/sitecost/pkg/core"
)

const syncTimeout = 60 * time.Second

var (
	cfgOwner    string
	cfgRepo     string
	cfgBranch   string
	cfgToken    string
	cfgDataPath string
	cfgLogPath  string
	cfgAPIURL   string
	cfgAutoSync bool
	cfgInterval time.Duration
	cfgCurrency string
	cfgAdapter  string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Set the remote repository and sync preferences",
	Long: `Store the remote coordinates and credential in .sitecost/settings.yaml.
Only the flags given are changed. No network request is made; use
'sitecost test' to check the connection.`,
	Example: `  sitecost configure --owner acme --repo tower --token ghp_xxx
  sitecost configure --auto-sync=false
  sitecost configure --store fs --api-url file:///srv/sitecost`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		authorize(app, "configure")

		flags := cmd.Flags()
		s := app.Settings()
		if flags.Changed("api-url") {
			s.APIURL = cfgAPIURL
		}
		if flags.Changed("auto-sync") {
			s.AutoSync = cfgAutoSync
		}
		if flags.Changed("interval") {
			s.SyncInterval = cfgInterval
		}
		if flags.Changed("currency") {
			s.Currency = cfgCurrency
		}
		if flags.Changed("store") {
			s.Adapter = cfgAdapter
		}
		if err := checkStore(&s, flags.Changed("api-url")); err != nil {
			fatal("invalid settings", err)
		}
		if err := app.SaveSettings(s); err != nil {
			fatal("failed to save settings", err)
		}

		loc, credential := s.Remote, s.Credential
		remoteChanged := false
		for name, dst := range map[string]*string{
			"owner":     &loc.Owner,
			"repo":      &loc.Repo,
			"branch":    &loc.Branch,
			"data-path": &loc.DataPath,
			"log-path":  &loc.LogPath,
			"token":     &credential,
		} {
			if flags.Changed(name) {
				v, _ := flags.GetString(name)
				*dst = v
				remoteChanged = true
			}
		}
		if remoteChanged {
			if err := app.Configure(loc, credential); err != nil {
				fatal("failed to configure remote", err)
			}
		}

		s = app.Settings()
		fmt.Printf("Remote:    %s\n", remoteLabel(app))
		fmt.Printf("Adapter:   %s\n", s.Adapter)
		fmt.Printf("Auto-sync: %t (every %s)\n", s.AutoSync, s.SyncInterval)
		if flags.Changed("store") || flags.Changed("api-url") {
			fmt.Println(dim.Render("Adapter changes take effect on the next command."))
		}
	},
}

// checkStore rejects settings the next openApp could not load.
func checkStore(s *core.Settings, urlGiven bool) error {
	switch s.Adapter {
	case sitecost.AdapterGitHub:
		if !strings.HasPrefix(s.APIURL, "http://") && !strings.HasPrefix(s.APIURL, "https://") {
			if urlGiven {
				return fmt.Errorf("the github store needs an http(s) api-url, got %q", s.APIURL)
			}
			s.APIURL = core.DefaultAPIURL
		}
	case sitecost.AdapterFS:
		root := strings.TrimPrefix(s.APIURL, "file://")
		if root == "" || strings.Contains(root, "://") {
			return fmt.Errorf("the fs store needs --api-url set to a directory")
		}
	case sitecost.AdapterMemory:
	default:
		return fmt.Errorf("unknown store %q (want github or fs)", s.Adapter)
	}
	return nil
}

func remoteLabel(app *sitecost.App) string {
	s := app.Settings()
	if !s.RemoteConfigured() {
		return dim.Render("not configured")
	}
	return fmt.Sprintf("%s (%s, %s)", s.Remote.String(), s.Remote.DataPath, s.Remote.LogPath)
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that the configured remote is reachable",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		if err := app.TestConnection(ctx); err != nil {
			fatal("connection failed", err)
		}
		success("Connected to %s", app.Settings().Remote.String())
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace local data with the remote documents",
	Long: `Replace the local entries and change log with the remote documents.
A pull is refused while local changes have not been pushed; --force
discards them instead.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		if app.Unsynced() && !pullForce {
			fatal("pull refused", errUnpushed)
		}
		authorize(app, "pull")
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		snap, err := app.Pull(ctx)
		if err != nil {
			fatal("pull failed", err)
		}
		success("Pulled %d entries and %d change log records from %s", len(snap.Entries), len(snap.ChangeLog), app.Settings().Remote.String())
	},
}

var (
	pullForce bool
	pushForce bool
)

var errUnpushed = errors.New("local changes have not been pushed and would be lost")

var pushCmd = &cobra.Command{
	Use:     "push",
	Aliases: []string{"sync"},
	Short:   "Write local data to the remote",
	Long: `Write the entries and then the change log. A push is refused when the
remote changed since the last pull or push from this workspace; --force
overwrites it instead.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		authorize(app, "push")
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		var opts []coordinator.PushOption
		if pushForce {
			opts = append(opts, coordinator.Force())
		}
		if err := app.Push(ctx, opts...); err != nil {
			fatal("push failed", err)
		}
		success("Pushed %d entries to %s", len(app.Service.Entries()), app.Settings().Remote.String())
	},
}

var autosyncCmd = &cobra.Command{
	Use:   "autosync",
	Short: "Push periodically and whenever the workspace changes",
	Long: `Run in the foreground, pushing on every interval tick and shortly after
another sitecost command changes the ledger. Stops on Ctrl+C.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := app.Settings()
		fmt.Printf("Auto-syncing to %s every %s (Ctrl+C to stop)\n", s.Remote.String(), s.SyncInterval)
		if err := app.AutoSync(ctx); err != nil {
			fatal("auto-sync failed", err)
		}

		stats := app.Scheduler().Stats()
		fmt.Printf("\nStopped after %d syncs (%d failed, %d skipped)\n", stats.Runs, stats.Failures, stats.Skips)
	},
}

func init() {
	rootCmd.AddCommand(configureCmd, testCmd, pullCmd, pushCmd, autosyncCmd)

	f := configureCmd.Flags()
	f.StringVar(&cfgOwner, "owner", "", "Repository owner")
	f.StringVar(&cfgRepo, "repo", "", "Repository name")
	f.StringVar(&cfgBranch, "branch", "", "Branch (default: the repository default)")
	f.StringVar(&cfgToken, "token", "", "Access token")
	f.StringVar(&cfgDataPath, "data-path", "", "Path of the entries document")
	f.StringVar(&cfgLogPath, "log-path", "", "Path of the change log document")
	f.StringVar(&cfgAPIURL, "api-url", "", "API base URL, or a directory for the fs adapter")
	f.BoolVar(&cfgAutoSync, "auto-sync", true, "Push after every change and in autosync")
	f.DurationVar(&cfgInterval, "interval", 0, "Auto-sync interval, e.g. 30s")
	f.StringVar(&cfgCurrency, "currency", "", "Currency symbol used in output")
	f.StringVar(&cfgAdapter, "store", "", "Remote store adapter: github or fs")

	pullCmd.Flags().BoolVar(&pullForce, "force", false, "Discard local changes that were not pushed")
	pushCmd.Flags().BoolVar(&pushForce, "force", false, "Overwrite remote changes")
}
