package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"golang.org/x/term"

	"github.com/aretw0/sitecost"
	"github.com/aretw0/sitecost/pkg/auth"
	"github.com/aretw0/sitecost/pkg/core"
)

// openApp opens the workspace named by --dir, or the nearest one above
// the current directory.
func openApp(extra ...sitecost.Option) *sitecost.App {
	dir := workDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fatal("failed to get working directory", err)
		}
		root, err := sitecost.FindRoot(cwd)
		if err != nil {
			fatal("no workspace found", fmt.Errorf("%w (run 'sitecost init' first)", err))
		}
		dir = root
	}

	opts := []sitecost.Option{sitecost.WithLogger(slog.Default())}
	if adapter != "" {
		opts = append(opts, sitecost.WithAdapter(adapter))
	}
	app, err := sitecost.Open(dir, append(opts, extra...)...)
	if err != nil {
		fatal("failed to open workspace", err)
	}
	return app
}

// authorize obtains a session for action, prompting for the password
// when the stored session has expired.
func authorize(app *sitecost.App, action string) {
	_, err := app.Authorize(action, "")
	if err == nil {
		return
	}
	if !errors.Is(err, sitecost.ErrAuthRequired) {
		fatal("authorization failed", err)
	}
	secret := promptSecret("Password: ")
	if _, err := app.Authorize(action, secret); err != nil {
		fatal("authorization failed", err)
	}
}

// saveAndSync persists the ledger and pushes it when auto-sync is on.
// A failed push keeps the local change; it is reported, not fatal.
func saveAndSync(app *sitecost.App) {
	if err := app.Save(); err != nil {
		fatal("failed to save ledger", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pushed, err := app.AutoPush(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(os.Stderr, "Warning: saved locally, but sync failed: %v\n", err)
		if tip := hint(err); tip != "" {
			fmt.Fprintf(os.Stderr, "Tip: %s\n", tip)
		}
	case pushed:
		fmt.Println(dim.Render("Synced to " + app.Settings().Remote.String()))
	}
}

// hint suggests the next step for errors that need the user.
func hint(err error) string {
	switch {
	case errors.Is(err, errUnpushed):
		return "run 'sitecost push' first, or 'sitecost pull --force' to discard them"
	case errors.Is(err, core.ErrConflict):
		return "the remote changed since your last sync; run 'sitecost pull' to take it, or 'sitecost push --force' to overwrite it"
	case errors.Is(err, core.ErrUnauthorized):
		return "check the access token with 'sitecost configure --token'"
	case errors.Is(err, core.ErrNotFound):
		return "check the owner and repository with 'sitecost configure'"
	case errors.Is(err, core.ErrNotConfigured):
		return "set the remote with 'sitecost configure --owner <owner> --repo <repo>'"
	case errors.Is(err, core.ErrBusy):
		return "another sync is running, try again in a moment"
	case errors.Is(err, auth.ErrInvalidCredential):
		return "use 'sitecost passwd' to change the password"
	case core.IsRetryable(err):
		return "the remote could not be reached, try again later"
	}
	return ""
}

var stdin = bufio.NewReader(os.Stdin)

// promptSecret reads a line without echo when stdin is a terminal.
func promptSecret(label string) string {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fatal("failed to read password", err)
		}
		return string(b)
	}
	return promptLine("")
}

func promptLine(label string) string {
	if label != "" {
		fmt.Fprint(os.Stderr, label)
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		fatal("failed to read input", err)
	}
	return strings.TrimRight(line, "\r\n")
}

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDate accepts YYYY-MM-DD or an English phrase such as "yesterday"
// or "last friday". An empty string means today.
func parseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Now().Format(core.DateLayout), nil
	}
	if _, err := core.ParseDate(s); err == nil {
		return s, nil
	}
	r, err := dateParser.Parse(s, time.Now())
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	if r == nil {
		return "", fmt.Errorf("%w: invalid date %q", core.ErrInvalidEntry, s)
	}
	return r.Time.Format(core.DateLayout), nil
}
