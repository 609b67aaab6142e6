// Package sitecost is the composition root of a construction cost tracker.
//
// Cost entries and their audit trail live in a local workspace
// (.sitecost/) and are synchronised with two JSON documents in a remote
// repository. Every write presents the conflict token of the revision
// it was based on, so concurrent edits from another device are detected
// instead of overwritten.
//
// The core domain (pkg/core) is isolated from the remote stores: the
// GitHub contents API is the default adapter, a plain directory (with
// optional git commits) and an in-memory server are also available.
//
// Usage:
//
//	app, err := sitecost.Open("./site", sitecost.WithAutoInit(true))
//	if err != nil {
//		return err
//	}
//	e, _ := core.NewEntry("2024-03-01", "Cement", "1200", "", "Ground")
//	if _, err := app.Service.AddEntry(e); err != nil {
//		return err
//	}
//	if err := app.Save(); err != nil {
//		return err
//	}
//	err = app.Push(ctx)
package sitecost
