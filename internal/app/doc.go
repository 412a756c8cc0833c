// Package app wires the process-wide collaborators into one explicit
// handle.
//
// The root command builds a single App and passes it to every
// subcommand; tests build theirs with the With* options pointing at
// temp directories and fakes. App owns construction order (paths →
// config → secrets → store → queue) and exposes Provider to pick the
// sandbox backend:
//
//	a, err := app.New()
//	defer a.Close()
//	p, err := a.Provider("")      // configured default
//	p, err := a.Provider("remote")
//
// There is deliberately no package-level default instance.
package app
