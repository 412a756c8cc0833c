// Package testutil provides the shared fixture for command tests.
//
// NewTestEnv builds a fully wired App rooted in a temp directory: real
// SQLite store, file-backed secrets, fresh task queue, and a
// MockExecutor installed as the process-wide subprocess seam. Tests
// seed state with AddSession and key engine responses on the mock:
//
//	env := testutil.NewTestEnv(t)
//	env.AddSession(&session.Session{Name: "fix-auth"})
//	env.Exec.AddResponse("podman ps", []byte("skybox-fix-auth\n"), nil)
//
// The mock's default response succeeds, so engine detection resolves to
// podman without extra setup.
package testutil
