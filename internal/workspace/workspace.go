package workspace

import "context"

// Backend creates and removes isolated checkouts of a repository, one
// per session, keyed by the session's branch. The checkout is what gets
// bind-mounted into the sandbox.
type Backend interface {
	// Name identifies the backend ("jj" or "git-worktree").
	Name() string

	// IsRepo reports whether path is a repository this backend manages.
	IsRepo(path string) bool

	// Exists reports whether a checkout for branch already exists.
	Exists(ctx context.Context, repoPath, branch string) bool

	// Create materializes a checkout of branch at workspacePath. For git
	// this is a worktree on that branch (created from HEAD if new); for
	// jj it is a named workspace.
	Create(ctx context.Context, repoPath, branch, workspacePath string) error

	// Remove tears the checkout down and releases whatever the backend
	// allocated for it (the worktree registration, the jj workspace).
	Remove(ctx context.Context, repoPath, branch, workspacePath string) error
}

// DetectBackend picks the backend for path, or nil if path is not a
// repository. jj is checked first because jj repos also carry a .git.
func DetectBackend(path string) Backend {
	jj := JJ()
	if jj.IsRepo(path) {
		return jj
	}
	git := Git()
	if git.IsRepo(path) {
		return git
	}
	return nil
}
