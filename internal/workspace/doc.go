// Package workspace prepares the host-side checkout that mount-mode
// sessions bind into their container: an isolated git worktree (or jj
// workspace) on the session's branch, living under the data dir so the
// source repository's own working copy is never touched.
//
// DetectBackend picks the backend for a repository; jj wins over git
// because jj colocates a .git directory. Create and Remove bracket the
// session lifecycle: the checkout appears before the container boots
// and is torn down when the session is removed. The branch itself is
// only ever deleted when git considers it safe, so a removed session
// never takes unmerged work with it.
package workspace
