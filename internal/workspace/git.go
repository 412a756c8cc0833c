package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
	"github.com/skybox-dev/skybox/internal/system"
)

// GitBackend manages checkouts as git worktrees, one branch per session.
type GitBackend struct {
	exec system.CommandExecutor
}

// Git returns a worktree-based backend.
func Git() *GitBackend {
	return &GitBackend{exec: system.DefaultExecutor()}
}

func (b *GitBackend) Name() string {
	return "git-worktree"
}

func (b *GitBackend) IsRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	// .git is a directory in a normal repo and a file inside a worktree.
	return info.IsDir() || info.Mode().IsRegular()
}

func (b *GitBackend) Exists(ctx context.Context, repoPath, branch string) bool {
	return b.branchExists(ctx, repoPath, branch)
}

func (b *GitBackend) Create(ctx context.Context, repoPath, branch, workspacePath string) error {
	if err := config.ValidateBranch(branch); err != nil {
		return errors.ValidationError(err.Error())
	}

	head, err := b.exec.Output(ctx, "git", "-C", repoPath, "rev-parse", "HEAD")
	if err != nil {
		return errors.WorkspaceError("resolve HEAD", err)
	}

	var args []string
	if b.branchExists(ctx, repoPath, branch) {
		// Resuming a session on a branch that already exists: check it
		// out as-is instead of resetting it to HEAD.
		args = []string{"-C", repoPath, "worktree", "add", workspacePath, branch}
	} else {
		args = []string{"-C", repoPath, "worktree", "add", "-b", branch,
			workspacePath, strings.TrimSpace(string(head))}
	}
	if out, err := b.exec.Execute(ctx, "git", args...); err != nil {
		return errors.WorkspaceError("create worktree", outputErr(out, err))
	}
	return nil
}

func (b *GitBackend) Remove(ctx context.Context, repoPath, branch, workspacePath string) error {
	if workspacePath != "" {
		if err := b.removeWorktree(ctx, repoPath, workspacePath); err != nil {
			return errors.WorkspaceError("remove worktree", err)
		}
	}

	// The branch usually holds the session's work, so a refused delete
	// (unmerged commits, checked out elsewhere) is not an error.
	if err := b.deleteBranch(ctx, repoPath, branch); err != nil {
		logging.Debug("left session branch in place",
			"branch", branch, "error", err)
	}
	return nil
}

func (b *GitBackend) branchExists(ctx context.Context, repoPath, branch string) bool {
	_, err := b.exec.Execute(ctx, "git", "-C", repoPath,
		"show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

func (b *GitBackend) removeWorktree(ctx context.Context, repoPath, workspacePath string) error {
	if _, err := b.exec.Execute(ctx, "git", "-C", repoPath,
		"worktree", "remove", workspacePath); err == nil {
		return nil
	}
	// git refuses to remove dirty worktrees; the session is over, so
	// force it.
	out, err := b.exec.Execute(ctx, "git", "-C", repoPath,
		"worktree", "remove", "--force", workspacePath)
	if err != nil {
		return outputErr(out, err)
	}
	return nil
}

// deleteBranch only ever deletes safely: a branch with commits that
// never landed anywhere stays.
func (b *GitBackend) deleteBranch(ctx context.Context, repoPath, branch string) error {
	out, err := b.exec.Execute(ctx, "git", "-C", repoPath,
		"branch", "-d", branch)
	if err != nil {
		return outputErr(out, err)
	}
	return nil
}
