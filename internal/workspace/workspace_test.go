package workspace

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/skybox-dev/skybox/internal/errors"
)

// requireGit skips the test if git is not available.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

// requireJJ skips the test if jj is not available.
func requireJJ(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("jj"); err != nil {
		t.Skip("jj not found in PATH, skipping test")
	}
}

func setupGitRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)
	dir := t.TempDir()

	cmd := exec.Command("git", "init", dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git init: %s: %v", out, err)
	}
	exec.Command("git", "-C", dir, "config", "user.email", "test@test.com").Run()
	exec.Command("git", "-C", dir, "config", "user.name", "Test User").Run()

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test\n"), 0644); err != nil {
		t.Fatal(err)
	}
	exec.Command("git", "-C", dir, "add", ".").Run()
	cmd = exec.Command("git", "-C", dir, "commit", "-m", "initial commit")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git commit: %s: %v", out, err)
	}
	return dir
}

func setupJJRepo(t *testing.T) string {
	t.Helper()
	requireJJ(t)
	dir := t.TempDir()

	cmd := exec.Command("jj", "git", "init", dir)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("jj git init: %s: %v", out, err)
	}
	return dir
}

func TestBackendInterfaces(t *testing.T) {
	var _ Backend = Git()
	var _ Backend = JJ()

	if got := Git().Name(); got != "git-worktree" {
		t.Errorf("Git().Name() = %q, want %q", got, "git-worktree")
	}
	if got := JJ().Name(); got != "jj" {
		t.Errorf("JJ().Name() = %q, want %q", got, "jj")
	}
}

func TestGitIsRepo(t *testing.T) {
	repo := setupGitRepo(t)
	b := Git()

	if !b.IsRepo(repo) {
		t.Error("IsRepo should be true for a git repo")
	}
	if b.IsRepo(t.TempDir()) {
		t.Error("IsRepo should be false for a plain directory")
	}
}

func TestJJIsRepo(t *testing.T) {
	repo := setupJJRepo(t)
	b := JJ()

	if !b.IsRepo(repo) {
		t.Error("IsRepo should be true for a jj repo")
	}
	if b.IsRepo(t.TempDir()) {
		t.Error("IsRepo should be false for a plain directory")
	}
}

func TestGitCreateAndRemove(t *testing.T) {
	ctx := context.Background()
	repo := setupGitRepo(t)
	b := Git()

	wsPath := filepath.Join(t.TempDir(), "workspace")
	branch := "skybox/fix-auth"

	if b.Exists(ctx, repo, branch) {
		t.Error("branch should not exist before Create")
	}
	if err := b.Create(ctx, repo, branch, wsPath); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !b.Exists(ctx, repo, branch) {
		t.Error("branch should exist after Create")
	}
	if _, err := os.Stat(filepath.Join(wsPath, "README.md")); err != nil {
		t.Error("checkout should contain the repo files")
	}

	if err := b.Remove(ctx, repo, branch, wsPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(wsPath); !os.IsNotExist(err) {
		t.Error("checkout directory should be gone after Remove")
	}
}

func TestGitCreateReusesExistingBranch(t *testing.T) {
	ctx := context.Background()
	repo := setupGitRepo(t)
	b := Git()

	// Seed a branch with a commit the default branch does not have.
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", repo}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %s: %v", args, out, err)
		}
	}
	run("checkout", "-b", "existing")
	if err := os.WriteFile(filepath.Join(repo, "extra.txt"), []byte("x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "extra")
	run("checkout", "-")

	wsPath := filepath.Join(t.TempDir(), "workspace")
	if err := b.Create(ctx, repo, "existing", wsPath); err != nil {
		t.Fatalf("Create on existing branch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(wsPath, "extra.txt")); err != nil {
		t.Error("checkout should be on the existing branch, not a reset one")
	}
}

func TestGitRemoveForcesDirtyWorktree(t *testing.T) {
	ctx := context.Background()
	repo := setupGitRepo(t)
	b := Git()

	wsPath := filepath.Join(t.TempDir(), "workspace")
	branch := "skybox/dirty"
	if err := b.Create(ctx, repo, branch, wsPath); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// Untracked files make plain `worktree remove` refuse.
	if err := os.WriteFile(filepath.Join(wsPath, "scratch.txt"), []byte("wip\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := b.Remove(ctx, repo, branch, wsPath); err != nil {
		t.Fatalf("Remove of dirty checkout: %v", err)
	}
	if _, err := os.Stat(wsPath); !os.IsNotExist(err) {
		t.Error("dirty checkout should still be removed")
	}
}

func TestGitRemoveKeepsUnmergedBranch(t *testing.T) {
	ctx := context.Background()
	repo := setupGitRepo(t)
	b := Git()

	wsPath := filepath.Join(t.TempDir(), "workspace")
	branch := "skybox/unmerged"
	if err := b.Create(ctx, repo, branch, wsPath); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Commit work on the branch that never lands on the default branch.
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", wsPath}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %s: %v", args, out, err)
		}
	}
	if err := os.WriteFile(filepath.Join(wsPath, "work.txt"), []byte("done\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "session work")

	if err := b.Remove(ctx, repo, branch, wsPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !b.Exists(ctx, repo, branch) {
		t.Error("branch with unmerged work should survive Remove")
	}
}

func TestGitCreateRejectsBadBranch(t *testing.T) {
	ctx := context.Background()
	b := Git()

	err := b.Create(ctx, t.TempDir(), "has space", filepath.Join(t.TempDir(), "ws"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	var sberr *errors.SkyboxError
	if !errors.As(err, &sberr) {
		t.Fatalf("error type = %T, want *SkyboxError", err)
	}
}

func TestJJCreateAndRemove(t *testing.T) {
	ctx := context.Background()
	repo := setupJJRepo(t)
	b := JJ()

	wsPath := filepath.Join(t.TempDir(), "workspace")
	branch := "skybox/fix-auth"

	if b.Exists(ctx, repo, branch) {
		t.Error("workspace should not exist before Create")
	}
	if err := b.Create(ctx, repo, branch, wsPath); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !b.Exists(ctx, repo, branch) {
		t.Error("workspace should exist after Create")
	}

	if err := b.Remove(ctx, repo, branch, wsPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if b.Exists(ctx, repo, branch) {
		t.Error("workspace should not exist after Remove")
	}
	if _, err := os.Stat(wsPath); !os.IsNotExist(err) {
		t.Error("workspace directory should be gone after Remove")
	}
}

func TestWorkspaceNameFlattensBranch(t *testing.T) {
	if got := workspaceName("skybox/fix-auth"); got != "skybox-fix-auth" {
		t.Errorf("workspaceName = %q, want %q", got, "skybox-fix-auth")
	}
	if got := workspaceName("plain"); got != "plain" {
		t.Errorf("workspaceName = %q, want %q", got, "plain")
	}
}

func TestDetectBackend(t *testing.T) {
	t.Run("git", func(t *testing.T) {
		backend := DetectBackend(setupGitRepo(t))
		if backend == nil {
			t.Fatal("DetectBackend returned nil for a git repo")
		}
		if backend.Name() != "git-worktree" {
			t.Errorf("backend = %q, want %q", backend.Name(), "git-worktree")
		}
	})
	t.Run("jj", func(t *testing.T) {
		backend := DetectBackend(setupJJRepo(t))
		if backend == nil {
			t.Fatal("DetectBackend returned nil for a jj repo")
		}
		if backend.Name() != "jj" {
			t.Errorf("backend = %q, want %q", backend.Name(), "jj")
		}
	})
	t.Run("non-repo", func(t *testing.T) {
		if backend := DetectBackend(t.TempDir()); backend != nil {
			t.Errorf("DetectBackend = %q, want nil", backend.Name())
		}
	})
}
