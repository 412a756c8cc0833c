package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/system"
)

// JJBackend manages checkouts as named jj (Jujutsu) workspaces.
type JJBackend struct {
	exec system.CommandExecutor
	fs   system.FileSystem
}

// JJ returns a jj workspace backend.
func JJ() *JJBackend {
	return &JJBackend{exec: system.DefaultExecutor(), fs: system.DefaultFS()}
}

func (b *JJBackend) Name() string {
	return "jj"
}

func (b *JJBackend) IsRepo(path string) bool {
	info, err := os.Stat(filepath.Join(path, ".jj", "repo"))
	return err == nil && info.IsDir()
}

func (b *JJBackend) Exists(ctx context.Context, repoPath, branch string) bool {
	out, err := b.exec.Output(ctx, "jj", "workspace", "list", "-R", repoPath)
	if err != nil {
		return false
	}
	want := workspaceName(branch)
	for _, line := range strings.Split(string(out), "\n") {
		name, _, ok := strings.Cut(line, ":")
		if ok && strings.TrimSpace(name) == want {
			return true
		}
	}
	return false
}

func (b *JJBackend) Create(ctx context.Context, repoPath, branch, workspacePath string) error {
	out, err := b.exec.Execute(ctx, "jj", "workspace", "add",
		"-R", repoPath, "--name", workspaceName(branch), workspacePath)
	if err != nil {
		return errors.WorkspaceError("create jj workspace", outputErr(out, err))
	}
	return nil
}

func (b *JJBackend) Remove(ctx context.Context, repoPath, branch, workspacePath string) error {
	out, err := b.exec.Execute(ctx, "jj", "workspace", "forget",
		workspaceName(branch), "-R", repoPath)
	if err != nil {
		return errors.WorkspaceError("forget jj workspace", outputErr(out, err))
	}
	if workspacePath != "" {
		if err := b.fs.RemoveAll(workspacePath); err != nil {
			return errors.WorkspaceError("remove jj workspace directory", err)
		}
	}
	return nil
}

// workspaceName flattens a branch into a legal jj workspace name.
func workspaceName(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}

// outputErr folds captured command output into the error so failures
// surface the underlying tool's message, not just an exit status.
func outputErr(out []byte, err error) error {
	msg := strings.TrimSpace(string(out))
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
