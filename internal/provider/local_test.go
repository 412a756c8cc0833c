package provider

import (
	"context"
	goerrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/session"
	"github.com/skybox-dev/skybox/internal/system"
	"github.com/skybox-dev/skybox/internal/task"
)

// newLocalFixture wires a local provider against a mock engine and a
// real store in a temp dir.
func newLocalFixture(t *testing.T) (*LocalProvider, *system.MockExecutor, *session.Store, *task.Queue) {
	t.Helper()

	exec := system.NewMockExecutor()
	exec.AddResponse("podman version", []byte("podman version 5.0.0"), nil)
	system.SetDefaultExecutor(exec)
	t.Cleanup(system.ResetDefaults)

	store, err := session.Open(filepath.Join(t.TempDir(), "skybox.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	queue := task.NewQueue()
	p := NewLocal(Deps{
		Store:  store,
		Config: &config.Config{Provider: config.ProviderLocal},
		Queue:  queue,
	})
	return p, exec, store, queue
}

func hasCommandPrefix(exec *system.MockExecutor, prefix string) bool {
	for _, line := range exec.CommandStrings() {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func TestLocalCreateInteractive(t *testing.T) {
	p, exec, store, _ := newLocalFixture(t)
	exec.AddResponse("podman run", []byte("f00dfeedbeef1234567890ab"), nil)
	ctx := context.Background()

	sess, err := p.Create(ctx, CreateOptions{
		Name:        "fix-auth",
		Branch:      "skybox/fix-auth",
		Repo:        "https://github.com/acme/app.git",
		Agent:       "claude",
		Model:       "opus",
		Prompt:      "fix the login flow",
		Interactive: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if sess.ID != "f00dfeedbeef" {
		t.Errorf("ID = %q, want the short container id", sess.ID)
	}
	if sess.Status != session.StatusRunning {
		t.Errorf("Status = %q, want %q", sess.Status, session.StatusRunning)
	}
	if sess.ContainerName != "skybox-fix-auth" {
		t.Errorf("ContainerName = %q, want skybox-fix-auth", sess.ContainerName)
	}
	if !strings.HasPrefix(sess.VolumeSlug, config.VolumePrefix+"fix-auth-") {
		t.Errorf("VolumeSlug = %q, want %sfix-auth-*", sess.VolumeSlug, config.VolumePrefix)
	}

	for _, want := range []string{
		"podman volume create",
		"podman run -d --name skybox-fix-auth",
		"podman exec -w /workspace skybox-fix-auth git clone",
		"podman exec -w /workspace/repo skybox-fix-auth git checkout -B skybox/fix-auth",
	} {
		if !hasCommandPrefix(exec, want) {
			t.Errorf("missing engine call %q in:\n%s", want, strings.Join(exec.CommandStrings(), "\n"))
		}
	}
	if !hasCommandPrefix(exec, "podman exec") || !strings.Contains(strings.Join(exec.CommandStrings(), "\n"), "tmux new-session") {
		t.Error("agent was not launched under tmux")
	}

	stored, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Branch != "skybox/fix-auth" || stored.Agent != "claude" {
		t.Errorf("stored = %+v, want branch and agent persisted", stored)
	}
}

func TestLocalCreateDetachedTeardownOnFailure(t *testing.T) {
	p, exec, store, queue := newLocalFixture(t)
	exec.AddResponse("podman run", []byte("f00dfeedbeef1234567890ab"), nil)
	// First provisioning step explodes in the background.
	exec.AddResponse("podman exec skybox-fix-auth mkdir", nil, goerrors.New("engine exploded"))
	ctx := context.Background()

	sess, err := p.Create(ctx, CreateOptions{
		Name:   "fix-auth",
		Branch: "skybox/fix-auth",
		Repo:   "https://github.com/acme/app.git",
		Agent:  "claude",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.Status != session.StatusRunning {
		t.Fatalf("detached Create returned status %q, want %q", sess.Status, session.StatusRunning)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := queue.WaitAll(waitCtx); err != nil {
		t.Fatalf("WaitAll failed: %v", err)
	}

	stored, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != session.StatusExited {
		t.Errorf("after failed provisioning Status = %q, want %q", stored.Status, session.StatusExited)
	}

	if !hasCommandPrefix(exec, "podman rm -f skybox-fix-auth") {
		t.Error("container was not torn down")
	}
	if !hasCommandPrefix(exec, "podman volume rm -f "+sess.VolumeSlug) {
		t.Errorf("fresh volume %s was not removed", sess.VolumeSlug)
	}

	tasks := queue.Tasks()
	if len(tasks) != 1 || tasks[0].Status != task.StatusFailed {
		t.Errorf("tasks = %+v, want one failed provisioning task", tasks)
	}
}

func TestLocalGetDowngradesStaleRunning(t *testing.T) {
	p, exec, store, _ := newLocalFixture(t)
	ctx := context.Background()

	sess := &session.Session{
		ID: "f00dfeedbeef", Provider: config.ProviderLocal, Name: "fix-auth",
		Status: session.StatusRunning, Created: time.Now().UTC(),
		ContainerName: "skybox-fix-auth",
	}
	if err := store.Upsert(ctx, sess); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	exec.AddResponse("podman inspect --format {{.State.Running}}", []byte("false"), nil)
	exec.AddResponse("podman inspect --format {{.State.ExitCode}}", []byte("137"), nil)

	got, err := p.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != session.StatusExited {
		t.Errorf("Status = %q, want %q", got.Status, session.StatusExited)
	}
	if got.ExitCode == nil || *got.ExitCode != 137 {
		t.Errorf("ExitCode = %v, want 137", got.ExitCode)
	}

	stored, _ := store.Get(ctx, sess.ID)
	if stored.Status != session.StatusExited {
		t.Errorf("stored Status = %q, want %q", stored.Status, session.StatusExited)
	}
}

func TestLocalStopCommitsSnapshot(t *testing.T) {
	p, exec, store, _ := newLocalFixture(t)
	ctx := context.Background()

	sess := &session.Session{
		ID: "f00dfeedbeef", Provider: config.ProviderLocal, Name: "fix-auth",
		Status: session.StatusRunning, Created: time.Now().UTC(),
		ContainerName: "skybox-fix-auth", VolumeSlug: "skybox-vol-fix-auth-1a2b",
	}
	if err := store.Upsert(ctx, sess); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := p.Stop(ctx, sess.ID); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if !hasCommandPrefix(exec, "podman stop --time 10 skybox-fix-auth") {
		t.Error("container was not stopped")
	}
	if !hasCommandPrefix(exec, "podman commit skybox-fix-auth "+config.SnapshotPrefix+"fix-auth:") {
		t.Error("container was not committed to a snapshot image")
	}

	stored, _ := store.Get(ctx, sess.ID)
	if stored.Status != session.StatusStopped {
		t.Errorf("Status = %q, want %q", stored.Status, session.StatusStopped)
	}
	if !strings.HasPrefix(stored.SnapshotSlug, config.SnapshotPrefix+"fix-auth:") {
		t.Errorf("SnapshotSlug = %q, want a %sfix-auth tag", stored.SnapshotSlug, config.SnapshotPrefix)
	}
}

func TestLocalSnapshotWhileRunning(t *testing.T) {
	p, exec, store, _ := newLocalFixture(t)
	exec.AddResponse("podman inspect --format {{.State.Running}}", []byte("true"), nil)
	ctx := context.Background()

	sess := &session.Session{
		ID: "f00dfeedbeef", Provider: config.ProviderLocal, Name: "fix-auth",
		Status: session.StatusRunning, Created: time.Now().UTC(),
		ContainerName: "skybox-fix-auth",
	}
	if err := store.Upsert(ctx, sess); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	tag, err := p.Snapshot(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if !strings.HasPrefix(tag, config.SnapshotPrefix+"fix-auth:") {
		t.Errorf("tag = %q, want a %sfix-auth tag", tag, config.SnapshotPrefix)
	}
	// The container must survive a manual snapshot.
	if hasCommandPrefix(exec, "podman stop") || hasCommandPrefix(exec, "podman rm") {
		t.Error("manual snapshot stopped or removed the container")
	}

	stored, _ := store.Get(ctx, sess.ID)
	if stored.SnapshotSlug != tag {
		t.Errorf("SnapshotSlug = %q, want %q", stored.SnapshotSlug, tag)
	}
	if stored.Status != session.StatusRunning {
		t.Errorf("Status = %q, want still %q", stored.Status, session.StatusRunning)
	}
}

func TestLocalSnapshotRequiresRunning(t *testing.T) {
	p, _, store, _ := newLocalFixture(t)
	ctx := context.Background()

	sess := &session.Session{
		ID: "f00dfeedbeef", Provider: config.ProviderLocal, Name: "fix-auth",
		Status: session.StatusStopped, Created: time.Now().UTC(),
		ContainerName: "skybox-fix-auth", SnapshotSlug: "skybox-snap-fix-auth:1a2b",
	}
	if err := store.Upsert(ctx, sess); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	_, err := p.Snapshot(ctx, sess.ID)
	if err == nil {
		t.Fatal("Snapshot of a stopped session succeeded, want error")
	}
	var se *errors.SkyboxError
	if !errors.As(err, &se) {
		t.Fatalf("error type = %T, want *errors.SkyboxError", err)
	}
}

func TestLocalRemoveSoftDeletes(t *testing.T) {
	p, exec, store, _ := newLocalFixture(t)
	ctx := context.Background()

	sess := &session.Session{
		ID: "f00dfeedbeef", Provider: config.ProviderLocal, Name: "fix-auth",
		Status: session.StatusStopped, Created: time.Now().UTC(),
		ContainerName: "skybox-fix-auth",
		VolumeSlug:    "skybox-vol-fix-auth-1a2b",
		SnapshotSlug:  "skybox-snap-fix-auth:9f8e",
	}
	if err := store.Upsert(ctx, sess); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := p.Remove(ctx, sess.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	for _, want := range []string{
		"podman rm -f skybox-fix-auth",
		"podman rmi -f skybox-snap-fix-auth:9f8e",
		"podman volume rm -f skybox-vol-fix-auth-1a2b",
	} {
		if !hasCommandPrefix(exec, want) {
			t.Errorf("missing teardown call %q", want)
		}
	}

	live, err := store.List(ctx, session.Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(live) != 0 {
		t.Errorf("List returned %d sessions after Remove, want 0", len(live))
	}

	all, err := store.ListIncludingDeleted(ctx)
	if err != nil {
		t.Fatalf("ListIncludingDeleted failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("ListIncludingDeleted returned %d sessions, want 1", len(all))
	}
	if all[0].DeletedAt.IsZero() {
		t.Error("DeletedAt not set after Remove")
	}
}
