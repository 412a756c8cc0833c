package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/skybox-dev/skybox/internal/app"
	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/secret"
	"github.com/skybox-dev/skybox/internal/session"
	"github.com/skybox-dev/skybox/internal/system"
	"github.com/skybox-dev/skybox/internal/task"
)

// TestEnv is a disposable skybox home. Everything lives under a
// t.TempDir; the executor is a mock, so no engine or network is
// touched.
type TestEnv struct {
	T      *testing.T
	Paths  *config.Paths
	Config *config.Config
	Store  *session.Store
	Queue  *task.Queue
	Exec   *system.MockExecutor
	App    *app.App
}

// NewTestEnv builds the fixture. The mock executor is installed as the
// process default (restored on cleanup), so providers constructed
// through env.App see it.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	paths := config.PathsIn(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatalf("failed to create state dirs: %v", err)
	}

	store, err := session.Open(paths.DBPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	exec := system.NewMockExecutor()
	system.SetDefaultExecutor(exec)
	t.Cleanup(system.ResetDefaults)

	cfg := &config.Config{
		Provider:    config.ProviderLocal,
		Agent:       "claude",
		Region:      "us-east",
		CloudAPIURL: config.DefaultCloudAPIURL,
	}
	queue := task.NewQueue()

	a, err := app.New(
		app.WithPaths(paths),
		app.WithConfig(cfg),
		app.WithStore(store),
		app.WithSecrets(secret.NewFileStore(paths.CredentialsPath)),
		app.WithQueue(queue),
	)
	if err != nil {
		t.Fatalf("failed to build app: %v", err)
	}

	return &TestEnv{
		T:      t,
		Paths:  paths,
		Config: cfg,
		Store:  store,
		Queue:  queue,
		Exec:   exec,
		App:    a,
	}
}

// AddSession seeds a session row, filling in whatever the caller left
// zero. Returns the stored record.
func (e *TestEnv) AddSession(sess *session.Session) *session.Session {
	e.T.Helper()

	if sess.ID == "" {
		sess.ID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	}
	if sess.Provider == "" {
		sess.Provider = config.ProviderLocal
	}
	if sess.Agent == "" {
		sess.Agent = "claude"
	}
	if sess.Branch == "" {
		sess.Branch = "skybox/" + sess.Name
	}
	if sess.Status == "" {
		sess.Status = session.StatusRunning
	}
	if sess.ExecType == "" {
		sess.ExecType = session.ExecTmux
	}
	if sess.Created.IsZero() {
		sess.Created = time.Now().UTC()
	}
	if sess.Status == session.StatusRunning && sess.StartedAt.IsZero() {
		sess.StartedAt = sess.Created
	}
	if sess.Provider == config.ProviderLocal && sess.ContainerName == "" {
		sess.ContainerName = config.ContainerName(sess.Name)
	}

	if err := e.Store.Upsert(context.Background(), sess); err != nil {
		e.T.Fatalf("failed to seed session %q: %v", sess.Name, err)
	}
	return sess
}

// Session re-reads a seeded record by id.
func (e *TestEnv) Session(id string) *session.Session {
	e.T.Helper()

	sess, err := e.Store.Get(context.Background(), id)
	if err != nil {
		e.T.Fatalf("failed to load session %q: %v", id, err)
	}
	return sess
}

// DrainQueue waits for background tasks to settle.
func (e *TestEnv) DrainQueue() {
	e.T.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Queue.WaitAll(ctx); err != nil {
		e.T.Fatalf("background tasks did not settle: %v", err)
	}
}
