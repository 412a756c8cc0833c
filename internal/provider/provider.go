// Package provider implements the sandbox lifecycle contract over the two
// backends: local containers and remote compute units. Both providers move
// sessions through the same states; they differ only in resource
// primitives (engine volumes and committed images locally, block volumes
// and snapshots remotely) and in how interactive channels are opened
// (engine exec locally, ssh remotely).
package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/skybox-dev/skybox/internal/agent"
	"github.com/skybox-dev/skybox/internal/cloudapi"
	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/secret"
	"github.com/skybox-dev/skybox/internal/session"
	"github.com/skybox-dev/skybox/internal/task"
)

// BaseVersion pins the base artifact generation. Bump it when the image
// contents change; ensure-image builds the new generation and gc reaps
// the old ones.
const BaseVersion = "v3"

// baseBootstrapImage seeds base artifact builds on both backends.
const baseBootstrapImage = "docker.io/library/ubuntu:24.04"

const (
	workspaceDir = "/workspace"
	logDir       = "/var/log/skybox"
	agentLogFile = logDir + "/agent.log"
	agentEnvFile = "/etc/skybox/agent.env"
)

// Step is one phase of a base artifact build.
type Step string

// Build steps, emitted in order by EnsureImage.
const (
	StepChecking   Step = "checking"
	StepCreating   Step = "creating"
	StepInstalling Step = "installing"
	StepFinalizing Step = "finalizing"
	StepDone       Step = "done"
)

// ProgressFunc receives ordered build progress events. The detail string
// is human-readable context for the current step.
type ProgressFunc func(step Step, detail string)

func progressOrNop(fn ProgressFunc) ProgressFunc {
	if fn != nil {
		return fn
	}
	return func(Step, string) {}
}

// CreateOptions describes a new session.
type CreateOptions struct {
	Name   string
	Branch string
	Repo   string // clone URL or local path; empty for a bare workspace
	Agent  string
	Model  string
	Prompt string

	// Interactive sessions await full provisioning before Create
	// returns. Detached sessions return as soon as the compute unit
	// boots; the rest runs in the background task queue.
	Interactive bool

	// MountDir bind-mounts a host directory as the workspace instead of
	// cloning. Local provider only.
	MountDir string

	// Init holds extra shell lines run in the workspace after the
	// clone, typically from the repository's .skybox.yml.
	Init []string

	// Env is extra environment for the agent process, on top of the
	// agent's own API key.
	Env map[string]string
}

// ResumeOptions describes how to resume a stopped or exited session.
type ResumeOptions struct {
	Interactive bool
	// Prompt optionally gives the resumed agent a fresh instruction on
	// top of its restored conversation.
	Prompt string
}

// Provider is the uniform sandbox lifecycle contract both backends
// satisfy. Methods taking a session id accept ids only; name resolution
// happens in the CLI layer.
type Provider interface {
	// EnsureReady verifies the backend is usable: engine present for
	// local, valid credentials for remote.
	EnsureReady(ctx context.Context) error

	// EnsureImage guarantees the shared base artifact exists for the
	// current BaseVersion, building it if absent.
	EnsureImage(ctx context.Context, onProgress ProgressFunc) error

	Create(ctx context.Context, opts CreateOptions) (*session.Session, error)
	Resume(ctx context.Context, id string, opts ResumeOptions) (*session.Session, error)

	// List and Get return stored records, opportunistically downgrading
	// stale "running" entries against the live backend.
	List(ctx context.Context) ([]*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)

	// Stop kills the compute unit and snapshots its storage for resume.
	Stop(ctx context.Context, id string) error

	// Snapshot checkpoints a running session's storage without stopping
	// it, recording the new handle for later resume.
	Snapshot(ctx context.Context, id string) (string, error)

	// Remove tears down backend resources best-effort and always
	// soft-deletes the record.
	Remove(ctx context.Context, id string) error

	// Attach opens the agent's tmux session; Shell opens a login shell
	// in the same unit.
	Attach(ctx context.Context, id string) error
	Shell(ctx context.Context, id string) error

	// Exec replaces the current process with command running inside the
	// session workspace. It returns only on error.
	Exec(ctx context.Context, id string, command []string) error

	// Logs returns the last tail lines of agent output; tail <= 0 means
	// everything.
	Logs(ctx context.Context, id string, tail int) (string, error)

	// FollowLogs streams agent output to out until ctx is canceled.
	FollowLogs(ctx context.Context, id string, out io.Writer) error
}

// Deps carries the collaborators a provider needs.
type Deps struct {
	Store   *session.Store
	Config  *config.Config
	Paths   *config.Paths
	Secrets secret.Store
	Queue   *task.Queue
}

// New returns the provider selected by tag.
func New(tag string, deps Deps) (Provider, error) {
	switch tag {
	case config.ProviderLocal:
		return NewLocal(deps), nil
	case config.ProviderRemote:
		return NewCloud(deps), nil
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown provider %q (must be %s or %s)",
			tag, config.ProviderLocal, config.ProviderRemote))
	}
}

// shortID returns a short unique suffix for resource names.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// repoDir returns the directory the agent and shells start in. Cloned
// repositories live one level under the workspace; mounted and bare
// workspaces are used directly.
func repoDir(sess *session.Session) string {
	if sess.MountDir == "" && sess.Repo != "" {
		return workspaceDir + "/repo"
	}
	return workspaceDir
}

// agentKey resolves the API key for an agent. The caller's environment
// wins over the credential store so one-off overrides work.
func agentKey(secrets secret.Store, a agent.Agent) string {
	if v := os.Getenv(a.AuthEnvVar()); v != "" {
		return v
	}
	if secrets == nil {
		return ""
	}
	v, err := secrets.Get(secret.Service, a.SecretAccount())
	if err != nil {
		return ""
	}
	return v
}

// baseInstallScript returns the shell script that turns the bootstrap
// image into the skybox base artifact.
func baseInstallScript() string {
	cmds := []string{
		"export DEBIAN_FRONTEND=noninteractive",
		"apt-get update",
		"apt-get install -y --no-install-recommends ca-certificates curl git tmux openssh-client python3 python3-pip nodejs npm",
		"rm -rf /var/lib/apt/lists/*",
		"id -u agent >/dev/null 2>&1 || useradd -m -s /bin/bash agent",
		"mkdir -p " + workspaceDir + " " + logDir,
		"chown agent:agent " + workspaceDir + " " + logDir,
	}
	for _, a := range agent.All() {
		cmds = append(cmds, a.InstallCommand())
	}
	return strings.Join(cmds, " && ")
}

// isNotFound reports whether err is a backend 404 or a *_not_found error
// code.
func isNotFound(err error) bool {
	var apiErr *cloudapi.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusNotFound {
			return true
		}
		if strings.HasSuffix(apiErr.Code, "_not_found") {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
