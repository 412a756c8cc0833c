package provider

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/skybox-dev/skybox/internal/agent"
	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
	"github.com/skybox-dev/skybox/internal/secret"
	"github.com/skybox-dev/skybox/internal/session"
	"github.com/skybox-dev/skybox/internal/system"
	"github.com/skybox-dev/skybox/internal/task"
)

// Container labels marking skybox-managed resources.
const (
	labelManaged = "dev.skybox.managed"
	labelSession = "dev.skybox.session"
)

// LocalProvider runs sessions in containers on a local engine (podman
// or docker). The container is the compute unit; engine volumes and
// committed images stand in for block volumes and snapshots.
type LocalProvider struct {
	store   *session.Store
	cfg     *config.Config
	secrets secret.Store
	queue   *task.Queue
	exec    system.CommandExecutor

	engineOnce sync.Once
	engineName string
	engineErr  error
}

// NewLocal builds the local provider from its collaborators.
func NewLocal(deps Deps) *LocalProvider {
	return &LocalProvider{
		store:   deps.Store,
		cfg:     deps.Config,
		secrets: deps.Secrets,
		queue:   deps.Queue,
		exec:    system.DefaultExecutor(),
	}
}

// engine resolves the container engine binary once per process. A
// configured engine wins; otherwise podman is preferred over docker to
// match rootless setups.
func (p *LocalProvider) engine(ctx context.Context) (string, error) {
	p.engineOnce.Do(func() {
		if p.cfg.Engine != "" {
			if _, err := p.exec.Output(ctx, p.cfg.Engine, "version"); err != nil {
				p.engineErr = errors.EngineFailed("detection",
					fmt.Errorf("configured engine %q is not usable: %w", p.cfg.Engine, err))
				return
			}
			p.engineName = p.cfg.Engine
			logging.Debug("using configured container engine", "engine", p.engineName)
			return
		}
		for _, candidate := range []string{"podman", "docker"} {
			if _, err := p.exec.Output(ctx, candidate, "version"); err == nil {
				p.engineName = candidate
				logging.Debug("detected container engine", "engine", p.engineName)
				return
			}
		}
		e := errors.EngineFailed("detection", fmt.Errorf("no container engine found"))
		e.Hint = "install podman or docker, or set engine in config.toml"
		p.engineErr = e
	})
	return p.engineName, p.engineErr
}

// run executes an engine subcommand, folding combined output into the
// error on failure.
func (p *LocalProvider) run(ctx context.Context, args ...string) (string, error) {
	eng, err := p.engine(ctx)
	if err != nil {
		return "", err
	}
	out, err := p.exec.Execute(ctx, eng, args...)
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %s: %w", eng, args[0], strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// output is run for commands whose stdout gets parsed.
func (p *LocalProvider) output(ctx context.Context, args ...string) (string, error) {
	eng, err := p.engine(ctx)
	if err != nil {
		return "", err
	}
	out, err := p.exec.Output(ctx, eng, args...)
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %w", eng, args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Engine exposes the resolved engine binary for callers that talk to
// it directly, like resource discovery.
func (p *LocalProvider) Engine(ctx context.Context) (string, error) {
	return p.engine(ctx)
}

// EnsureReady checks that a container engine is available.
func (p *LocalProvider) EnsureReady(ctx context.Context) error {
	_, err := p.engine(ctx)
	return err
}

// EnsureImage builds the base image for the current BaseVersion if it is
// not already present: boot a bootstrap container, install the
// toolchain and agents, commit it to the base tag.
func (p *LocalProvider) EnsureImage(ctx context.Context, onProgress ProgressFunc) error {
	onProgress = progressOrNop(onProgress)
	tag := config.BaseImageTag(BaseVersion)

	onProgress(StepChecking, tag)
	if _, err := p.output(ctx, "image", "inspect", "--format", "{{.Id}}", tag); err == nil {
		onProgress(StepDone, "base image already present")
		return nil
	}

	buildName := config.BuildPrefix + shortID()
	onProgress(StepCreating, "bootstrapping from "+baseBootstrapImage)
	if _, err := p.run(ctx, "run", "-d", "--name", buildName,
		"--label", labelManaged+"=true",
		baseBootstrapImage, "sleep", "infinity"); err != nil {
		return errors.ProvisioningFailed("base image bootstrap", err)
	}
	// The committed image is the only durable product; the build
	// container goes away on every path.
	defer func() {
		if _, err := p.run(context.WithoutCancel(ctx), "rm", "-f", buildName); err != nil {
			logging.Warn("failed to remove build container", "name", buildName, "error", err)
		}
	}()

	onProgress(StepInstalling, "installing toolchain and agents")
	if _, err := p.run(ctx, "exec", buildName, "sh", "-c", baseInstallScript()); err != nil {
		return errors.ProvisioningFailed("base image install", err)
	}

	onProgress(StepFinalizing, "committing "+tag)
	if _, err := p.run(ctx, "commit", buildName, tag); err != nil {
		return errors.ProvisioningFailed("base image commit", err)
	}
	onProgress(StepDone, tag)
	return nil
}

// Create boots a container from the base image and provisions it. For
// detached sessions the provisioning tail runs on the task queue and
// the record comes back as soon as the container is up.
func (p *LocalProvider) Create(ctx context.Context, opts CreateOptions) (*session.Session, error) {
	if err := config.ValidateSessionName(opts.Name); err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	if err := config.ValidateBranch(opts.Branch); err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	ag, err := agent.New(opts.Agent)
	if err != nil {
		return nil, err
	}

	containerName := config.ContainerName(opts.Name)
	args := []string{"run", "-d", "--name", containerName,
		"--label", labelManaged + "=true",
		"--label", labelSession + "=" + opts.Name,
	}

	volumeName := ""
	if opts.MountDir != "" {
		args = append(args, "-v", opts.MountDir+":"+workspaceDir)
	} else {
		volumeName = config.VolumePrefix + opts.Name + "-" + shortID()
		if _, err := p.run(ctx, "volume", "create",
			"--label", labelSession+"="+opts.Name, volumeName); err != nil {
			return nil, errors.EngineFailed("volume create", err)
		}
		args = append(args, "-v", volumeName+":"+workspaceDir)
	}
	args = append(args, config.BaseImageTag(BaseVersion), "sleep", "infinity")

	bootOut, err := p.run(ctx, args...)
	if err != nil {
		if volumeName != "" {
			p.removeVolume(context.WithoutCancel(ctx), volumeName)
		}
		return nil, errors.EngineFailed("container boot", err)
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:            shortContainerID(bootOut),
		Provider:      config.ProviderLocal,
		Name:          opts.Name,
		Branch:        opts.Branch,
		Agent:         ag.Name(),
		Model:         opts.Model,
		Prompt:        opts.Prompt,
		Repo:          opts.Repo,
		Created:       now,
		Status:        session.StatusRunning,
		Interactive:   opts.Interactive,
		ExecType:      session.ExecTmux,
		MountDir:      opts.MountDir,
		ContainerName: containerName,
		VolumeSlug:    volumeName,
		StartedAt:     now,
	}
	if err := p.store.Upsert(ctx, sess); err != nil {
		p.teardownFailed(context.WithoutCancel(ctx), sess, volumeName, err)
		return nil, err
	}

	provision := func(ctx context.Context) error {
		return p.provision(ctx, sess, ag, opts)
	}
	if opts.Interactive {
		if err := provision(ctx); err != nil {
			p.teardownFailed(context.WithoutCancel(ctx), sess, volumeName, err)
			return nil, err
		}
		return sess, nil
	}
	p.queue.Enqueue("provision "+opts.Name, func() error {
		bg := context.Background()
		if err := provision(bg); err != nil {
			p.teardownFailed(bg, sess, volumeName, err)
			return err
		}
		return nil
	})
	return sess, nil
}

// provision finishes a booted container: log directory, repository
// clone and branch, init script, agent launch under tmux.
func (p *LocalProvider) provision(ctx context.Context, sess *session.Session, ag agent.Agent, opts CreateOptions) error {
	c := sess.ContainerName

	if _, err := p.run(ctx, "exec", c, "mkdir", "-p", logDir); err != nil {
		return errors.ProvisioningFailed("log setup", err)
	}

	dir := repoDir(sess)
	switch {
	case opts.MountDir != "":
		// The host side prepared the worktree and branch.
	case opts.Repo != "":
		if _, err := p.run(ctx, "exec", "-w", workspaceDir, c, "git", "clone", opts.Repo, "repo"); err != nil {
			return errors.ProvisioningFailed("repository clone", err)
		}
		if _, err := p.run(ctx, "exec", "-w", dir, c, "git", "checkout", "-B", sess.Branch); err != nil {
			return errors.ProvisioningFailed("branch create", err)
		}
	}

	for _, line := range opts.Init {
		if _, err := p.run(ctx, "exec", "-w", dir, c, "sh", "-c", line); err != nil {
			return errors.ProvisioningFailed("init script", err)
		}
	}

	return p.launchAgent(ctx, sess, ag, agent.LaunchOptions{
		Model:  sess.Model,
		Prompt: sess.Prompt,
	}, opts.Env)
}

// launchAgent starts the agent inside tmux, teeing output into the
// session log so getLogs and follow work.
func (p *LocalProvider) launchAgent(ctx context.Context, sess *session.Session, ag agent.Agent, lopts agent.LaunchOptions, extraEnv map[string]string) error {
	inner := fmt.Sprintf("cd %s && %s 2>&1 | tee -a %s",
		repoDir(sess), shellquote.Join(ag.Command(lopts)...), agentLogFile)

	args := []string{"exec"}
	if key := agentKey(p.secrets, ag); key != "" {
		args = append(args, "-e", ag.AuthEnvVar()+"="+key)
	} else {
		logging.Warn("no API key found for agent",
			"agent", ag.Name(), "env", ag.AuthEnvVar())
	}
	for _, k := range sortedKeys(extraEnv) {
		args = append(args, "-e", k+"="+extraEnv[k])
	}
	args = append(args, sess.ContainerName,
		"tmux", "new-session", "-d", "-s", config.TmuxSessionName, inner)

	if _, err := p.run(ctx, args...); err != nil {
		return errors.ProvisioningFailed("agent launch", err)
	}
	return nil
}

// teardownFailed applies the detached-failure contract: record the
// failure in the session's own log, remove the container and any
// freshly created volume, and mark the record exited.
func (p *LocalProvider) teardownFailed(ctx context.Context, sess *session.Session, freshVolume string, cause error) {
	logging.Error("provisioning failed, tearing down",
		"session", sess.Name, "error", cause)

	line := fmt.Sprintf("skybox: provisioning failed: %v", cause)
	if _, err := p.run(ctx, "exec", sess.ContainerName,
		"sh", "-c", "echo "+shellquote.Join(line)+" >> "+agentLogFile); err != nil {
		logging.Debug("could not record failure in session log", "error", err)
	}

	if _, err := p.run(ctx, "rm", "-f", sess.ContainerName); err != nil && !isEngineNotFound(err) {
		logging.Warn("failed to remove container", "name", sess.ContainerName, "error", err)
	}
	if freshVolume != "" {
		p.removeVolume(ctx, freshVolume)
	}
	if err := p.store.UpdateStatus(ctx, sess.ID, session.StatusExited); err != nil {
		logging.Warn("failed to mark session exited", "id", sess.ID, "error", err)
	}
}

func (p *LocalProvider) removeVolume(ctx context.Context, name string) {
	if _, err := p.run(ctx, "volume", "rm", "-f", name); err != nil && !isEngineNotFound(err) {
		logging.Warn("failed to remove volume", "name", name, "error", err)
	}
}

// Resume boots a new container for a stopped or exited session, from
// its committed snapshot image when one exists, else from the base
// image plus the surviving volume. The agent restarts with its
// conversation continued.
func (p *LocalProvider) Resume(ctx context.Context, id string, opts ResumeOptions) (*session.Session, error) {
	old, err := p.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.Provider != config.ProviderLocal {
		return nil, errors.ValidationError(fmt.Sprintf("session %s belongs to the %s provider", old.Name, old.Provider))
	}
	if !old.Resumable() {
		return nil, errors.ValidationError(fmt.Sprintf("session %s has nothing to resume from", old.Name))
	}
	if old.Status == session.StatusRunning {
		if live, lerr := p.Get(ctx, id); lerr == nil && live.Status == session.StatusRunning {
			e := errors.ValidationError(fmt.Sprintf("session %s is already running", old.Name))
			e.Hint = "attach to it with 'skybox attach " + old.Name + "'"
			return nil, e
		}
	}
	ag, err := agent.New(old.Agent)
	if err != nil {
		return nil, err
	}

	image := config.BaseImageTag(BaseVersion)
	if old.SnapshotSlug != "" {
		image = old.SnapshotSlug
	}

	// The old container may survive in a stopped state under the same
	// name; clear it before booting the replacement.
	if _, err := p.run(ctx, "rm", "-f", old.ContainerName); err != nil && !isEngineNotFound(err) {
		logging.Warn("failed to remove previous container", "name", old.ContainerName, "error", err)
	}

	args := []string{"run", "-d", "--name", old.ContainerName,
		"--label", labelManaged + "=true",
		"--label", labelSession + "=" + old.Name,
	}
	switch {
	case old.MountDir != "":
		args = append(args, "-v", old.MountDir+":"+workspaceDir)
	case old.VolumeSlug != "":
		args = append(args, "-v", old.VolumeSlug+":"+workspaceDir)
	}
	args = append(args, image, "sleep", "infinity")

	bootOut, err := p.run(ctx, args...)
	if err != nil {
		return nil, errors.EngineFailed("container boot", err)
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:            shortContainerID(bootOut),
		Provider:      config.ProviderLocal,
		Name:          old.Name,
		Branch:        old.Branch,
		Agent:         old.Agent,
		Model:         old.Model,
		Prompt:        old.Prompt,
		Repo:          old.Repo,
		Created:       now,
		Status:        session.StatusRunning,
		Interactive:   opts.Interactive,
		ExecType:      session.ExecTmux,
		ResumedFrom:   old.ID,
		MountDir:      old.MountDir,
		ContainerName: old.ContainerName,
		VolumeSlug:    old.VolumeSlug,
		SnapshotSlug:  old.SnapshotSlug,
		StartedAt:     now,
	}
	if err := p.store.Upsert(ctx, sess); err != nil {
		p.teardownFailed(context.WithoutCancel(ctx), sess, "", err)
		return nil, err
	}

	relaunch := func(ctx context.Context) error {
		if _, err := p.run(ctx, "exec", sess.ContainerName, "mkdir", "-p", logDir); err != nil {
			return errors.ProvisioningFailed("log setup", err)
		}
		return p.launchAgent(ctx, sess, ag, agent.LaunchOptions{
			Model:    sess.Model,
			Prompt:   opts.Prompt,
			Continue: true,
		}, nil)
	}
	if opts.Interactive {
		if err := relaunch(ctx); err != nil {
			p.teardownFailed(context.WithoutCancel(ctx), sess, "", err)
			return nil, err
		}
		return sess, nil
	}
	p.queue.Enqueue("resume "+old.Name, func() error {
		bg := context.Background()
		if err := relaunch(bg); err != nil {
			p.teardownFailed(bg, sess, "", err)
			return err
		}
		return nil
	})
	return sess, nil
}

// List returns local sessions, downgrading stale running records
// against the engine's live container set. Reconciliation is
// opportunistic: if the engine is unreachable the cached records come
// back unchanged.
func (p *LocalProvider) List(ctx context.Context) ([]*session.Session, error) {
	sessions, err := p.store.List(ctx, session.Filter{Provider: config.ProviderLocal})
	if err != nil {
		return nil, err
	}
	running, err := p.liveContainers(ctx)
	if err != nil {
		logging.Warn("cannot reconcile against engine", "error", err)
		return sessions, nil
	}
	for _, sess := range sessions {
		if sess.Status == session.StatusRunning && !running[sess.ContainerName] {
			p.downgrade(ctx, sess)
		}
	}
	return sessions, nil
}

// Get returns one session, verifying a running record against the
// engine.
func (p *LocalProvider) Get(ctx context.Context, id string) (*session.Session, error) {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == session.StatusRunning {
		out, err := p.output(ctx, "inspect", "--format", "{{.State.Running}}", sess.ContainerName)
		if err != nil || out != "true" {
			p.downgrade(ctx, sess)
		}
	}
	return sess, nil
}

func (p *LocalProvider) getRecord(ctx context.Context, id string) (*session.Session, error) {
	sess, err := p.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, errors.SessionNotFound(id)
		}
		return nil, err
	}
	return sess, nil
}

// liveContainers returns the names of running skybox containers.
func (p *LocalProvider) liveContainers(ctx context.Context) (map[string]bool, error) {
	out, err := p.output(ctx, "ps", "--format", "{{.Names}}",
		"--filter", "label="+labelManaged+"=true")
	if err != nil {
		return nil, err
	}
	names := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names[name] = true
		}
	}
	return names, nil
}

// downgrade marks a stale running record exited, pulling the exit code
// from the stopped container when it is still around.
func (p *LocalProvider) downgrade(ctx context.Context, sess *session.Session) {
	out, err := p.output(ctx, "inspect", "--format", "{{.State.ExitCode}}", sess.ContainerName)
	if err == nil {
		if code, perr := strconv.Atoi(out); perr == nil {
			if uerr := p.store.UpdateExit(ctx, sess.ID, code); uerr != nil {
				logging.Warn("failed to downgrade session", "id", sess.ID, "error", uerr)
				return
			}
			sess.Status = session.StatusExited
			sess.ExitCode = &code
			return
		}
	}
	if uerr := p.store.UpdateStatus(ctx, sess.ID, session.StatusExited); uerr != nil {
		logging.Warn("failed to downgrade session", "id", sess.ID, "error", uerr)
		return
	}
	sess.Status = session.StatusExited
}

// Stop kills the container, commits its filesystem as a snapshot image
// for resume, and removes the container. Snapshot failure is tolerable:
// clone-mode sessions keep their volume and remain bootable from base.
func (p *LocalProvider) Stop(ctx context.Context, id string) error {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return err
	}

	if _, err := p.run(ctx, "stop", "--time", "10", sess.ContainerName); err != nil && !isEngineNotFound(err) {
		return errors.EngineFailed("container stop", err)
	}

	snapTag := fmt.Sprintf("%s%s:%s", config.SnapshotPrefix, sess.Name, shortID())
	if _, err := p.run(ctx, "commit", sess.ContainerName, snapTag); err != nil {
		logging.Warn("snapshot failed; volume remains bootable",
			"session", sess.Name, "error", err)
	} else if err := p.store.UpdateSnapshot(ctx, id, snapTag); err != nil {
		logging.Warn("failed to record snapshot", "id", id, "error", err)
	}

	if _, err := p.run(ctx, "rm", "-f", sess.ContainerName); err != nil && !isEngineNotFound(err) {
		logging.Warn("failed to remove container", "name", sess.ContainerName, "error", err)
	}

	return p.store.UpdateStatus(ctx, id, session.StatusStopped)
}

// Snapshot commits the running container's filesystem without stopping
// it. The engine pauses the container during the commit, so the agent
// stalls for a moment but keeps its tmux session.
func (p *LocalProvider) Snapshot(ctx context.Context, id string) (string, error) {
	sess, err := p.requireRunning(ctx, id)
	if err != nil {
		return "", err
	}

	snapTag := fmt.Sprintf("%s%s:%s", config.SnapshotPrefix, sess.Name, shortID())
	if _, err := p.run(ctx, "commit", sess.ContainerName, snapTag); err != nil {
		return "", errors.EngineFailed("container commit", err)
	}
	if err := p.store.UpdateSnapshot(ctx, id, snapTag); err != nil {
		logging.Warn("failed to record snapshot", "id", id, "error", err)
	}
	return snapTag, nil
}

// Remove tears down the container, snapshot image, and volume
// best-effort, then soft-deletes the record unconditionally. The
// snapshot goes before the volume to keep the same removal order as the
// remote backend.
func (p *LocalProvider) Remove(ctx context.Context, id string) error {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return err
	}

	if _, err := p.run(ctx, "rm", "-f", sess.ContainerName); err != nil && !isEngineNotFound(err) {
		logging.Warn("failed to remove container", "name", sess.ContainerName, "error", err)
	}
	if sess.SnapshotSlug != "" {
		if _, err := p.run(ctx, "rmi", "-f", sess.SnapshotSlug); err != nil && !isEngineNotFound(err) {
			logging.Warn("failed to remove snapshot image", "image", sess.SnapshotSlug, "error", err)
		}
	}
	if sess.VolumeSlug != "" {
		p.removeVolume(ctx, sess.VolumeSlug)
	}

	return p.store.SoftDelete(ctx, id)
}

// AgentRunning reports whether the agent's tmux session is still alive
// inside the container.
func (p *LocalProvider) AgentRunning(ctx context.Context, id string) (bool, error) {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return false, err
	}
	if sess.Status != session.StatusRunning {
		return false, nil
	}
	_, err = p.run(ctx, "exec", sess.ContainerName,
		"tmux", "has-session", "-t", config.TmuxSessionName)
	return err == nil, nil
}

// Attach opens the agent's tmux session in the running container.
func (p *LocalProvider) Attach(ctx context.Context, id string) error {
	sess, err := p.requireRunning(ctx, id)
	if err != nil {
		return err
	}
	eng, err := p.engine(ctx)
	if err != nil {
		return err
	}
	return p.exec.ExecuteInteractive(ctx, eng, "exec", "-it", sess.ContainerName,
		"tmux", "attach-session", "-t", config.TmuxSessionName)
}

// Shell opens a login shell in the session workspace.
func (p *LocalProvider) Shell(ctx context.Context, id string) error {
	sess, err := p.requireRunning(ctx, id)
	if err != nil {
		return err
	}
	eng, err := p.engine(ctx)
	if err != nil {
		return err
	}
	return p.exec.ExecuteInteractive(ctx, eng, "exec", "-it", "-w", repoDir(sess),
		sess.ContainerName, "bash", "-l")
}

// Exec replaces the current process with command running inside the
// session workspace.
func (p *LocalProvider) Exec(ctx context.Context, id string, command []string) error {
	if len(command) == 0 {
		return errors.ValidationError("no command given")
	}
	sess, err := p.requireRunning(ctx, id)
	if err != nil {
		return err
	}
	eng, err := p.engine(ctx)
	if err != nil {
		return err
	}
	args := append([]string{"exec", "-it", "-w", repoDir(sess), sess.ContainerName}, command...)
	return p.exec.ReplaceProcess(eng, args...)
}

// requireRunning resolves a session and insists the container is live.
func (p *LocalProvider) requireRunning(ctx context.Context, id string) (*session.Session, error) {
	sess, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusRunning {
		e := errors.SessionNotRunning(sess.Name)
		if sess.Resumable() {
			e.Hint = "resume it with 'skybox start " + sess.Name + "'"
		}
		return nil, e
	}
	return sess, nil
}

// Logs returns the last tail lines of agent output; tail <= 0 returns
// the whole log.
func (p *LocalProvider) Logs(ctx context.Context, id string, tail int) (string, error) {
	sess, err := p.requireRunning(ctx, id)
	if err != nil {
		return "", err
	}
	eng, err := p.engine(ctx)
	if err != nil {
		return "", err
	}
	n := "+1"
	if tail > 0 {
		n = strconv.Itoa(tail)
	}
	out, err := p.exec.Output(ctx, eng, "exec", sess.ContainerName,
		"tail", "-n", n, agentLogFile)
	if err != nil {
		return "", errors.EngineFailed("log read", err)
	}
	return string(out), nil
}

// FollowLogs streams the agent log to out until ctx is canceled.
func (p *LocalProvider) FollowLogs(ctx context.Context, id string, out io.Writer) error {
	sess, err := p.requireRunning(ctx, id)
	if err != nil {
		return err
	}
	eng, err := p.engine(ctx)
	if err != nil {
		return err
	}
	read := func(ctx context.Context, offset int64) ([]byte, int64, error) {
		// tail -c addressing is 1-based.
		chunk, err := p.exec.Output(ctx, eng, "exec", sess.ContainerName,
			"tail", "-c", fmt.Sprintf("+%d", offset+1), agentLogFile)
		if err != nil {
			return nil, offset, errors.EngineFailed("log read", err)
		}
		return chunk, offset + int64(len(chunk)), nil
	}
	f := &Follower{Read: read, Out: out}
	return f.Run(ctx)
}

// shortContainerID trims a boot's full container id to the short form
// used as the session id.
func shortContainerID(bootOut string) string {
	id := bootOut
	if i := strings.LastIndexByte(id, '\n'); i >= 0 {
		// Engines may print pull progress before the id.
		id = id[i+1:]
	}
	id = strings.TrimSpace(id)
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

// isEngineNotFound matches the engine's not-found noise so best-effort
// teardown can ignore it.
func isEngineNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range []string{"no such container", "no such volume", "no such image", "no such object", "image not known"} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

var _ Provider = (*LocalProvider)(nil)
