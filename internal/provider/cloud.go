package provider

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/skybox-dev/skybox/internal/agent"
	"github.com/skybox-dev/skybox/internal/cloudapi"
	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/errors"
	"github.com/skybox-dev/skybox/internal/logging"
	"github.com/skybox-dev/skybox/internal/secret"
	"github.com/skybox-dev/skybox/internal/session"
	"github.com/skybox-dev/skybox/internal/ssh"
	"github.com/skybox-dev/skybox/internal/task"
)

const (
	// volumeSizeGB is the per-session volume allocation.
	volumeSizeGB = 10
	// buildVolumeSizeGB leaves headroom for the toolchain install.
	buildVolumeSizeGB = 20

	defaultPollInterval    = 2 * time.Second
	defaultDetachTimeout   = 60 * time.Second
	defaultSnapshotTimeout = 5 * time.Minute
)

// CloudProvider runs sessions on remote compute units booted from block
// volumes. Interactive channels go over ssh to the unit; provisioning
// and log access go through the per-region data plane.
type CloudProvider struct {
	api     *cloudapi.Client
	store   *session.Store
	cfg     *config.Config
	secrets secret.Store
	queue   *task.Queue
	retry   retryPolicy
	token   string

	pollInterval    time.Duration
	detachTimeout   time.Duration
	snapshotTimeout time.Duration
}

// NewCloud builds the remote provider. The API token comes from the
// environment-backed config first, then the credential store; a missing
// token is not fatal here, EnsureReady reports it.
func NewCloud(deps Deps) *CloudProvider {
	token := deps.Config.APIToken
	if token == "" && deps.Secrets != nil {
		if v, err := deps.Secrets.Get(secret.Service, secret.TokenAccount); err == nil {
			token = v
		}
	}
	return &CloudProvider{
		api:             cloudapi.NewClient(token, cloudapi.WithBaseURL(deps.Config.CloudAPIURL)),
		store:           deps.Store,
		cfg:             deps.Config,
		secrets:         deps.Secrets,
		queue:           deps.Queue,
		retry:           defaultRetryPolicy(),
		token:           token,
		pollInterval:    defaultPollInterval,
		detachTimeout:   defaultDetachTimeout,
		snapshotTimeout: defaultSnapshotTimeout,
	}
}

// EnsureReady verifies a token exists and actually authenticates.
func (p *CloudProvider) EnsureReady(ctx context.Context) error {
	if p.token == "" {
		return errors.AuthRequired(config.ProviderRemote)
	}
	if _, err := p.api.Units.List(ctx); err != nil {
		var apiErr *cloudapi.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403) {
			return errors.AuthRequired(config.ProviderRemote)
		}
		return err
	}
	return nil
}

// EnsureImage guarantees the base snapshot for the current BaseVersion:
// boot a build unit on a scratch volume, install the toolchain, kill
// the unit, snapshot the volume under the base identity.
func (p *CloudProvider) EnsureImage(ctx context.Context, onProgress ProgressFunc) error {
	onProgress = progressOrNop(onProgress)
	base := config.BaseArtifactName(BaseVersion)

	onProgress(StepChecking, base)
	snap, err := p.api.Snapshots.Get(ctx, base)
	switch {
	case err == nil && snap.Status == cloudapi.SnapshotReady:
		onProgress(StepDone, "base snapshot already present")
		return nil
	case err == nil:
		// Another build is mid-finalization; wait for it instead of
		// racing a duplicate.
		onProgress(StepFinalizing, "waiting for in-flight build")
		if err := p.waitSnapshotReady(ctx, base); err != nil {
			return err
		}
		onProgress(StepDone, base)
		return nil
	case !isNotFound(err):
		return err
	}

	buildVol := config.BuildPrefix + shortID()
	onProgress(StepCreating, "creating build volume "+buildVol)
	vol, err := p.api.Volumes.Create(ctx, cloudapi.CreateVolumeRequest{
		Slug:     buildVol,
		Region:   p.cfg.Region,
		SizeGB:   buildVolumeSizeGB,
		Bootable: true,
	})
	if err != nil {
		return errors.ProvisioningFailed("build volume", err)
	}

	unit, err := p.bootUnit(ctx, buildVol, vol.Slug)
	if err != nil {
		return errors.ProvisioningFailed("build unit boot", err)
	}

	onProgress(StepInstalling, "installing toolchain and agents")
	if _, err := p.execScript(ctx, unit.Region, unit.ID, baseInstallScript()); err != nil {
		if kerr := p.api.Units.Kill(ctx, unit.ID); kerr != nil {
			logging.Warn("failed to kill build unit", "unit", unit.ID, "error", kerr)
		}
		return errors.ProvisioningFailed("base install", err)
	}

	if err := p.api.Units.Kill(ctx, unit.ID); err != nil {
		return errors.ProvisioningFailed("build unit shutdown", err)
	}
	if err := p.waitVolumeDetached(ctx, vol.Slug); err != nil {
		return err
	}

	onProgress(StepFinalizing, "snapshotting "+base)
	if _, err := p.api.Snapshots.Create(ctx, cloudapi.CreateSnapshotRequest{
		Slug:       base,
		Region:     p.cfg.Region,
		FromVolume: vol.Slug,
	}); err != nil {
		return errors.ProvisioningFailed("base snapshot", err)
	}
	if err := p.waitSnapshotReady(ctx, base); err != nil {
		return err
	}

	// The build volume stays behind: the backend pins it while the
	// snapshot finalizes, so gc reaps it on a later pass instead.
	logging.Debug("leaving build volume for gc", "volume", vol.Slug)
	onProgress(StepDone, base)
	return nil
}

// Create allocates a volume from the base snapshot, boots a unit on it,
// and provisions the session. Detached sessions return once the unit is
// up; the rest runs on the task queue.
func (p *CloudProvider) Create(ctx context.Context, opts CreateOptions) (*session.Session, error) {
	if err := config.ValidateSessionName(opts.Name); err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	if err := config.ValidateBranch(opts.Branch); err != nil {
		return nil, errors.ValidationError(err.Error())
	}
	if opts.MountDir != "" {
		return nil, errors.ValidationError("mount mode is only available with the local provider")
	}
	ag, err := agent.New(opts.Agent)
	if err != nil {
		return nil, err
	}

	volSlug := config.VolumePrefix + opts.Name + "-" + shortID()
	vol, err := p.api.Volumes.Create(ctx, cloudapi.CreateVolumeRequest{
		Slug:         volSlug,
		Region:       p.cfg.Region,
		SizeGB:       volumeSizeGB,
		FromSnapshot: config.BaseArtifactName(BaseVersion),
		Bootable:     true,
	})
	if err != nil {
		return nil, errors.ProvisioningFailed("volume create", err)
	}

	unit, err := p.bootUnit(ctx, opts.Name, vol.Slug)
	if err != nil {
		p.deleteVolume(context.WithoutCancel(ctx), vol.Slug)
		return nil, err
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:          unit.ID,
		Provider:    config.ProviderRemote,
		Name:        opts.Name,
		Branch:      opts.Branch,
		Agent:       ag.Name(),
		Model:       opts.Model,
		Prompt:      opts.Prompt,
		Repo:        opts.Repo,
		Created:     now,
		Status:      session.StatusRunning,
		Interactive: opts.Interactive,
		ExecType:    session.ExecTmux,
		Region:      p.region(unit.Region),
		VolumeSlug:  vol.Slug,
		StartedAt:   now,
	}
	if err := p.store.Upsert(ctx, sess); err != nil {
		p.teardownFailed(context.WithoutCancel(ctx), sess, vol.Slug, err)
		return nil, err
	}

	provision := func(ctx context.Context) error {
		return p.provision(ctx, sess, ag, opts)
	}
	if opts.Interactive {
		if err := provision(ctx); err != nil {
			p.teardownFailed(context.WithoutCancel(ctx), sess, vol.Slug, err)
			return nil, err
		}
		return sess, nil
	}
	p.queue.Enqueue("provision "+opts.Name, func() error {
		bg := context.Background()
		if err := provision(bg); err != nil {
			p.teardownFailed(bg, sess, vol.Slug, err)
			return err
		}
		return nil
	})
	return sess, nil
}

// bootUnit creates a compute unit with transient retry. Capacity
// rejections are converted to the running-count form and never retried.
func (p *CloudProvider) bootUnit(ctx context.Context, name, volumeSlug string) (*cloudapi.Unit, error) {
	var unit *cloudapi.Unit
	err := p.retry.Do(ctx, "unit boot", func() error {
		u, err := p.api.Units.Create(ctx, cloudapi.CreateUnitRequest{
			Name:       name,
			VolumeSlug: volumeSlug,
			Region:     p.cfg.Region,
		})
		if err != nil {
			return err
		}
		unit = u
		return nil
	})
	if err != nil {
		if errors.MatchesCapacity(err) {
			running, lerr := p.store.List(ctx, session.Filter{
				Provider: config.ProviderRemote,
				Status:   session.StatusRunning,
			})
			if lerr != nil {
				logging.Debug("could not count running sessions", "error", lerr)
			}
			return nil, errors.CapacityExceeded(len(running), err)
		}
		return nil, err
	}
	return unit, nil
}

// provision finishes a booted unit: credentials, repository clone and
// branch, init script, agent launch.
func (p *CloudProvider) provision(ctx context.Context, sess *session.Session, ag agent.Agent, opts CreateOptions) error {
	if err := p.injectCredentials(ctx, sess, ag, opts.Env); err != nil {
		return errors.ProvisioningFailed("credential injection", err)
	}

	if opts.Repo != "" {
		script := fmt.Sprintf("mkdir -p %s && cd %s && git clone %s repo && cd repo && git checkout -B %s",
			workspaceDir, workspaceDir, shellquote.Join(opts.Repo), shellquote.Join(sess.Branch))
		if _, err := p.execScript(ctx, sess.Region, sess.ID, script); err != nil {
			return errors.ProvisioningFailed("repository clone", err)
		}
	}

	for _, line := range opts.Init {
		script := fmt.Sprintf("cd %s && %s", repoDir(sess), line)
		if _, err := p.execScript(ctx, sess.Region, sess.ID, script); err != nil {
			return errors.ProvisioningFailed("init script", err)
		}
	}

	if err := p.launchAgent(ctx, sess, ag, agent.LaunchOptions{
		Model:  sess.Model,
		Prompt: sess.Prompt,
	}); err != nil {
		return errors.ProvisioningFailed("agent launch", err)
	}
	return nil
}

// injectCredentials uploads the agent's environment file. The file is
// written even when empty so the launcher can source it untested.
func (p *CloudProvider) injectCredentials(ctx context.Context, sess *session.Session, ag agent.Agent, extra map[string]string) error {
	var b strings.Builder
	if key := agentKey(p.secrets, ag); key != "" {
		fmt.Fprintf(&b, "export %s=%s\n", ag.AuthEnvVar(), shellquote.Join(key))
	} else {
		logging.Warn("no API key found for agent",
			"agent", ag.Name(), "env", ag.AuthEnvVar())
	}
	for _, k := range sortedKeys(extra) {
		fmt.Fprintf(&b, "export %s=%s\n", k, shellquote.Join(extra[k]))
	}
	return p.api.Units.UploadFile(ctx, sess.Region, sess.ID, agentEnvFile, 0o600, []byte(b.String()))
}

// launchAgent starts the agent inside tmux on the unit, teeing output
// into the session log.
func (p *CloudProvider) launchAgent(ctx context.Context, sess *session.Session, ag agent.Agent, lopts agent.LaunchOptions) error {
	inner := fmt.Sprintf(". %s && cd %s && %s 2>&1 | tee -a %s",
		agentEnvFile, repoDir(sess), shellquote.Join(ag.Command(lopts)...), agentLogFile)
	script := fmt.Sprintf("mkdir -p %s && tmux new-session -d -s %s %s",
		logDir, config.TmuxSessionName, shellquote.Join(inner))
	_, err := p.execScript(ctx, sess.Region, sess.ID, script)
	return err
}

// execScript runs a shell script inside a unit through the data plane,
// treating a nonzero exit as an error.
func (p *CloudProvider) execScript(ctx context.Context, region, id, script string) (*cloudapi.ExecResult, error) {
	res, err := p.api.Units.Exec(ctx, region, id, cloudapi.ExecRequest{
		Command: []string{"sh", "-c", script},
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return res, fmt.Errorf("command exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res, nil
}

// teardownFailed applies the detached-failure contract: append the
// failure to the session's own log stream, remove the unit and any
// freshly created volume, and mark the record exited.
func (p *CloudProvider) teardownFailed(ctx context.Context, sess *session.Session, freshVolume string, cause error) {
	logging.Error("provisioning failed, tearing down",
		"session", sess.Name, "error", cause)

	line := fmt.Sprintf("skybox: provisioning failed: %v", cause)
	if err := p.api.Units.AppendLog(ctx, sess.Region, sess.ID, line); err != nil {
		logging.Debug("could not record failure in session log", "error", err)
	}

	if err := p.api.Units.Kill(ctx, sess.ID); err != nil && !isNotFound(err) && !errors.IsTerminated(err) {
		logging.Warn("failed to kill unit", "unit", sess.ID, "error", err)
	}
	if freshVolume != "" {
		if err := p.waitVolumeDetached(ctx, freshVolume); err != nil {
			logging.Debug("volume did not report detached", "volume", freshVolume, "error", err)
		}
		p.deleteVolume(ctx, freshVolume)
	}
	if err := p.store.UpdateStatus(ctx, sess.ID, session.StatusExited); err != nil {
		logging.Warn("failed to mark session exited", "id", sess.ID, "error", err)
	}
}

func (p *CloudProvider) deleteVolume(ctx context.Context, slug string) {
	if err := p.api.Volumes.Delete(ctx, slug); err != nil && !isNotFound(err) {
		logging.Warn("failed to delete volume", "volume", slug, "error", err)
	}
}

// Resume boots a fresh unit for a stopped or exited session, cloning a
// new volume from its snapshot when one exists, else booting its live
// volume directly. A new session row records the lineage.
func (p *CloudProvider) Resume(ctx context.Context, id string, opts ResumeOptions) (*session.Session, error) {
	old, err := p.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if old.Provider != config.ProviderRemote {
		return nil, errors.ValidationError(fmt.Sprintf("session %s belongs to the %s provider", old.Name, old.Provider))
	}
	if !old.Resumable() {
		return nil, errors.ValidationError(fmt.Sprintf("session %s has nothing to resume from", old.Name))
	}
	ag, err := agent.New(old.Agent)
	if err != nil {
		return nil, err
	}

	// A running record here means the unit died out from under us.
	if old.Status == session.StatusRunning {
		if err := p.store.UpdateStatus(ctx, old.ID, session.StatusExited); err != nil {
			logging.Warn("failed to mark stale session exited", "id", old.ID, "error", err)
		}
	}

	volSlug := old.VolumeSlug
	freshVolume := ""
	if old.SnapshotSlug != "" {
		volSlug = config.VolumePrefix + old.Name + "-" + shortID()
		if _, err := p.api.Volumes.Create(ctx, cloudapi.CreateVolumeRequest{
			Slug:         volSlug,
			Region:       p.region(old.Region),
			SizeGB:       volumeSizeGB,
			FromSnapshot: old.SnapshotSlug,
			Bootable:     true,
		}); err != nil {
			return nil, errors.ProvisioningFailed("volume from snapshot", err)
		}
		freshVolume = volSlug
	}

	unit, err := p.bootUnit(ctx, old.Name, volSlug)
	if err != nil {
		if freshVolume != "" {
			p.deleteVolume(context.WithoutCancel(ctx), freshVolume)
		}
		return nil, err
	}

	now := time.Now().UTC()
	sess := &session.Session{
		ID:           unit.ID,
		Provider:     config.ProviderRemote,
		Name:         old.Name,
		Branch:       old.Branch,
		Agent:        old.Agent,
		Model:        old.Model,
		Prompt:       old.Prompt,
		Repo:         old.Repo,
		Created:      now,
		Status:       session.StatusRunning,
		Interactive:  opts.Interactive,
		ExecType:     session.ExecTmux,
		ResumedFrom:  old.ID,
		Region:       p.region(unit.Region),
		VolumeSlug:   volSlug,
		SnapshotSlug: old.SnapshotSlug,
		StartedAt:    now,
	}
	if err := p.store.Upsert(ctx, sess); err != nil {
		p.teardownFailed(context.WithoutCancel(ctx), sess, freshVolume, err)
		return nil, err
	}

	relaunch := func(ctx context.Context) error {
		if err := p.injectCredentials(ctx, sess, ag, nil); err != nil {
			return errors.ProvisioningFailed("credential injection", err)
		}
		if err := p.launchAgent(ctx, sess, ag, agent.LaunchOptions{
			Model:    sess.Model,
			Prompt:   opts.Prompt,
			Continue: true,
		}); err != nil {
			return errors.ProvisioningFailed("agent relaunch", err)
		}
		return nil
	}
	if opts.Interactive {
		if err := relaunch(ctx); err != nil {
			p.teardownFailed(context.WithoutCancel(ctx), sess, freshVolume, err)
			return nil, err
		}
		return sess, nil
	}
	p.queue.Enqueue("resume "+old.Name, func() error {
		bg := context.Background()
		if err := relaunch(bg); err != nil {
			p.teardownFailed(bg, sess, freshVolume, err)
			return err
		}
		return nil
	})
	return sess, nil
}

// List returns remote sessions, downgrading stale running records
// against the control plane's unit list. Reconciliation is
// opportunistic: an unreachable control plane returns cached records.
func (p *CloudProvider) List(ctx context.Context) ([]*session.Session, error) {
	sessions, err := p.store.List(ctx, session.Filter{Provider: config.ProviderRemote})
	if err != nil {
		return nil, err
	}
	units, err := p.api.Units.List(ctx)
	if err != nil {
		logging.Warn("cannot reconcile against control plane", "error", err)
		return sessions, nil
	}
	live := make(map[string]string, len(units))
	for _, u := range units {
		live[u.ID] = u.Status
	}
	for _, sess := range sessions {
		if sess.Status != session.StatusRunning {
			continue
		}
		if status, ok := live[sess.ID]; ok && status == cloudapi.UnitRunning {
			continue
		}
		p.downgrade(ctx, sess)
	}
	return sessions, nil
}

// Get returns one session, verifying a running record against its unit.
func (p *CloudProvider) Get(ctx context.Context, id string) (*session.Session, error) {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Status == session.StatusRunning {
		unit, uerr := p.api.Units.Get(ctx, sess.ID)
		switch {
		case uerr == nil && unit.Status == cloudapi.UnitRunning:
		case uerr == nil || isNotFound(uerr) || errors.IsTerminated(uerr):
			p.downgrade(ctx, sess)
		default:
			logging.Warn("cannot reconcile session", "id", sess.ID, "error", uerr)
		}
	}
	return sess, nil
}

func (p *CloudProvider) getRecord(ctx context.Context, id string) (*session.Session, error) {
	sess, err := p.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, errors.SessionNotFound(id)
		}
		return nil, err
	}
	return sess, nil
}

func (p *CloudProvider) downgrade(ctx context.Context, sess *session.Session) {
	if err := p.store.UpdateStatus(ctx, sess.ID, session.StatusExited); err != nil {
		logging.Warn("failed to downgrade session", "id", sess.ID, "error", err)
		return
	}
	sess.Status = session.StatusExited
}

// Stop kills the unit, waits for the backend to detach its volume, then
// best-effort snapshots the volume for later resume.
func (p *CloudProvider) Stop(ctx context.Context, id string) error {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return err
	}

	if err := p.api.Units.Kill(ctx, sess.ID); err != nil && !isNotFound(err) && !errors.IsTerminated(err) {
		return err
	}

	if sess.VolumeSlug != "" {
		if err := p.waitVolumeDetached(ctx, sess.VolumeSlug); err != nil {
			logging.Warn("volume did not report detached; skipping snapshot",
				"volume", sess.VolumeSlug, "error", err)
		} else {
			snapSlug := config.SnapshotPrefix + sess.Name + "-" + shortID()
			if _, err := p.api.Snapshots.Create(ctx, cloudapi.CreateSnapshotRequest{
				Slug:       snapSlug,
				Region:     p.region(sess.Region),
				FromVolume: sess.VolumeSlug,
			}); err != nil {
				logging.Warn("snapshot failed; volume remains bootable",
					"session", sess.Name, "error", err)
			} else if err := p.store.UpdateSnapshot(ctx, sess.ID, snapSlug); err != nil {
				logging.Warn("failed to record snapshot", "id", sess.ID, "error", err)
			}
		}
	}

	return p.store.UpdateStatus(ctx, id, session.StatusStopped)
}

// Snapshot checkpoints a running session's volume while the unit keeps
// running. The capture is crash-consistent; the control plane
// finalizes it in the background.
func (p *CloudProvider) Snapshot(ctx context.Context, id string) (string, error) {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return "", err
	}
	if sess.Status != session.StatusRunning {
		return "", errors.SessionNotRunning(sess.Name)
	}
	if sess.VolumeSlug == "" {
		return "", errors.ValidationError("session has no volume to snapshot")
	}

	snapSlug := config.SnapshotPrefix + sess.Name + "-" + shortID()
	if _, err := p.api.Snapshots.Create(ctx, cloudapi.CreateSnapshotRequest{
		Slug:       snapSlug,
		Region:     p.region(sess.Region),
		FromVolume: sess.VolumeSlug,
	}); err != nil {
		return "", err
	}
	if err := p.store.UpdateSnapshot(ctx, sess.ID, snapSlug); err != nil {
		logging.Warn("failed to record snapshot", "id", sess.ID, "error", err)
	}
	return snapSlug, nil
}

// Remove tears down the unit, snapshot, and volume best-effort, then
// soft-deletes the record unconditionally. Snapshot goes first: a
// finalizing snapshot pins its source volume.
func (p *CloudProvider) Remove(ctx context.Context, id string) error {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return err
	}

	if err := p.api.Units.Kill(ctx, sess.ID); err != nil && !isNotFound(err) && !errors.IsTerminated(err) {
		logging.Warn("failed to kill unit", "unit", sess.ID, "error", err)
	}
	if sess.SnapshotSlug != "" {
		if err := p.api.Snapshots.Delete(ctx, sess.SnapshotSlug); err != nil && !isNotFound(err) {
			logging.Warn("failed to delete snapshot", "snapshot", sess.SnapshotSlug, "error", err)
		}
	}
	if sess.VolumeSlug != "" {
		p.deleteVolume(ctx, sess.VolumeSlug)
	}

	return p.store.SoftDelete(ctx, id)
}

// AgentRunning reports whether the agent's tmux session is alive on the
// unit. Transport failures come back as errors so callers can show
// "unknown" instead of a false negative.
func (p *CloudProvider) AgentRunning(ctx context.Context, id string) (bool, error) {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return false, err
	}
	if sess.Status != session.StatusRunning {
		return false, nil
	}
	res, err := p.api.Units.Exec(ctx, sess.Region, sess.ID, cloudapi.ExecRequest{
		Command: []string{"tmux", "has-session", "-t", config.TmuxSessionName},
	})
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// Attach opens the agent's tmux session on the unit over ssh.
func (p *CloudProvider) Attach(ctx context.Context, id string) error {
	return p.connect(ctx, id, []string{"tmux", "attach-session", "-t", config.TmuxSessionName})
}

// Shell opens a login shell on the unit over ssh.
func (p *CloudProvider) Shell(ctx context.Context, id string) error {
	return p.connect(ctx, id, []string{"bash", "-l"})
}

// Exec replaces the current process with command running in the session
// workspace over ssh.
func (p *CloudProvider) Exec(ctx context.Context, id string, command []string) error {
	if len(command) == 0 {
		return errors.ValidationError("no command given")
	}
	sess, err := p.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status != session.StatusRunning {
		return errors.SessionNotRunning(sess.Name)
	}
	unit, err := p.api.Units.Get(ctx, sess.ID)
	if err != nil {
		return err
	}
	remote := fmt.Sprintf("cd %s && %s", repoDir(sess), shellquote.Join(command...))
	return ssh.ReplaceWithSession(p.sshOptions(unit).WithTTY(), remote)
}

// Attach state machine. Connection attempts move through these states
// so retry, auto-resume, and failure handling stay explicit.
type attachState int

const (
	stateConnecting attachState = iota
	stateRetrying
	stateResuming
	stateAttached
	stateFailed
)

func (s attachState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateRetrying:
		return "retrying"
	case stateResuming:
		return "resuming"
	case stateAttached:
		return "attached"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// connect drives the attach state machine: look up the unit, verify the
// ssh handshake, and hand the terminal over. A terminated unit triggers
// one automatic resume; transient failures retry with linear backoff.
func (p *CloudProvider) connect(ctx context.Context, id string, command []string) error {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return err
	}

	state := stateConnecting
	attempt := 0
	resumed := false
	var target *cloudapi.Unit
	var lastErr error

	// Stopped and exited sessions skip straight to resume.
	if sess.Status != session.StatusRunning {
		if !sess.Resumable() {
			return errors.SessionNotRunning(sess.Name)
		}
		state = stateResuming
	}

	for {
		switch state {
		case stateConnecting:
			unit, uerr := p.api.Units.Get(ctx, sess.ID)
			if uerr == nil && unit.Status != cloudapi.UnitRunning {
				uerr = errors.Terminated("compute unit "+sess.ID,
					fmt.Errorf("unit status is %s", unit.Status))
			}
			if uerr != nil {
				lastErr = uerr
				switch {
				case (errors.IsTerminated(uerr) || isNotFound(uerr)) && !resumed:
					state = stateResuming
				case errors.IsTransient(uerr) && attempt < p.retry.MaxAttempts-1:
					state = stateRetrying
				default:
					state = stateFailed
				}
				continue
			}
			if !ssh.CheckConnection(p.sshOptions(unit)) {
				lastErr = fmt.Errorf("ssh handshake to %s failed", unit.SSHHost)
				if attempt < p.retry.MaxAttempts-1 {
					state = stateRetrying
				} else {
					state = stateFailed
				}
				continue
			}
			target = unit
			state = stateAttached

		case stateRetrying:
			attempt++
			logging.Debug("retrying connect",
				"session", sess.Name, "attempt", attempt, "error", lastErr)
			if err := p.retry.sleep(ctx, time.Duration(attempt)*p.retry.BaseDelay); err != nil {
				return err
			}
			state = stateConnecting

		case stateResuming:
			logging.Info("compute unit gone; resuming session", "session", sess.Name)
			resumed = true
			attempt = 0
			fresh, rerr := p.Resume(ctx, sess.ID, ResumeOptions{Interactive: true})
			if rerr != nil {
				lastErr = rerr
				state = stateFailed
				continue
			}
			sess = fresh
			state = stateConnecting

		case stateAttached:
			return ssh.Interactive(p.sshOptions(target).WithTTY(), command...)

		case stateFailed:
			if lastErr == nil {
				lastErr = fmt.Errorf("connect to session %s failed", sess.Name)
			}
			if errors.IsTerminated(lastErr) {
				p.downgrade(ctx, sess)
			}
			return lastErr
		}
	}
}

func (p *CloudProvider) sshOptions(unit *cloudapi.Unit) ssh.Options {
	opts := ssh.DefaultOptions(unit.SSHHost, unit.SSHPort)
	if unit.SSHUser != "" {
		opts = opts.WithUser(unit.SSHUser)
	}
	return opts
}

// Logs returns the last tail lines of agent output; tail <= 0 returns
// everything.
func (p *CloudProvider) Logs(ctx context.Context, id string, tail int) (string, error) {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return "", err
	}
	chunk, err := p.api.Units.ReadLogs(ctx, sess.Region, sess.ID, cloudapi.ReadLogsOptions{
		TailLines: tail,
	})
	if err != nil {
		return "", err
	}
	return string(chunk.Data), nil
}

// FollowLogs streams the unit's append-only log to out until ctx is
// canceled. Polls ride the client's single keep-alive connection.
func (p *CloudProvider) FollowLogs(ctx context.Context, id string, out io.Writer) error {
	sess, err := p.getRecord(ctx, id)
	if err != nil {
		return err
	}
	read := func(ctx context.Context, offset int64) ([]byte, int64, error) {
		chunk, err := p.api.Units.ReadLogs(ctx, sess.Region, sess.ID, cloudapi.ReadLogsOptions{
			Offset: offset,
		})
		if err != nil {
			return nil, offset, err
		}
		return chunk.Data, chunk.NextOffset, nil
	}
	f := &Follower{Read: read, Out: out}
	return f.Run(ctx)
}

// waitVolumeDetached polls until the backend reports the volume free.
// Unit teardown detaches storage asynchronously.
func (p *CloudProvider) waitVolumeDetached(ctx context.Context, slug string) error {
	return p.retry.pollUntil(ctx, "volume detach", p.detachTimeout, p.pollInterval, func() (bool, error) {
		vol, err := p.api.Volumes.Get(ctx, slug)
		if err != nil {
			return false, err
		}
		return vol.Status == cloudapi.VolumeAvailable, nil
	})
}

func (p *CloudProvider) waitSnapshotReady(ctx context.Context, slug string) error {
	return p.retry.pollUntil(ctx, "snapshot finalize", p.snapshotTimeout, p.pollInterval, func() (bool, error) {
		snap, err := p.api.Snapshots.Get(ctx, slug)
		if err != nil {
			return false, err
		}
		return snap.Status == cloudapi.SnapshotReady, nil
	})
}

// region falls back to the configured region when the backend omits
// one.
func (p *CloudProvider) region(r string) string {
	if r != "" {
		return r
	}
	return p.cfg.Region
}

var _ Provider = (*CloudProvider)(nil)
