package session

import "time"

// Session statuses. Status is advisory: the engine sets it on
// transitions and providers reconcile stale values lazily on list/get.
const (
	StatusRunning = "running"
	StatusExited  = "exited"
	StatusStopped = "stopped"
)

// ExecTmux is the default exec_type: the agent runs inside a tmux
// session so attach and shell can share the compute unit.
const ExecTmux = "tmux"

// Session is one logical agent run bound to a git branch. The id is
// backend-assigned: the compute unit id for remote sessions, the short
// container id for local ones.
type Session struct {
	ID          string
	Provider    string // "local" or "remote"
	Name        string
	Branch      string
	Agent       string
	Model       string
	Prompt      string
	Repo        string
	Created     time.Time
	Status      string
	ExitCode    *int // nil until the agent process exits
	Interactive bool
	ExecType    string
	ResumedFrom string // id of the session this one was resumed from
	Region      string // remote only

	// MountDir is the host directory bind-mounted into local
	// mount-mode sessions. Empty for clone-mode and remote sessions.
	MountDir string

	// ContainerName is the engine container for local sessions.
	ContainerName string
	// VolumeSlug is the storage handle: an engine volume locally, a
	// block volume slug remotely. Empty for mount-mode sessions.
	VolumeSlug string
	// SnapshotSlug is the resume artifact recorded by stop: a committed
	// image tag locally, a snapshot slug remotely.
	SnapshotSlug string

	StartedAt  time.Time
	FinishedAt time.Time
	DeletedAt  time.Time
}

// IsDeleted reports whether the session has been soft-deleted.
func (s *Session) IsDeleted() bool {
	return !s.DeletedAt.IsZero()
}

// Resumable reports whether the session can be resumed into a new
// compute unit.
func (s *Session) Resumable() bool {
	if s.IsDeleted() {
		return false
	}
	return s.SnapshotSlug != "" || s.VolumeSlug != "" || s.ContainerName != ""
}
