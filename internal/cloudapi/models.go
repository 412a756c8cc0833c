package cloudapi

import "time"

// Unit statuses reported by the control plane.
const (
	UnitRunning    = "running"
	UnitStopped    = "stopped"
	UnitTerminated = "terminated"
)

// Unit is an ephemeral micro-VM booted from a volume.
type Unit struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Region     string    `json:"region"`
	VolumeSlug string    `json:"volume_slug"`
	SSHHost    string    `json:"ssh_host"`
	SSHPort    int       `json:"ssh_port"`
	SSHUser    string    `json:"ssh_user"`
	CreatedAt  time.Time `json:"created_at"`
}

// Volume statuses.
const (
	VolumeCreating  = "creating"
	VolumeAvailable = "available"
	VolumeAttached  = "attached"
)

// Volume is a block volume a unit boots from.
type Volume struct {
	ID             string    `json:"id"`
	Slug           string    `json:"slug"`
	Status         string    `json:"status"`
	Region         string    `json:"region"`
	SizeGB         int64     `json:"size_gb"`
	AllocatedGB    int64     `json:"allocated_gb"`
	Bootable       bool      `json:"bootable"`
	SourceSnapshot string    `json:"source_snapshot_slug"`
	CreatedAt      time.Time `json:"created_at"`
}

// Snapshot statuses. A snapshot stays "finalizing" while the backend
// is still materializing it from its source volume; the source volume
// must not be deleted until the snapshot is ready.
const (
	SnapshotFinalizing = "finalizing"
	SnapshotReady      = "ready"
)

// Snapshot is a point-in-time capture of a volume.
type Snapshot struct {
	ID           string    `json:"id"`
	Slug         string    `json:"slug"`
	Status       string    `json:"status"`
	Region       string    `json:"region"`
	SizeGB       int64     `json:"size_gb"`
	SourceVolume string    `json:"source_volume_slug"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUnitRequest boots a new unit on an existing volume.
type CreateUnitRequest struct {
	Name       string `json:"name"`
	VolumeSlug string `json:"volume_slug"`
	Region     string `json:"region"`
}

// CreateVolumeRequest allocates a volume, optionally cloned from a
// snapshot.
type CreateVolumeRequest struct {
	Slug         string `json:"slug"`
	Region       string `json:"region"`
	SizeGB       int64  `json:"size_gb,omitempty"`
	FromSnapshot string `json:"from_snapshot_slug,omitempty"`
	Bootable     bool   `json:"bootable,omitempty"`
}

// CreateSnapshotRequest captures a volume into a snapshot.
type CreateSnapshotRequest struct {
	Slug       string `json:"slug"`
	Region     string `json:"region"`
	FromVolume string `json:"from_volume_slug"`
}

// ExecRequest runs a command inside a unit via the data plane.
type ExecRequest struct {
	Command []string          `json:"command"`
	WorkDir string            `json:"workdir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Timeout int               `json:"timeout_seconds,omitempty"`
}

// ExecResult is the outcome of a data plane exec.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// LogChunk is one read from a unit's append-only log.
type LogChunk struct {
	Data       []byte
	NextOffset int64
}
