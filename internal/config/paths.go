package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// ContainerPrefix is prepended to session names for local containers.
	ContainerPrefix = "skybox-"

	// VolumePrefix names per-session storage on both backends.
	VolumePrefix = "skybox-vol-"

	// SnapshotPrefix names per-session resume artifacts on both backends.
	SnapshotPrefix = "skybox-snap-"

	// BuildPrefix names ephemeral build volumes left behind by base
	// artifact construction.
	BuildPrefix = "skybox-build-"

	// BaseArtifactPrefix is the shared base image/snapshot family. The
	// full identity appends the engine version, e.g. skybox-base-v3.
	BaseArtifactPrefix = "skybox-base"

	// TmuxSessionName is the tmux session the agent runs in inside a
	// sandbox.
	TmuxSessionName = "agent"

	envHome = "SKYBOX_HOME"
)

// Paths holds the configured filesystem locations for skybox state.
type Paths struct {
	DataDir         string // root state directory, default ~/.skybox
	DBPath          string // session database
	ConfigPath      string // global config.toml
	CredentialsPath string // fallback secret file when no OS keyring
	WorktreesDir    string // host-side workspaces for mount-mode sessions
}

// DefaultPaths returns the default path configuration. SKYBOX_HOME
// overrides the data directory.
func DefaultPaths() *Paths {
	dataDir := os.Getenv(envHome)
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			// Last resort so the CLI can still print something useful.
			home = "."
		}
		dataDir = filepath.Join(home, ".skybox")
	}
	return PathsIn(dataDir)
}

// PathsIn returns the path configuration rooted at dataDir.
func PathsIn(dataDir string) *Paths {
	return &Paths{
		DataDir:         dataDir,
		DBPath:          filepath.Join(dataDir, "skybox.db"),
		ConfigPath:      filepath.Join(dataDir, "config.toml"),
		CredentialsPath: filepath.Join(dataDir, "credentials.json"),
		WorktreesDir:    filepath.Join(dataDir, "worktrees"),
	}
}

// EnsureDirs creates the state directories if missing.
func (p *Paths) EnsureDirs() error {
	for _, dir := range []string{p.DataDir, p.WorktreesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// ContainerName returns the container name for a session name.
func ContainerName(sessionName string) string {
	return ContainerPrefix + sessionName
}

// BaseArtifactName returns the base artifact identity for an engine
// version, e.g. BaseArtifactName("v3") == "skybox-base-v3". Local images
// use the same string as a tag via BaseImageTag.
func BaseArtifactName(version string) string {
	return BaseArtifactPrefix + "-" + version
}

// BaseImageTag returns the local image reference for a base version.
func BaseImageTag(version string) string {
	return BaseArtifactPrefix + ":" + version
}
