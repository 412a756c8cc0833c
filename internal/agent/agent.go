// Package agent describes the coding-agent CLIs that run inside sandboxes.
// Each agent knows how to build its launch command line, which environment
// variable carries its API key, and how it is installed into the base image.
package agent

import (
	"sort"
	"strings"

	"github.com/skybox-dev/skybox/internal/errors"
)

// DefaultName is the agent used when the caller does not pick one.
const DefaultName = "claude"

// LaunchOptions configures one agent invocation inside a sandbox.
type LaunchOptions struct {
	// Model overrides the agent's default model when non-empty.
	Model string
	// Prompt is the initial task prompt. Empty means the agent starts
	// without an assignment and waits for input.
	Prompt string
	// Continue restarts the agent against its previous conversation,
	// used when a session is resumed.
	Continue bool
}

// Agent represents one supported coding-agent CLI.
type Agent interface {
	// Name returns the agent identifier (e.g., "claude").
	Name() string

	// Command returns the argv that starts the agent in the session
	// workspace. The caller is responsible for shell quoting if the
	// argv is flattened into a shell command line.
	Command(opts LaunchOptions) []string

	// AuthEnvVar returns the environment variable the agent reads its
	// API key from.
	AuthEnvVar() string

	// SecretAccount returns the credential-store account name the key
	// is stored under.
	SecretAccount() string

	// InstallCommand returns the shell command that installs the agent
	// CLI into the base artifact.
	InstallCommand() string
}

// New returns the Agent registered under name.
func New(name string) (Agent, error) {
	switch name {
	case "claude":
		return &ClaudeAgent{}, nil
	case "codex":
		return &CodexAgent{}, nil
	case "aider":
		return &AiderAgent{}, nil
	default:
		e := errors.ValidationError("unknown agent: " + name)
		e.Hint = "supported agents: " + strings.Join(Names(), ", ")
		return nil, e
	}
}

// Names returns the sorted list of registered agent names.
func Names() []string {
	names := []string{"claude", "codex", "aider"}
	sort.Strings(names)
	return names
}

// All returns every registered agent, ordered by name.
func All() []Agent {
	var agents []Agent
	for _, name := range Names() {
		a, err := New(name)
		if err != nil {
			continue
		}
		agents = append(agents, a)
	}
	return agents
}
