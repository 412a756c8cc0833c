// Package config provides configuration types and loading for skybox.
//
// # Configuration Sources
//
// The merged configuration comes from three layers, strongest last:
//
//   - Built-in defaults (local provider, claude agent, us-east region)
//   - ~/.skybox/config.toml
//   - SKYBOX_* environment variables (a .env file in the working directory
//     is loaded first and never overrides the real environment)
//
// # Global Configuration
//
// Config contains the engine-wide settings:
//
//	type Config struct {
//	    Provider    string // "local" or "remote"
//	    Engine      string // container engine binary, empty = auto-detect
//	    Agent       string // default coding agent
//	    Model       string // default model passed to the agent
//	    Region      string // remote region
//	    CloudAPIURL string // control plane base URL
//	}
//
// # Per-Repository Settings
//
// A repository may carry a .skybox.yml with session defaults:
//
//	agent: claude
//	model: opus
//	init:
//	  - npm install
//	mount: services/api
//
// Flags beat .skybox.yml, which beats config.toml.
//
// # Paths
//
// Paths resolves the state directory layout under ~/.skybox (overridable
// with SKYBOX_HOME): the session database, the config file, the fallback
// credentials file, and host-side worktrees for mount-mode sessions.
//
// # Validation
//
// Session names are restricted to container-safe characters; branch names
// are checked against git ref rules; user-supplied relative paths are
// joined with SafeJoin, which refuses traversal outside the base.
package config
