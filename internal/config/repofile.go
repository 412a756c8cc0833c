package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// RepoFileName is the optional per-repository settings file checked into
// the target repo.
const RepoFileName = ".skybox.yml"

// RepoFile carries per-repository session defaults. Values here lose to
// explicit CLI flags but beat the global config.
type RepoFile struct {
	Agent string   `yaml:"agent,omitempty"`
	Model string   `yaml:"model,omitempty"`
	Init  []string `yaml:"init,omitempty"`  // shell lines run after clone
	Mount string   `yaml:"mount,omitempty"` // relative dir for mount-mode sessions
}

// LoadRepoFile reads .skybox.yml from the repository root. A missing file
// returns (nil, nil).
func LoadRepoFile(repoRoot string) (*RepoFile, error) {
	path := filepath.Join(repoRoot, RepoFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", RepoFileName, err)
	}

	var rf RepoFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", RepoFileName, err)
	}
	return &rf, nil
}

// ResolveMount resolves the mount setting against the repository root,
// refusing paths that escape it.
func (r *RepoFile) ResolveMount(repoRoot string) (string, error) {
	if r == nil || r.Mount == "" {
		return "", nil
	}
	resolved, err := SafeJoin(repoRoot, r.Mount)
	if err != nil {
		return "", err
	}
	return resolved, nil
}
