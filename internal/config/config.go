package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/joho/godotenv"
)

// sessionNameRegex validates session names.
// Names must start with a lowercase letter or digit, followed by lowercase
// letters, digits, underscores, or hyphens. Maximum length is 63 characters
// (common container name limit).
var sessionNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidateSessionName checks if a session name is valid.
// Valid names:
//   - Start with a lowercase letter or digit
//   - Contain only lowercase letters, digits, underscores, or hyphens
//   - Are between 1 and 63 characters long
//   - Do not contain path separators or special characters
func ValidateSessionName(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}

	if !sessionNameRegex.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, underscores, or hyphens, and be at most 63 characters", name)
	}

	return nil
}

// ValidateBranch checks that a git branch name is safe to pass to git and
// to embed in backend resource names.
func ValidateBranch(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with a dash")
	}
	if strings.Contains(branch, "..") {
		return fmt.Errorf("branch name cannot contain '..'")
	}
	for _, r := range branch {
		switch {
		case r <= 0x20 || r == 0x7f:
			return fmt.Errorf("branch name cannot contain whitespace or control characters")
		case strings.ContainsRune("~^:?*[\\", r):
			return fmt.Errorf("branch name cannot contain %q", r)
		}
	}
	if strings.HasSuffix(branch, "/") || strings.HasSuffix(branch, ".lock") {
		return fmt.Errorf("invalid branch name %q", branch)
	}
	return nil
}

// SafeJoin joins a user-supplied relative path under base, refusing
// traversal outside it.
func SafeJoin(base, rel string) (string, error) {
	joined, err := securejoin.SecureJoin(base, rel)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", rel, err)
	}
	return joined, nil
}

// Provider tags selectable in configuration.
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// DefaultCloudAPIURL is the control plane endpoint unless overridden.
const DefaultCloudAPIURL = "https://api.skybox.dev/v1"

// Config is the merged skybox configuration: built-in defaults, then the
// TOML file, then SKYBOX_* environment variables, strongest last.
type Config struct {
	Provider    string `toml:"provider"`      // local|remote
	Engine      string `toml:"engine"`        // container engine binary, empty = auto-detect
	Agent       string `toml:"agent"`         // default coding agent
	Model       string `toml:"model"`         // default model passed to the agent
	Region      string `toml:"region"`        // remote region
	CloudAPIURL string `toml:"cloud_api_url"` // control plane base URL

	// APIToken is never written to the config file; it comes from the
	// environment or the secret store.
	APIToken string `toml:"-"`
}

func defaultConfig() *Config {
	return &Config{
		Provider:    ProviderLocal,
		Agent:       "claude",
		Region:      "us-east",
		CloudAPIURL: DefaultCloudAPIURL,
	}
}

// Load builds the merged configuration. A missing config file is not an
// error; a malformed one is.
func Load(paths *Paths) (*Config, error) {
	// Pick up a local .env first so its variables participate in the
	// override pass. Existing environment always wins.
	_ = godotenv.Load()

	cfg := defaultConfig()

	if _, err := os.Stat(paths.ConfigPath); err == nil {
		if _, err := toml.DecodeFile(paths.ConfigPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", paths.ConfigPath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"SKYBOX_PROVIDER":  &cfg.Provider,
		"SKYBOX_ENGINE":    &cfg.Engine,
		"SKYBOX_AGENT":     &cfg.Agent,
		"SKYBOX_MODEL":     &cfg.Model,
		"SKYBOX_REGION":    &cfg.Region,
		"SKYBOX_API_URL":   &cfg.CloudAPIURL,
		"SKYBOX_API_TOKEN": &cfg.APIToken,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal, ProviderRemote:
	default:
		return fmt.Errorf("invalid provider %q (must be %s or %s)", c.Provider, ProviderLocal, ProviderRemote)
	}
	if c.CloudAPIURL == "" {
		return fmt.Errorf("cloud_api_url cannot be empty")
	}
	return nil
}

// Save writes the configuration file. The token is deliberately excluded.
func (c *Config) Save(paths *Paths) error {
	if err := paths.EnsureDirs(); err != nil {
		return err
	}
	f, err := os.OpenFile(paths.ConfigPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}
