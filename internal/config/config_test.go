package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPaths_HomeOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(envHome, tmpDir)

	paths := DefaultPaths()

	if paths.DataDir != tmpDir {
		t.Errorf("DataDir = %q, want %q", paths.DataDir, tmpDir)
	}
	if paths.DBPath != filepath.Join(tmpDir, "skybox.db") {
		t.Errorf("DBPath = %q, want under %q", paths.DBPath, tmpDir)
	}
	if paths.ConfigPath != filepath.Join(tmpDir, "config.toml") {
		t.Errorf("ConfigPath = %q, want under %q", paths.ConfigPath, tmpDir)
	}
	if paths.WorktreesDir != filepath.Join(tmpDir, "worktrees") {
		t.Errorf("WorktreesDir = %q, want under %q", paths.WorktreesDir, tmpDir)
	}
}

func TestContainerName(t *testing.T) {
	tests := []struct {
		sessionName string
		want        string
	}{
		{"feature-auth", "skybox-feature-auth"},
		{"fix-123", "skybox-fix-123"},
		{"", "skybox-"},
	}

	for _, tt := range tests {
		t.Run(tt.sessionName, func(t *testing.T) {
			got := ContainerName(tt.sessionName)
			if got != tt.want {
				t.Errorf("ContainerName(%q) = %q, want %q", tt.sessionName, got, tt.want)
			}
		})
	}
}

func TestBaseArtifactNames(t *testing.T) {
	if got := BaseArtifactName("v3"); got != "skybox-base-v3" {
		t.Errorf("BaseArtifactName = %q, want %q", got, "skybox-base-v3")
	}
	if got := BaseImageTag("v3"); got != "skybox-base:v3" {
		t.Errorf("BaseImageTag = %q, want %q", got, "skybox-base:v3")
	}
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	clearSkyboxEnv(t)

	cfg, err := Load(PathsIn(tmpDir))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != ProviderLocal {
		t.Errorf("Provider = %q, want %q", cfg.Provider, ProviderLocal)
	}
	if cfg.Agent != "claude" {
		t.Errorf("Agent = %q, want claude", cfg.Agent)
	}
	if cfg.CloudAPIURL != DefaultCloudAPIURL {
		t.Errorf("CloudAPIURL = %q, want %q", cfg.CloudAPIURL, DefaultCloudAPIURL)
	}
}

func TestLoad_TOMLFile(t *testing.T) {
	tmpDir := t.TempDir()
	clearSkyboxEnv(t)
	paths := PathsIn(tmpDir)

	content := "provider = \"remote\"\nregion = \"eu-west\"\nmodel = \"opus\"\n"
	if err := os.WriteFile(paths.ConfigPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(paths)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != ProviderRemote {
		t.Errorf("Provider = %q, want remote", cfg.Provider)
	}
	if cfg.Region != "eu-west" {
		t.Errorf("Region = %q, want eu-west", cfg.Region)
	}
	if cfg.Model != "opus" {
		t.Errorf("Model = %q, want opus", cfg.Model)
	}
	// Unset file keys keep their defaults.
	if cfg.Agent != "claude" {
		t.Errorf("Agent = %q, want claude", cfg.Agent)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	tmpDir := t.TempDir()
	clearSkyboxEnv(t)
	paths := PathsIn(tmpDir)

	if err := os.WriteFile(paths.ConfigPath, []byte("provider = \"local\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("SKYBOX_PROVIDER", "remote")
	t.Setenv("SKYBOX_API_TOKEN", "sk-test-123")

	cfg, err := Load(paths)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Provider != ProviderRemote {
		t.Errorf("Provider = %q, want remote (env override)", cfg.Provider)
	}
	if cfg.APIToken != "sk-test-123" {
		t.Errorf("APIToken = %q, want sk-test-123", cfg.APIToken)
	}
}

func TestLoad_InvalidProvider(t *testing.T) {
	tmpDir := t.TempDir()
	clearSkyboxEnv(t)
	t.Setenv("SKYBOX_PROVIDER", "mainframe")

	_, err := Load(PathsIn(tmpDir))
	if err == nil {
		t.Error("expected error for invalid provider, got nil")
	}
}

func TestLoad_MalformedTOML(t *testing.T) {
	tmpDir := t.TempDir()
	clearSkyboxEnv(t)
	paths := PathsIn(tmpDir)

	if err := os.WriteFile(paths.ConfigPath, []byte("provider = [broken"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, err := Load(paths)
	if err == nil {
		t.Error("expected error for malformed TOML, got nil")
	}
}

func clearSkyboxEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SKYBOX_PROVIDER", "SKYBOX_ENGINE", "SKYBOX_AGENT", "SKYBOX_MODEL",
		"SKYBOX_REGION", "SKYBOX_API_URL", "SKYBOX_API_TOKEN",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestValidateSessionName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		// Valid names
		{"myproject", false},
		{"my-project", false},
		{"my_project", false},
		{"project123", false},
		{"123project", false},
		{"a", false},

		// Invalid names
		{"", true},                             // empty
		{"My-Project", true},                   // uppercase
		{"my project", true},                   // space
		{"../../../etc/passwd", true},          // path traversal
		{"/absolute/path", true},               // absolute path
		{"my.project", true},                   // dots
		{"-starts-with-dash", true},            // starts with dash
		{"_starts_with_underscore", true},      // starts with underscore
		{"has;semicolon", true},                // injection attempt
		{"a" + strings.Repeat("b", 63), true},  // too long (64 chars)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestValidateBranch(t *testing.T) {
	tests := []struct {
		branch  string
		wantErr bool
	}{
		{"main", false},
		{"feature/login", false},
		{"fix-123", false},
		{"release/v1.2.3", false},

		{"", true},
		{"-leading-dash", true},
		{"double..dot", true},
		{"has space", true},
		{"has~tilde", true},
		{"has^caret", true},
		{"has:colon", true},
		{"glob*star", true},
		{"trailing/", true},
		{"refs/heads/x.lock", true},
	}

	for _, tt := range tests {
		t.Run(tt.branch, func(t *testing.T) {
			err := ValidateBranch(tt.branch)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBranch(%q) error = %v, wantErr %v", tt.branch, err, tt.wantErr)
			}
		})
	}
}

func TestSafeJoin(t *testing.T) {
	base := t.TempDir()

	got, err := SafeJoin(base, "services/api")
	if err != nil {
		t.Fatalf("SafeJoin failed: %v", err)
	}
	if got != filepath.Join(base, "services", "api") {
		t.Errorf("SafeJoin = %q, want %q", got, filepath.Join(base, "services", "api"))
	}

	// Traversal is clamped inside the base, never escaping it.
	got, err = SafeJoin(base, "../../etc/passwd")
	if err != nil {
		t.Fatalf("SafeJoin failed: %v", err)
	}
	if !strings.HasPrefix(got, base) {
		t.Errorf("SafeJoin escaped base: %q", got)
	}
}
