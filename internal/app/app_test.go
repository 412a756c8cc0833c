package app

import (
	"path/filepath"
	"testing"

	"github.com/skybox-dev/skybox/internal/config"
	"github.com/skybox-dev/skybox/internal/provider"
	"github.com/skybox-dev/skybox/internal/session"
	"github.com/skybox-dev/skybox/internal/task"
)

func TestNewDefaultsUnderSkyboxHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SKYBOX_HOME", home)
	t.Setenv("SKYBOX_PROVIDER", "")

	a, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Paths.DataDir != home {
		t.Errorf("DataDir = %q, want %q", a.Paths.DataDir, home)
	}
	if a.Config.Provider != config.ProviderLocal {
		t.Errorf("default provider = %q, want %q", a.Config.Provider, config.ProviderLocal)
	}
	if a.Store == nil || a.Secrets == nil || a.Queue == nil {
		t.Fatal("collaborators should all be initialized")
	}
}

func TestNewAppliesOptions(t *testing.T) {
	paths := config.PathsIn(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	store, err := session.Open(paths.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Provider: config.ProviderLocal, CloudAPIURL: config.DefaultCloudAPIURL}
	queue := task.NewQueue()

	a, err := New(
		WithPaths(paths),
		WithConfig(cfg),
		WithStore(store),
		WithQueue(queue),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Paths != paths || a.Config != cfg || a.Store != store || a.Queue != queue {
		t.Error("options should win over defaults")
	}
	if a.Secrets == nil {
		t.Error("unset collaborators should still be filled in")
	}
}

func TestProviderSelection(t *testing.T) {
	paths := config.PathsIn(t.TempDir())
	if err := paths.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	store, err := session.Open(filepath.Join(paths.DataDir, "skybox.db"))
	if err != nil {
		t.Fatal(err)
	}
	a, err := New(
		WithPaths(paths),
		WithConfig(&config.Config{Provider: config.ProviderLocal, CloudAPIURL: config.DefaultCloudAPIURL}),
		WithStore(store),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	p, err := a.Provider("")
	if err != nil {
		t.Fatalf("Provider(\"\"): %v", err)
	}
	if _, ok := p.(*provider.LocalProvider); !ok {
		t.Errorf("default provider type = %T, want *provider.LocalProvider", p)
	}

	p, err = a.Provider(config.ProviderRemote)
	if err != nil {
		t.Fatalf("Provider(remote): %v", err)
	}
	if _, ok := p.(*provider.CloudProvider); !ok {
		t.Errorf("remote provider type = %T, want *provider.CloudProvider", p)
	}

	if _, err := a.Provider("bogus"); err == nil {
		t.Error("unknown provider tag should error")
	}
}
