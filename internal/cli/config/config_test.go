package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.CurrentProfile != DefaultProfile {
		t.Errorf("CurrentProfile = %q, want %q", cfg.CurrentProfile, DefaultProfile)
	}
	if cfg.Output != "table" {
		t.Errorf("Output = %q, want table", cfg.Output)
	}
	if cfg.Profiles == nil || len(cfg.Profiles) != 0 {
		t.Errorf("Profiles = %v, want empty map", cfg.Profiles)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if !strings.HasSuffix(path, filepath.Join(".rolloutkv", "cli.yaml")) {
		t.Errorf("DefaultConfigPath() = %q", path)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load should not error for a missing file: %v", err)
	}
	if cfg.Output != DefaultOutput {
		t.Errorf("Output = %q, want default", cfg.Output)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cli.yaml")

	cfg := Default()
	cfg.CurrentProfile = "staging"
	cfg.Output = "json"
	cfg.SetProfile("staging", Profile{
		Server:    "https://kv.staging.example.com",
		Instance:  "checkout",
		Transport: "connect",
		Timeout:   3 * time.Second,
		AdminKey:  "rkak_staging",
	})

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.CurrentProfile != "staging" || loaded.Output != "json" {
		t.Errorf("loaded = %+v", loaded)
	}
	p, ok := loaded.Profile("")
	if !ok {
		t.Fatal("current profile not found")
	}
	if p.Instance != "checkout" || p.Transport != "connect" || p.Timeout != 3*time.Second || p.AdminKey != "rkak_staging" {
		t.Errorf("profile = %+v", p)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte("output: table\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROLLOUTKV_CLI_OUTPUT", "yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output != "yaml" {
		t.Errorf("Output = %q, want yaml from env", cfg.Output)
	}
}

func TestProfile_FillsDefaults(t *testing.T) {
	cfg := Default()
	cfg.SetProfile("partial", Profile{Instance: "tenant-a"})

	p, ok := cfg.Profile("partial")
	if !ok {
		t.Fatal("profile should exist")
	}
	want := DefaultProfileValues()
	want.Instance = "tenant-a"
	if p != want {
		t.Errorf("Profile = %+v, want %+v", p, want)
	}

	if _, ok := cfg.Profile("unknown"); ok {
		t.Error("unknown profile should report ok=false")
	}
}

func TestProfileNames(t *testing.T) {
	cfg := Default()
	cfg.SetProfile("prod", Profile{})
	cfg.SetProfile("dev", Profile{})

	names := cfg.ProfileNames()
	if len(names) != 2 || names[0] != "dev" || names[1] != "prod" {
		t.Errorf("ProfileNames() = %v", names)
	}
}
