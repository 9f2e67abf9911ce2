package main

import (
	"flag"
	"io"
	"testing"
)

func TestFlagOverrides(t *testing.T) {
	fs := flag.NewFlagSet("rolloutkv-server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("config", "", "")
	fs.String("addr", "", "")
	fs.String("data-dir", "", "")
	fs.String("log-level", "", "")

	if err := fs.Parse([]string{"-config", "c.yaml", "-data-dir", "/tmp/kv", "-log-level", "debug"}); err != nil {
		t.Fatal(err)
	}

	got := flagOverrides(fs)
	want := map[string]string{
		"storage.data_dir": "/tmp/kv",
		"log.level":        "debug",
	}
	if len(got) != len(want) {
		t.Fatalf("overrides = %v, want %v", got, want)
	}
	for key, value := range want {
		if got[key] != value {
			t.Errorf("%s = %v, want %q", key, got[key], value)
		}
	}
}

func TestLoadConfig_FlagsWin(t *testing.T) {
	t.Setenv("ROLLOUTKV_STORAGE__BACKEND", "badger")

	o := map[string]any{"storage.backend": "memory", "log.level": "warn"}
	cfg, err := loadConfig(newLoader("", o))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Backend = %q, want %q", cfg.Storage.Backend, "memory")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
}
