package config

import (
	"path/filepath"
	"testing"
)

func TestLoadOrCreate_FirstRunDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrCreate(dir)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}

	if cfg.DeviceID == "" {
		t.Error("DeviceID not generated")
	}
	if cfg.Channel != DefaultChannel {
		t.Errorf("Channel = %q, want %q", cfg.Channel, DefaultChannel)
	}
	if cfg.PrivateKeyPath != filepath.Join(dir, "device.key") {
		t.Errorf("PrivateKeyPath = %q, want under data dir", cfg.PrivateKeyPath)
	}
}

func TestLoadOrCreate_Persists(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreate(dir)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}

	second, err := LoadOrCreate(dir)
	if err != nil {
		t.Fatalf("second LoadOrCreate failed: %v", err)
	}
	if second.DeviceID != first.DeviceID {
		t.Error("DeviceID changed across loads")
	}
}

func TestSaveAndReload_KeepsFields(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrCreate(dir)
	if err != nil {
		t.Fatalf("LoadOrCreate failed: %v", err)
	}
	cfg.Broker = "tcp://broker.example.com:1883"
	cfg.Channel = "dev"
	if err := cfg.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := LoadOrCreate(dir)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Broker != cfg.Broker || reloaded.Channel != "dev" {
		t.Error("saved fields did not survive reload")
	}
}

func TestResolveDataDir_EnvOverride(t *testing.T) {
	t.Setenv("DRIFTWIRE_DATA_DIR", "/tmp/driftwire-test")

	dir, err := ResolveDataDir()
	if err != nil {
		t.Fatalf("ResolveDataDir failed: %v", err)
	}
	if dir != "/tmp/driftwire-test" {
		t.Errorf("ResolveDataDir = %q, want the override", dir)
	}
}
