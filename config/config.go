// Package config manages persistent local-device settings: where the
// database and key files live, which broker and channel to join, and the
// device's identity paths.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

const (
	// AppDirectoryName is the per-user application data directory name.
	AppDirectoryName = "driftwire"
	// DefaultChannel is the channel joined when none is configured.
	DefaultChannel = "lobby"
	// configFileName is the persisted configuration file.
	configFileName = "config.json"
)

// DeviceConfig contains persistent local-device settings.
type DeviceConfig struct {
	DeviceID       string `json:"device_id"`
	DeviceName     string `json:"device_name"`
	Broker         string `json:"broker"`
	BrokerUsername string `json:"broker_username,omitempty"`
	BrokerPassword string `json:"broker_password,omitempty"`
	UseTLS         bool   `json:"use_tls"`
	Channel        string `json:"channel"`
	PrivateKeyPath string `json:"private_key_path"`
	PublicKeyPath  string `json:"public_key_path"`
}

// ResolveDataDir returns the OS-aware app data directory.
//
// If DRIFTWIRE_DATA_DIR is set, its value is used as an explicit override.
func ResolveDataDir() (string, error) {
	if override := os.Getenv("DRIFTWIRE_DATA_DIR"); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_DATA_HOME")
		if base == "" {
			base = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

// LoadOrCreate reads the device config under dataDir, creating it with
// generated defaults on first run.
func LoadOrCreate(dataDir string) (*DeviceConfig, error) {
	path := filepath.Join(dataDir, configFileName)

	raw, err := os.ReadFile(path)
	if err == nil {
		var cfg DeviceConfig
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
		cfg.applyDefaults(dataDir)
		return &cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	cfg := &DeviceConfig{}
	cfg.applyDefaults(dataDir)
	if err := cfg.Save(dataDir); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config under dataDir, creating the directory if needed.
func (c *DeviceConfig) Save(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir %q: %w", dataDir, err)
	}

	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	path := filepath.Join(dataDir, configFileName)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}

func (c *DeviceConfig) applyDefaults(dataDir string) {
	if c.DeviceID == "" {
		c.DeviceID = uuid.NewString()
	}
	if c.DeviceName == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "driftwire-device"
		}
		c.DeviceName = host
	}
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	if c.PrivateKeyPath == "" {
		c.PrivateKeyPath = filepath.Join(dataDir, "device.key")
	}
	if c.PublicKeyPath == "" {
		c.PublicKeyPath = filepath.Join(dataDir, "device.pub")
	}
}
