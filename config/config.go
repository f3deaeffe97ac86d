package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DeviceSettings selects a default target device so multi-device accounts
// can skip the interactive picker.
type DeviceSettings struct {
	DefaultID string `toml:"default_id,omitempty"`
}

// AuthSettings controls where the credential blob lives and whether it is
// encrypted at rest.
type AuthSettings struct {
	// File overrides the default auth file path (<data_dir>/auth.json).
	File string `toml:"file,omitempty"`

	// Encryption is "none" or "ssh_key".
	Encryption string `toml:"encryption,omitempty"`

	// SSHKeyPath names the private key used when Encryption is "ssh_key".
	SSHKeyPath string `toml:"ssh_key_path,omitempty"`
}

// HistorySettings controls the local conversation archive.
type HistorySettings struct {
	Archive bool `toml:"archive"`
}

// Settings is the on-disk shape of settings.toml.
type Settings struct {
	DataDirectory string          `toml:"data_directory"`
	Device        DeviceSettings  `toml:"device"`
	Auth          AuthSettings    `toml:"auth"`
	History       HistorySettings `toml:"history"`
}

// Config is the resolved runtime configuration: settings file plus
// environment overrides, with all paths expanded.
type Config struct {
	DataDirectory   string
	DefaultDeviceID string
	AuthFile        string
	AuthEncryption  string
	SSHKeyPath      string
	ArchiveHistory  bool
}

var Debug = false
var DebugLog *log.Logger

// DataDir returns the expanded data directory path.
func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if dataDir := os.Getenv("MICLI_DATA_DIR"); dataDir != "" {
		c.DataDirectory = dataDir
	}
	if authFile := os.Getenv("MICLI_AUTH_FILE"); authFile != "" {
		c.AuthFile = authFile
	}
	if deviceID := os.Getenv("MICLI_DEVICE_ID"); deviceID != "" {
		c.DefaultDeviceID = deviceID
	}
}

func CheckDebug() bool {
	debug := os.Getenv("MICLI_DEBUG")
	return debug == "true" || debug == "1"
}

// InitDebugLog opens the file-backed debug logger when MICLI_DEBUG is set.
func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	Debug = true
	logPath := filepath.Join(dataDir, "debug.log")

	// 0600 - the log can contain device IDs and request payloads
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (MICLI_DEBUG=%s) ===", os.Getenv("MICLI_DEBUG"))
}

func defaultSettings() Settings {
	return Settings{
		DataDirectory: GetDefaultDataDir(),
		Auth:          AuthSettings{Encryption: "none"},
		History:       HistorySettings{Archive: true},
	}
}

// Load reads settings.toml (creating a commented default on first run),
// applies environment overrides and prepares the data directory.
func Load() (*Config, error) {
	settings := defaultSettings()

	settingsPath := GetSettingsFilePath()
	if FileExists(settingsPath) {
		if _, err := toml.DecodeFile(settingsPath, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", settingsPath, err)
		}
	} else if err := writeDefaultSettings(settingsPath); err != nil {
		return nil, fmt.Errorf("failed to create default settings: %w", err)
	}

	cfg := &Config{
		DataDirectory:   settings.DataDirectory,
		DefaultDeviceID: settings.Device.DefaultID,
		AuthFile:        settings.Auth.File,
		AuthEncryption:  settings.Auth.Encryption,
		SSHKeyPath:      ExpandPath(settings.Auth.SSHKeyPath),
		ArchiveHistory:  settings.History.Archive,
	}
	if cfg.AuthEncryption == "" {
		cfg.AuthEncryption = "none"
	}
	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	if cfg.AuthFile == "" {
		cfg.AuthFile = filepath.Join(dataDir, "auth.json")
	} else {
		cfg.AuthFile = ExpandPath(cfg.AuthFile)
	}

	return cfg, nil
}

func writeDefaultSettings(path string) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	// 0600 - the settings name the auth file and SSH key
	return os.WriteFile(path, []byte(settingsTemplate), 0600)
}

const settingsTemplate = `# micli configuration
# Location: ~/.config/micli/settings.toml
# This file uses TOML format: https://toml.io

# Directory where the auth blob and conversation archive are stored
data_directory = "~/.local/share/micli"

[device]
# Device ID to target when -d/--device-id is not given.
# Leave empty to pick interactively (or automatically with one device).
default_id = ""

[auth]
# Override the auth file path (default: <data_directory>/auth.json)
file = ""

# "none" stores the auth blob as plain JSON with 0600 permissions.
# "ssh_key" encrypts it with a key derived from the SSH key below.
encryption = "none"
ssh_key_path = ""

[history]
# Keep a local sqlite archive of fetched conversation history
# (enables "micli history --offline")
archive = true
`
