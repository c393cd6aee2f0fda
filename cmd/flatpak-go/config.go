package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds defaults for flatpak-go's CLI flags, loaded (optionally) from
// $XDG_CONFIG_HOME/flatpak-go/config.jsonc before CLI flags are applied.
// CLI flags always take precedence over the file.
type Config struct {
	Repository string      `json:"repository,omitempty"`
	Share      ShareConfig `json:"share,omitempty"`
}

// ShareConfig mirrors sandbox.ShareFlags for JSONC (de)serialization.
type ShareConfig struct {
	Home          *bool `json:"home,omitempty"`
	Wayland       *bool `json:"wayland,omitempty"`
	SessionBus    *bool `json:"session-bus,omitempty"`
	XdgRuntimeDir *bool `json:"xdg-runtime-dir,omitempty"`
}

const defaultRepository = "https://registry.fedoraproject.org/"

// DefaultConfig returns flatpak-go's built-in defaults: the Fedora registry,
// and the "mapped-plus-wayland" share set (home + Wayland, matching
// original_source's run_sandboxed).
func DefaultConfig() Config {
	t := true

	return Config{
		Repository: defaultRepository,
		Share: ShareConfig{
			Home:    &t,
			Wayland: &t,
		},
	}
}

// LoadConfig reads the optional JSONC config file and merges it over the
// built-in defaults. A missing file is not an error.
func LoadConfig(env map[string]string) (Config, error) {
	cfg := DefaultConfig()

	path, err := configPath(env)
	if err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	var fileCfg Config

	decoder := json.NewDecoder(bytes.NewReader(standardized))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&fileCfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	mergeConfig(&cfg, fileCfg)

	return cfg, nil
}

func mergeConfig(cfg *Config, overlay Config) {
	if overlay.Repository != "" {
		cfg.Repository = overlay.Repository
	}

	if overlay.Share.Home != nil {
		cfg.Share.Home = overlay.Share.Home
	}

	if overlay.Share.Wayland != nil {
		cfg.Share.Wayland = overlay.Share.Wayland
	}

	if overlay.Share.SessionBus != nil {
		cfg.Share.SessionBus = overlay.Share.SessionBus
	}

	if overlay.Share.XdgRuntimeDir != nil {
		cfg.Share.XdgRuntimeDir = overlay.Share.XdgRuntimeDir
	}
}

func configPath(env map[string]string) (string, error) {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "flatpak-go", "config.jsonc"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, ".config", "flatpak-go", "config.jsonc"), nil
}

// storeRoot resolves the content-addressed store's on-disk location:
// $XDG_DATA_HOME/flatpak-go/store, or ~/.local/share/flatpak-go/store.
func storeRoot(env map[string]string) (string, error) {
	if xdg := env["XDG_DATA_HOME"]; xdg != "" {
		return filepath.Join(xdg, "flatpak-go", "store"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, ".local", "share", "flatpak-go", "store"), nil
}

func boolVal(b *bool, def bool) bool {
	if b == nil {
		return def
	}

	return *b
}
