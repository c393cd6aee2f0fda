package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func boolPtr(b bool) *bool { return &b }

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string // content written at $XDG_CONFIG_HOME/flatpak-go/config.jsonc, "" to skip
		want    Config
		wantErr string
	}{
		{
			name: "defaults when no config file",
			want: DefaultConfig(),
		},
		{
			name: "repository override",
			file: `{"repository": "https://example.com/"}`,
			want: Config{
				Repository: "https://example.com/",
				Share:      ShareConfig{Home: boolPtr(true), Wayland: boolPtr(true)},
			},
		},
		{
			name: "share overrides merge over defaults",
			file: `{"share": {"session-bus": true, "home": false}}`,
			want: Config{
				Repository: defaultRepository,
				Share: ShareConfig{
					Home:       boolPtr(false),
					Wayland:    boolPtr(true),
					SessionBus: boolPtr(true),
				},
			},
		},
		{
			name:    "unknown field rejected",
			file:    `{"bogus": true}`,
			wantErr: "parsing config",
		},
		{
			name:    "malformed JSONC rejected",
			file:    `{"repository": }`,
			wantErr: "parsing config",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			xdgConfig := t.TempDir()

			if tc.file != "" {
				dir := filepath.Join(xdgConfig, "flatpak-go")
				if err := os.MkdirAll(dir, 0o755); err != nil {
					t.Fatal(err)
				}

				if err := os.WriteFile(filepath.Join(dir, "config.jsonc"), []byte(tc.file), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			got, err := LoadConfig(map[string]string{"XDG_CONFIG_HOME": xdgConfig})

			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("LoadConfig() error = %v, want substring %q", err, tc.wantErr)
				}

				return
			}

			if err != nil {
				t.Fatalf("LoadConfig() unexpected error: %v", err)
			}

			if got.Repository != tc.want.Repository {
				t.Errorf("Repository = %q, want %q", got.Repository, tc.want.Repository)
			}

			if boolVal(got.Share.Home, false) != boolVal(tc.want.Share.Home, false) {
				t.Errorf("Share.Home = %v, want %v", got.Share.Home, tc.want.Share.Home)
			}

			if boolVal(got.Share.Wayland, false) != boolVal(tc.want.Share.Wayland, false) {
				t.Errorf("Share.Wayland = %v, want %v", got.Share.Wayland, tc.want.Share.Wayland)
			}

			if boolVal(got.Share.SessionBus, false) != boolVal(tc.want.Share.SessionBus, false) {
				t.Errorf("Share.SessionBus = %v, want %v", got.Share.SessionBus, tc.want.Share.SessionBus)
			}
		})
	}
}

func TestConfigPathUsesXDGConfigHome(t *testing.T) {
	t.Parallel()

	path, err := configPath(map[string]string{"XDG_CONFIG_HOME": "/tmp/xdg"})
	if err != nil {
		t.Fatal(err)
	}

	if want := "/tmp/xdg/flatpak-go/config.jsonc"; path != want {
		t.Errorf("configPath() = %q, want %q", path, want)
	}
}

func TestStoreRootUsesXDGDataHome(t *testing.T) {
	t.Parallel()

	root, err := storeRoot(map[string]string{"XDG_DATA_HOME": "/tmp/xdg-data"})
	if err != nil {
		t.Fatal(err)
	}

	if want := "/tmp/xdg-data/flatpak-go/store"; root != want {
		t.Errorf("storeRoot() = %q, want %q", root, want)
	}
}
