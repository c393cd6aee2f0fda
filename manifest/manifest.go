// Package manifest parses the INI-shaped metadata document ("metadata" in
// OCI image labels) describing how to run an installed app or runtime image.
package manifest

import (
	"fmt"
	"strings"

	"github.com/mvo5/goconfigparser"

	"github.com/allisonkarlitskaya/flatpak-go/ref"
)

// Manifest is a parsed metadata document.
//
// The document has an [Application] (or [Runtime]) section naming the
// command to execute and, for apps, the runtime they depend on, plus an
// optional [Environment] section of environment variable overrides exported
// to the sandboxed process.
type Manifest struct {
	command     string
	runtime     ref.Ref
	hasRuntime  bool
	environment map[string]string
}

// Parse parses raw metadata content (see the OCI image spec "metadata"
// label, or a loose `.metadata` file on disk for local development).
//
// This is a true INI parse (unlike a naive line scan for a "runtime="
// prefix): section headers are honored, so a `runtime=` key outside
// [Application] does not spuriously match.
func Parse(content string) (Manifest, error) {
	cfg := goconfigparser.New()
	cfg.AllowNoSectionHeader = false

	if err := cfg.Read(strings.NewReader(content)); err != nil {
		return Manifest{}, fmt.Errorf("manifest: parse: %w", err)
	}

	m := Manifest{environment: map[string]string{}}

	section := "Application"
	if !hasSection(cfg, section) {
		section = "Runtime"
	}

	command, err := cfg.Get(section, "command")
	if err == nil {
		m.command = command
	}

	if runtimeStr, err := cfg.Get("Application", "runtime"); err == nil && runtimeStr != "" {
		r, err := ref.NewRuntime(parseRuntimeField(runtimeStr))
		if err != nil {
			return Manifest{}, fmt.Errorf("manifest: invalid runtime field %q: %w", runtimeStr, err)
		}

		m.runtime = r
		m.hasRuntime = true
	}

	m.environment = parseEnvironmentSection(content)

	return m, nil
}

// parseEnvironmentSection extracts "key=value" lines under an [Environment]
// header. goconfigparser exposes lookup by (section, key) but not
// enumeration of a section's keys, so environment variables (an open-ended
// set, unlike command/runtime) are read directly off the section body; this
// is still section-aware, unlike a bare "runtime=" line scan that does not
// care which section it is in.
func parseEnvironmentSection(content string) map[string]string {
	env := map[string]string{}

	inSection := false

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			inSection = trimmed == "[Environment]"

			continue
		}

		if !inSection || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		key, value, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}

		env[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return env
}

// parseRuntimeField splits a flatpak-style "id/arch/branch" runtime
// reference field into its three parts.
func parseRuntimeField(field string) (id, arch, branch string) {
	parts := strings.SplitN(field, "/", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}

	return parts[0], parts[1], parts[2]
}

// Command returns the executable to run inside the sandbox, or "" if the
// manifest does not specify one (the orchestrator then falls back to a CLI
// override or /bin/sh).
func (m Manifest) Command() string { return m.command }

// Runtime returns the runtime this app depends on and whether one was
// declared (always false for a runtime's own manifest).
func (m Manifest) Runtime() (ref.Ref, bool) { return m.runtime, m.hasRuntime }

// Environment returns the [Environment] section as a map. The returned map
// is owned by the caller and may be mutated freely.
func (m Manifest) Environment() map[string]string {
	out := make(map[string]string, len(m.environment))
	for k, v := range m.environment {
		out[k] = v
	}

	return out
}

func hasSection(cfg *goconfigparser.ConfigParser, name string) bool {
	for _, s := range cfg.Sections() {
		if s == name {
			return true
		}
	}

	return false
}

