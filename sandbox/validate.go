//go:build linux

package sandbox

import (
	"errors"
	"fmt"

	"github.com/allisonkarlitskaya/flatpak-go/manifest"
)

// validateConfig aggregates every independent Config/Environment problem
// into a single error via errors.Join, rather than failing on the first one
// found, mirroring the teacher's "validate at the boundary" idiom.
func validateConfig(cfg *Config, env Environment) error {
	var errs []error

	if env.HomeDir == "" {
		errs = append(errs, fmt.Errorf("environment: HomeDir is required"))
	}

	if env.HostEnv == nil {
		errs = append(errs, fmt.Errorf("environment: HostEnv is required"))
	}

	if cfg.Type < Simple || cfg.Type > TryMapping {
		errs = append(errs, fmt.Errorf("config: Type %d is not a valid SandboxType", cfg.Type))
	}

	if cfg.Mapping < NoPreserve || cfg.Mapping > PreserveAsUser {
		errs = append(errs, fmt.Errorf("config: Mapping %d is not a valid MappingType", cfg.Mapping))
	}

	for key := range cfg.Env {
		if key == "" {
			errs = append(errs, fmt.Errorf("config: Env contains an empty variable name"))

			break
		}
	}

	return errors.Join(errs...)
}

// validateAppManifest checks the invariants spec.md §7 calls out as
// configuration errors for an app image's manifest: a command to run and a
// runtime to mount /usr from.
func validateAppManifest(m manifest.Manifest) error {
	var errs []error

	if m.Command() == "" {
		errs = append(errs, fmt.Errorf("manifest: missing Application.command"))
	}

	if _, ok := m.Runtime(); !ok {
		errs = append(errs, fmt.Errorf("manifest: missing Application.runtime"))
	}

	return errors.Join(errs...)
}
