//go:build linux

// Package sandbox builds and launches an isolated root filesystem for one
// app or runtime reference: user namespaces with subordinate-id mapping, the
// new mount API, FUSE-served content-addressed images, and an optional
// Wayland security context, composed into a single pivot_root and exec.
//
// # Platform / Dependencies
//
// This package is Linux-only (see the build tag above) and relies on kernel
// features that may be absent or restricted on some systems: unprivileged
// user namespaces, the new mount API (fsopen/fsmount/move_mount, Linux
// 5.2+), and /dev/fuse.
//
// # Planning vs Execution
//
// [NewDescriptor] validates caller input and resolves host identity
// (username, home directory) — none of this mutates process state.
// Subordinate id ranges are looked up later, by [Sandbox.Run].
// [Sandbox.Run] performs the actual namespace unshares, mount
// construction, and exec, and therefore can only be called once per process:
// after unshare(CLONE_NEWUSER) a process can never rejoin its original user
// namespace.
//
// # Security Note
//
// This package is intended to confine a cooperating application, not to
// resist a determined local attacker with unlimited syscall access. Its
// effective security properties depend on kernel namespace support, the
// content of the images it mounts, and the share flags the caller selects.
package sandbox

import (
	"fmt"
	"os"

	"github.com/allisonkarlitskaya/flatpak-go/manifest"
	"github.com/allisonkarlitskaya/flatpak-go/ref"
)

// ShareFlags selects which host resources are exposed inside the sandbox.
type ShareFlags struct {
	// Home bind-mounts the host home directory; otherwise an empty
	// directory owned by the target uid/gid is created.
	Home bool
	// XdgRuntimeDir bind-mounts the host XDG_RUNTIME_DIR; otherwise a fresh
	// tmpfs is mounted at /run/user/{uid}.
	XdgRuntimeDir bool
	// SessionBus bind-mounts the host session D-Bus socket as
	// /run/user/{uid}/bus.
	SessionBus bool
	// Wayland exposes the host Wayland compositor socket, via a
	// security-context-scoped listener when the compositor supports it.
	Wayland bool
}

// Config configures one sandbox run.
//
// The zero value is a usable default: no shares, no environment overrides,
// Simple id mapping (Mapping NoPreserve, which Simple does not consult).
type Config struct {
	// Command overrides the command to execute, taking precedence over the
	// app manifest's Application.command and the /bin/sh fallback.
	Command string

	// Args are extra arguments appended after Command.
	Args []string

	// Share selects host resources exposed inside the sandbox.
	Share ShareFlags

	// Env overrides environment variables exported to the child. A nil
	// value deletes the key from the composed environment (see §4.H step
	// 11); a non-nil value sets it.
	Env map[string]*string

	// Type selects the id-mapping strategy. The zero value is Simple; the
	// CLI sets TryMapping, which attempts subordinate-id helpers and falls
	// back to Simple.
	Type SandboxType

	// Mapping selects how the caller's host identity is preserved inside
	// the sandbox when Type uses subordinate-id mapping. The zero value is
	// NoPreserve; the CLI sets PreserveAsUser, which pins the host uid/gid
	// to the descriptor's uid/gid.
	Mapping MappingType

	// Debugf receives debug messages from descriptor construction and the
	// orchestrator. May be nil.
	Debugf Debugf
}

// Debugf receives debug messages from sandbox construction and execution.
//
// The function should be safe to call from any goroutine.
type Debugf func(format string, args ...any)

// Descriptor is the sandbox descriptor record assembled before unsharing
// (spec.md §3 "Sandbox descriptor"): everything the orchestrator needs to
// build and launch one sandbox run, fully resolved against the host so that
// [Sandbox.Run] itself makes no validation decisions.
//
// A Descriptor must not be copied after first use.
type Descriptor struct {
	noCopy noCopy

	Ref        ref.Ref
	InstanceID string

	Type    SandboxType
	Mapping MappingType

	UID, GID uint32

	Username, Groupname, Gecos, Home string

	Share ShareFlags

	// Env are environment overrides layered after the runtime manifest's
	// [Environment] section and before the fixed PATH/FLATPAK_ID/PS1
	// variables. A nil value deletes the key.
	Env map[string]*string

	// InheritFds are file descriptors that must remain open (and have
	// CLOEXEC cleared) across the final exec, keyed by the fd number the
	// child will see.
	InheritFds map[int]*os.File

	Command string
	Args    []string

	Debugf Debugf
}

// NewDescriptor validates cfg and env and resolves host identity (current
// uid/gid, username, home directory) into a Descriptor ready for
// [Sandbox.Run].
//
// cfg and env are not retained: Env is deep-copied so later mutation of cfg
// does not affect the returned Descriptor.
func NewDescriptor(r ref.Ref, cfg Config, env Environment) (*Descriptor, error) {
	if err := validateConfig(&cfg, env); err != nil {
		return nil, fmt.Errorf("sandbox: validating: %w", err)
	}

	uid := uint32(os.Getuid())
	gid := uint32(os.Getgid())

	username := env.HostEnv["USER"]
	if username == "" {
		username = env.HostEnv["LOGNAME"]
	}

	if username == "" {
		return nil, fmt.Errorf("sandbox: unable to determine username (USER/LOGNAME unset)")
	}

	d := &Descriptor{
		Ref:        r,
		InstanceID: fmt.Sprintf("%d", os.Getpid()),
		Type:       cfg.Type,
		Mapping:    cfg.Mapping,
		UID:        uid,
		GID:        gid,
		Username:   username,
		Groupname:  username,
		Gecos:      username,
		Home:       env.HomeDir,
		Share:      cfg.Share,
		Env:        cloneEnvOverrides(cfg.Env),
		InheritFds: map[int]*os.File{},
		Command:    cfg.Command,
		Args:       append([]string(nil), cfg.Args...),
		Debugf:     cfg.Debugf,
	}

	return d, nil
}

func (d *Descriptor) debugf(format string, args ...any) {
	if d.Debugf != nil {
		d.Debugf(format, args...)
	}
}

func (d *Descriptor) setenv(key, value string) {
	if d.Env == nil {
		d.Env = map[string]*string{}
	}

	v := value
	d.Env[key] = &v
}

func (d *Descriptor) unsetenv(key string) {
	if d.Env == nil {
		d.Env = map[string]*string{}
	}

	d.Env[key] = nil
}

// composeEnvironment layers runtime manifest environment, descriptor
// overrides, and finally the fixed PATH/FLATPAK_ID/PS1 variables, per
// spec.md §4.H step 11.
func (d *Descriptor) composeEnvironment(runtimeManifest manifest.Manifest) map[string]string {
	out := runtimeManifest.Environment()

	for key, value := range d.Env {
		if value == nil {
			delete(out, key)
		} else {
			out[key] = *value
		}
	}

	out["PATH"] = "/app/bin:/usr/bin"
	out["FLATPAK_ID"] = d.Ref.ID()
	out["PS1"] = fmt.Sprintf("[📦 %s \\W]\\$ ", d.Ref.ID())

	return out
}

func cloneEnvOverrides(env map[string]*string) map[string]*string {
	if env == nil {
		return map[string]*string{}
	}

	out := make(map[string]*string, len(env))

	for k, v := range env {
		if v == nil {
			out[k] = nil

			continue
		}

		value := *v
		out[k] = &value
	}

	return out
}

// marker for go vet.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// internalErrorf reports an internal invariant violation: a bug in this
// package, rather than invalid caller input.
func internalErrorf(op, format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)

	if op == "" {
		return fmt.Errorf("sandbox: internal error: %s", detail)
	}

	return fmt.Errorf("sandbox: internal error: %s: %s", op, detail)
}
