package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/allisonkarlitskaya/flatpak-go/ref"
	"github.com/allisonkarlitskaya/flatpak-go/sandbox"
	"github.com/allisonkarlitskaya/flatpak-go/store"
)

// cmdRun launches refStr inside a sandbox built from the locally installed
// image(s), with command/args overriding the app manifest's declared
// command when given after the ref.
func cmdRun(cfg Config, env map[string]string, debug *DebugLogger, refStr string, args []string, stdout, stderr io.Writer) int {
	r, err := ref.Parse(refStr)
	if err != nil {
		return reportErr(stderr, err)
	}

	storeRootDir, err := storeRoot(env)
	if err != nil {
		return reportErr(stderr, err)
	}

	repo := store.NewRepository(store.Open(storeRootDir))

	home := env["HOME"]

	wd, err := os.Getwd()
	if err != nil {
		return reportErr(stderr, err)
	}

	var command string
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	descriptor, err := sandbox.NewDescriptor(r, sandbox.Config{
		Command: command,
		Args:    args,
		Share: sandbox.ShareFlags{
			Home:          boolVal(cfg.Share.Home, false),
			XdgRuntimeDir: boolVal(cfg.Share.XdgRuntimeDir, false),
			SessionBus:    boolVal(cfg.Share.SessionBus, false),
			Wayland:       boolVal(cfg.Share.Wayland, false),
		},
		Type:    sandbox.TryMapping,
		Mapping: sandbox.PreserveAsUser,
		Debugf:  debug.Debugf,
	}, sandbox.Environment{
		HomeDir: home,
		WorkDir: wd,
		HostEnv: env,
	})
	if err != nil {
		return reportErr(stderr, err)
	}

	// unshare(CLONE_NEWUSER) and the later setuid/setgid are per-thread
	// kernel state; this goroutine must never migrate to another OS thread
	// for the remainder of the process's life.
	runtime.LockOSThread()

	exitCode, err := sandbox.New(descriptor, repo).Run()
	if err != nil {
		fmt.Fprintf(stderr, "flatpak-go: %v\n", err)

		return 1
	}

	return exitCode
}
