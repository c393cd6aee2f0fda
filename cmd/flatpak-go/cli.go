// Command flatpak-go lists, inspects, installs, and runs Flatpak-style
// OCI-distributed app/runtime images inside a pivot_root sandbox.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/allisonkarlitskaya/flatpak-go/index"
	"github.com/allisonkarlitskaya/flatpak-go/store"
)

// Run is flatpak-go's testable entrypoint: all I/O and process state are
// passed in explicitly rather than read from globals, so tests can drive it
// without touching the real stdio/environment/signal handlers.
func Run(stdin io.Reader, stdout, stderr io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	if len(args) < 2 {
		usage(stderr)

		return 2
	}

	sub := args[1]
	rest := args[2:]

	flags := pflag.NewFlagSet(sub, pflag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.SetOutput(stderr)

	repository := flags.String("repository", defaultRepository, "image repository base URL")
	verbose := flags.BoolP("verbose", "v", false, "enable debug output to stderr")

	switch sub {
	case "list", "search", "info", "install", "run":
	case "-h", "--help", "help":
		usage(stdout)

		return 0
	default:
		fmt.Fprintf(stderr, "flatpak-go: unknown command %q\n", sub)
		usage(stderr)

		return 2
	}

	if err := flags.Parse(rest); err != nil {
		return 2
	}

	cfg, err := LoadConfig(env)
	if err != nil {
		return reportErr(stderr, err)
	}

	if flags.Changed("repository") {
		cfg.Repository = *repository
	}

	var debugOut io.Writer
	if *verbose {
		debugOut = stderr
	}

	debug := NewDebugLogger(debugOut)

	positional := flags.Args()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go watchSignals(sigCh, cancel)

	switch sub {
	case "list":
		return cmdList(index.NewClient(), cfg.Repository, stdout, stderr)
	case "search":
		if len(positional) != 1 {
			fmt.Fprintln(stderr, "usage: flatpak-go search <term>")

			return 2
		}

		return cmdSearch(index.NewClient(), cfg.Repository, positional[0], stdout, stderr)
	case "info":
		if len(positional) != 1 {
			fmt.Fprintln(stderr, "usage: flatpak-go info <ref>")

			return 2
		}

		return cmdInfo(index.NewClient(), cfg.Repository, positional[0], stdout, stderr)
	case "install":
		if len(positional) != 1 {
			fmt.Fprintln(stderr, "usage: flatpak-go install <ref>")

			return 2
		}

		root, err := storeRoot(env)
		if err != nil {
			return reportErr(stderr, err)
		}

		return cmdInstall(ctx, index.NewClient(), store.Open(root), cfg.Repository, positional[0], stdout, stderr)
	case "run":
		if len(positional) < 1 {
			fmt.Fprintln(stderr, "usage: flatpak-go run <ref> [-- command args...]")

			return 2
		}

		cmdArgs := positional[1:]
		if len(cmdArgs) > 0 && cmdArgs[0] == "--" {
			cmdArgs = cmdArgs[1:]
		}

		return cmdRun(cfg, env, debug, positional[0], cmdArgs, stdout, stderr)
	default:
		usage(stderr)

		return 2
	}
}

func watchSignals(sigCh <-chan os.Signal, cancel context.CancelFunc) {
	if sigCh == nil {
		return
	}

	if _, ok := <-sigCh; ok {
		cancel()
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: flatpak-go <list|search|info|install|run> [flags] [args...]")
}

func reportErr(w io.Writer, err error) int {
	fmt.Fprintf(w, "flatpak-go: %v\n", err)

	return 1
}

// defaultSignalChannel returns the OS signal channel main() wires up:
// SIGINT/SIGTERM cancel the context that guards install's in-flight HTTP
// calls. Run's sandboxed child has no cancellation hook of its own: once
// Sandbox.Run unshares namespaces, the calling thread can't be interrupted
// short of killing the process.
func defaultSignalChannel() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	return ch
}
