package main

import (
	"fmt"
	"io"

	"github.com/allisonkarlitskaya/flatpak-go/index"
	"github.com/allisonkarlitskaya/flatpak-go/manifest"
	"github.com/allisonkarlitskaya/flatpak-go/ref"
)

// cmdInfo prints the fully qualified image reference and parsed manifest
// for one ref, mirroring original_source's Cmd::Info arm.
func cmdInfo(idx *index.Client, repository, refStr string, stdout, stderr io.Writer) int {
	r, err := ref.Parse(refStr)
	if err != nil {
		return reportErr(stderr, err)
	}

	table, err := idx.Get(repository)
	if err != nil {
		return reportErr(stderr, err)
	}

	entry, ok := table[r]
	if !ok {
		return reportErr(stderr, fmt.Errorf("ref %s not found in %s", r, repository))
	}

	fmt.Fprintf(stdout, "%s%s\n", repository, entry.Image)

	m, err := manifest.Parse(entry.Metadata)
	if err != nil {
		return reportErr(stderr, fmt.Errorf("parsing manifest for %s: %w", r, err))
	}

	fmt.Fprintf(stdout, "command: %s\n", m.Command())

	if runtimeRef, ok := m.Runtime(); ok {
		fmt.Fprintf(stdout, "runtime: %s\n", runtimeRef)
	}

	for k, v := range m.Environment() {
		fmt.Fprintf(stdout, "env: %s=%s\n", k, v)
	}

	return 0
}
