package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	digest "github.com/opencontainers/go-digest"

	"github.com/allisonkarlitskaya/flatpak-go/index"
	"github.com/allisonkarlitskaya/flatpak-go/manifest"
	"github.com/allisonkarlitskaya/flatpak-go/ref"
	"github.com/allisonkarlitskaya/flatpak-go/store"
)

// cmdInstall installs refStr's image and, if it names an app, also the
// runtime its manifest declares, mirroring original_source's install()/
// install_one() pair: an app is never usable without the runtime it was
// built against, so both are pulled in one command.
func cmdInstall(ctx context.Context, idx *index.Client, st *store.Store, repository, refStr string, stdout, stderr io.Writer) int {
	r, err := ref.Parse(refStr)
	if err != nil {
		return reportErr(stderr, err)
	}

	table, err := idx.Get(repository)
	if err != nil {
		return reportErr(stderr, err)
	}

	installer := store.NewInstaller(st, nil)

	m, err := installOne(ctx, installer, table, repository, r)
	if err != nil {
		return reportErr(stderr, err)
	}

	fmt.Fprintf(stdout, "installed %s\n", r)

	if r.IsApp() {
		runtimeRef, ok := m.Runtime()
		if !ok {
			return reportErr(stderr, fmt.Errorf("app %s manifest declares no runtime", r))
		}

		if _, err := installOne(ctx, installer, table, repository, runtimeRef); err != nil {
			return reportErr(stderr, fmt.Errorf("installing runtime %s for %s: %w", runtimeRef, r, err))
		}

		fmt.Fprintf(stdout, "installed %s\n", runtimeRef)
	}

	return 0
}

// installOne resolves r in the index, pulls its image into the store, and
// returns its parsed manifest so callers can chase a declared runtime ref.
func installOne(ctx context.Context, installer *store.Installer, table map[ref.Ref]index.Entry, repository string, r ref.Ref) (manifest.Manifest, error) {
	entry, ok := table[r]
	if !ok {
		return manifest.Manifest{}, fmt.Errorf("ref %s not found in %s", r, repository)
	}

	loc, err := imageLocator(repository, entry.Image)
	if err != nil {
		return manifest.Manifest{}, err
	}

	if err := installer.InstallRef(ctx, r, loc); err != nil {
		return manifest.Manifest{}, fmt.Errorf("installing %s: %w", r, err)
	}

	m, err := manifest.Parse(entry.Metadata)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("parsing manifest for %s: %w", r, err)
	}

	return m, nil
}

// imageLocator splits an index Entry's "{name}@{digest}" image string into
// a store.ImageLocator, joining the repository's base URL with the image's
// name component the same way original_source's install_one concatenates
// img_base (scheme-rewritten) with img.
func imageLocator(repositoryBase, image string) (store.ImageLocator, error) {
	name, digestStr, ok := strings.Cut(image, "@")
	if !ok {
		return store.ImageLocator{}, fmt.Errorf("index: image reference %q has no digest", image)
	}

	base := strings.TrimSuffix(repositoryBase, "/")
	name = strings.TrimPrefix(name, "/")

	return store.ImageLocator{
		Repository: base + "/" + name,
		Digest:     digest.Digest(digestStr),
	}, nil
}
