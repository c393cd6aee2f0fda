package store

import (
	"fmt"

	digest "github.com/opencontainers/go-digest"

	"github.com/allisonkarlitskaya/flatpak-go/ref"
	"github.com/allisonkarlitskaya/flatpak-go/sandbox"
)

// Repository adapts a Store to sandbox.ImageRepository. It is the only
// bridge between the two packages: store already depends on sandbox (to
// implement sandbox.ImageTree in imagetree.go), so sandbox cannot import
// store back without a cycle. The orchestrator depends only on the
// sandbox.ImageRepository interface; Repository is the concrete value
// passed in by the CLI.
type Repository struct {
	store *Store
}

// NewRepository wraps store for use as a sandbox.ImageRepository.
func NewRepository(store *Store) *Repository {
	return &Repository{store: store}
}

// MountImage resolves r to its tree and metadata, indexing the tree for
// serving and computing the content digest the orchestrator reports for
// diagnostics. The content digest is the metadata document's digest, since
// that is the value content-addresses one build of a given ref.
func (repo *Repository) MountImage(r ref.Ref) (sandbox.ImageTree, []byte, digest.Digest, error) {
	tree, err := repo.store.ResolveRef(r)
	if err != nil {
		return nil, nil, "", fmt.Errorf("resolve %s: %w", r, err)
	}

	metadata, err := repo.store.ReadObject(tree.Metadata)
	if err != nil {
		return nil, nil, "", fmt.Errorf("read metadata for %s: %w", r, err)
	}

	return repo.store.OpenImageTree(tree), metadata, tree.Metadata, nil
}
