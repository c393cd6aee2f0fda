package store

import (
	"testing"

	"github.com/allisonkarlitskaya/flatpak-go/ref"
)

func TestRepositoryMountImage(t *testing.T) {
	t.Parallel()

	s := Open(t.TempDir())
	repo := NewRepository(s)

	r, err := ref.NewRuntime("org.example.Platform", "x86_64", "stable")
	if err != nil {
		t.Fatal(err)
	}

	metadataDigest, err := s.PutObject([]byte("[Runtime]\ncommand=bash\n"))
	if err != nil {
		t.Fatal(err)
	}

	if err := s.PutRef(r, Tree{Root: Node{Name: "/"}, Metadata: metadataDigest}); err != nil {
		t.Fatal(err)
	}

	tree, metadata, contentDigest, err := repo.MountImage(r)
	if err != nil {
		t.Fatal(err)
	}

	if tree == nil {
		t.Fatal("MountImage() returned a nil ImageTree")
	}

	if string(metadata) != "[Runtime]\ncommand=bash\n" {
		t.Errorf("MountImage() metadata = %q", metadata)
	}

	if contentDigest != metadataDigest {
		t.Errorf("MountImage() contentDigest = %s, want %s", contentDigest, metadataDigest)
	}
}

func TestRepositoryMountImageNotInstalled(t *testing.T) {
	t.Parallel()

	s := Open(t.TempDir())
	repo := NewRepository(s)

	r, err := ref.NewRuntime("org.example.Missing", "x86_64", "stable")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, _, err := repo.MountImage(r); err == nil {
		t.Fatal("MountImage() of an uninstalled ref: expected error, got nil")
	}
}
