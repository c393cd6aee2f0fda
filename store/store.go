// Package store implements the local content-addressed image store: named
// refs resolve to a tree of directory/file/symlink nodes, and file content is
// read by its digest. It is intentionally thin (see DESIGN.md) relative to
// the sandbox core this module centers on; it backs the
// list/search/info/install/run commands and is not a production OCI
// registry client.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	digest "github.com/opencontainers/go-digest"

	"github.com/allisonkarlitskaya/flatpak-go/ref"
	"github.com/allisonkarlitskaya/flatpak-go/sandbox"
)

// Store is a local, content-addressed collection of installed images.
//
// On disk it is laid out as:
//
//	<root>/refs/flatpak-rs/<kind>/<id>/<arch>/<branch>   -> JSON Tree (named ref)
//	<root>/objects/<algo>/<hex>                          -> file content, by digest
type Store struct {
	root string
}

// Open opens (without creating) a store rooted at root.
func Open(root string) *Store {
	return &Store{root: root}
}

// Node is one entry of a Tree: a directory, a regular file (content
// identified by Digest), or a symlink (Target holds the link text).
type Node struct {
	Name     string          `json:"name"`
	Mode     uint32          `json:"mode"`
	Digest   digest.Digest   `json:"digest,omitempty"`
	Size     int64           `json:"size,omitempty"`
	Target   string          `json:"target,omitempty"`
	Children map[string]Node `json:"children,omitempty"`
}

// Kind reports the node's type.
func (n Node) Kind() sandbox.ImageKind {
	switch {
	case n.Children != nil:
		return sandbox.ImageKindDir
	case n.Target != "":
		return sandbox.ImageKindSymlink
	default:
		return sandbox.ImageKindFile
	}
}

// Tree is a full installed image: its root node plus the digest of the
// metadata document (component F/H consume this via Store.ResolveRef and
// Store.OpenImageTree).
type Tree struct {
	Root     Node          `json:"root"`
	Metadata digest.Digest `json:"metadata"`
}

// refNamespace is the fixed path segment under "refs" that every ref is
// stored beneath, matching original_source's hardcoded "refs/flatpak-rs/{ref}".
const refNamespace = "flatpak-rs"

func (s *Store) refPath(r ref.Ref) string {
	return filepath.Join(s.root, "refs", refNamespace, string(r.Kind()), r.ID(), r.Arch(), r.Branch())
}

// ResolveRef loads the Tree named by r.
func (s *Store) ResolveRef(r ref.Ref) (Tree, error) {
	data, err := os.ReadFile(s.refPath(r))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Tree{}, fmt.Errorf("ref %s: %w", r, errNotInstalled)
		}

		return Tree{}, fmt.Errorf("read ref %s: %w", r, err)
	}

	var tree Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return Tree{}, fmt.Errorf("parse ref %s: %w", r, err)
	}

	return tree, nil
}

// PutRef persists tree under r, creating parent directories as needed, and
// replacing any ref.Ref symlink-equivalent (a plain overwrite, since refs are
// stored as JSON documents rather than symlinks) that previously named it.
func (s *Store) PutRef(r ref.Ref, tree Tree) error {
	path := s.refPath(r)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir for ref %s: %w", r, err)
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal ref %s: %w", r, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ref %s: %w", r, err)
	}

	return os.Rename(tmp, path)
}

// ListRefs returns every ref currently installed.
func (s *Store) ListRefs() ([]ref.Ref, error) {
	var refs []ref.Ref

	root := filepath.Join(s.root, "refs")

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) != 5 || parts[0] != refNamespace {
			return nil
		}

		r, err := ref.New(ref.Kind(parts[1]), parts[2], parts[3], parts[4])
		if err != nil {
			return nil
		}

		refs = append(refs, r)

		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list refs: %w", err)
	}

	return refs, nil
}

// ObjectPath returns the on-disk path for a content object, creating no
// parent directory (callers that write must do so themselves via PutObject).
func (s *Store) ObjectPath(d digest.Digest) string {
	return filepath.Join(s.root, "objects", d.Algorithm().String(), d.Encoded())
}

// PutObject writes data under its own digest and returns that digest.
func (s *Store) PutObject(data []byte) (digest.Digest, error) {
	d := digest.FromBytes(data)
	path := s.ObjectPath(d)

	if _, err := os.Stat(path); err == nil {
		return d, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("mkdir for object %s: %w", d, err)
	}

	if err := os.WriteFile(path, data, 0o444); err != nil {
		return "", fmt.Errorf("write object %s: %w", d, err)
	}

	return d, nil
}

// ReadObject reads the full content of the object named by d.
func (s *Store) ReadObject(d digest.Digest) ([]byte, error) {
	data, err := os.ReadFile(s.ObjectPath(d))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", d, err)
	}

	return data, nil
}

var errNotInstalled = errors.New("not installed")
