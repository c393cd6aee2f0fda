package store

import (
	"fmt"

	"github.com/allisonkarlitskaya/flatpak-go/sandbox"
)

// ImageTree adapts a Store Tree into sandbox.ImageTree, assigning each node a
// stable inode number by walking the tree once at open time. This is the
// object the FUSE image server (component F) serves for the lifetime of one
// sandbox run.
type ImageTree struct {
	store *Store
	nodes []Node
	kids  []map[string]sandbox.ImageIno
}

// OpenImageTree indexes tree for serving.
func (s *Store) OpenImageTree(tree Tree) *ImageTree {
	it := &ImageTree{store: s}
	it.index(tree.Root)

	return it
}

func (it *ImageTree) index(n Node) sandbox.ImageIno {
	ino := sandbox.ImageIno(len(it.nodes) + 1)
	it.nodes = append(it.nodes, n)
	it.kids = append(it.kids, nil)

	if n.Children != nil {
		children := make(map[string]sandbox.ImageIno, len(n.Children))
		for name, child := range n.Children {
			children[name] = it.index(child)
		}

		it.kids[ino-1] = children
	}

	return ino
}

func (it *ImageTree) Root() sandbox.ImageIno {
	return sandbox.ImageIno(1)
}

func (it *ImageTree) node(ino sandbox.ImageIno) (Node, error) {
	idx := int(ino) - 1
	if idx < 0 || idx >= len(it.nodes) {
		return Node{}, fmt.Errorf("image tree: unknown inode %d", ino)
	}

	return it.nodes[idx], nil
}

func (it *ImageTree) Lookup(parent sandbox.ImageIno, name string) (sandbox.ImageIno, bool, error) {
	idx := int(parent) - 1
	if idx < 0 || idx >= len(it.kids) {
		return 0, false, fmt.Errorf("image tree: unknown inode %d", parent)
	}

	ino, ok := it.kids[idx][name]

	return ino, ok, nil
}

func (it *ImageTree) Attr(ino sandbox.ImageIno) (sandbox.ImageAttr, error) {
	n, err := it.node(ino)
	if err != nil {
		return sandbox.ImageAttr{}, err
	}

	mode := n.Mode
	if mode == 0 {
		if n.Kind() == sandbox.ImageKindDir {
			mode = 0o555
		} else {
			mode = 0o444
		}
	}

	return sandbox.ImageAttr{Kind: n.Kind(), Mode: mode, Size: uint64(n.Size)}, nil
}

func (it *ImageTree) ReadDir(ino sandbox.ImageIno) ([]sandbox.ImageDirEntry, error) {
	n, err := it.node(ino)
	if err != nil {
		return nil, err
	}

	idx := int(ino) - 1

	entries := make([]sandbox.ImageDirEntry, 0, len(n.Children))
	for name, childIno := range it.kids[idx] {
		child, err := it.node(childIno)
		if err != nil {
			return nil, err
		}

		entries = append(entries, sandbox.ImageDirEntry{Name: name, Ino: childIno, Kind: child.Kind()})
	}

	return entries, nil
}

func (it *ImageTree) ReadLink(ino sandbox.ImageIno) (string, error) {
	n, err := it.node(ino)
	if err != nil {
		return "", err
	}

	return n.Target, nil
}

func (it *ImageTree) ReadFile(ino sandbox.ImageIno, offset int64, size int) ([]byte, error) {
	n, err := it.node(ino)
	if err != nil {
		return nil, err
	}

	data, err := it.store.ReadObject(n.Digest)
	if err != nil {
		return nil, err
	}

	if offset >= int64(len(data)) {
		return nil, nil
	}

	end := offset + int64(size)
	if end > int64(len(data)) {
		end = int64(len(data))
	}

	return data[offset:end], nil
}
