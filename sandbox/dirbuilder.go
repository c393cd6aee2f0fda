//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	dirPermission  = 0o755
	filePermission = 0o644
)

// dirBuilder populates a directory tree (typically the sandbox root, already
// attached to a detached tmpfs MountHandle) using *at syscalls against a
// borrowed O_PATH directory fd (component D).
//
// Every method is relative to root; callers pass slash-separated,
// root-relative paths ("etc/passwd", not "/etc/passwd").
type dirBuilder struct {
	root *os.File // O_PATH|O_DIRECTORY fd
}

// newDirBuilder borrows root for the lifetime of the dirBuilder. The caller
// retains ownership of root and must close it separately.
func newDirBuilder(root *os.File) *dirBuilder {
	return &dirBuilder{root: root}
}

// CreateDir creates rel and any missing parent directories, mode
// dirPermission. Existing directories are not an error (EEXIST is
// swallowed), matching mkdir -p semantics.
func (b *dirBuilder) CreateDir(rel string) error {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return nil
	}

	parts := strings.Split(rel, "/")

	for i := range parts {
		partial := strings.Join(parts[:i+1], "/")

		err := unix.Mkdirat(int(b.root.Fd()), partial, dirPermission)
		if err != nil && !errors.Is(err, unix.EEXIST) {
			return fmt.Errorf("mkdirat(%q): %w", partial, err)
		}
	}

	return nil
}

// Subdir returns a new dirBuilder rooted at rel, which must already exist
// (typically just created via CreateDir). The returned builder owns its own
// fd and must be closed by the caller.
func (b *dirBuilder) Subdir(rel string) (*dirBuilder, error) {
	fd, err := openDirat(int(b.root.Fd()), rel)
	if err != nil {
		return nil, fmt.Errorf("subdir(%q): %w", rel, err)
	}

	return &dirBuilder{root: fd}, nil
}

// CreateFile creates an empty regular file at rel, mode filePermission.
func (b *dirBuilder) CreateFile(rel string) error {
	fd, err := unix.Openat(int(b.root.Fd()), rel, unix.O_CREAT|unix.O_WRONLY|unix.O_CLOEXEC|unix.O_EXCL, filePermission)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil
		}

		return fmt.Errorf("openat(O_CREAT, %q): %w", rel, err)
	}

	return unix.Close(fd)
}

// Write creates (or truncates) a regular file at rel and writes data to it.
func (b *dirBuilder) Write(rel string, data []byte) error {
	return b.write(rel, data, filePermission)
}

// WriteExecutable behaves like Write but creates the file with execute bits set.
func (b *dirBuilder) WriteExecutable(rel string, data []byte) error {
	return b.write(rel, data, 0o755)
}

func (b *dirBuilder) write(rel string, data []byte, mode uint32) error {
	fd, err := unix.Openat(int(b.root.Fd()), rel, unix.O_CREAT|unix.O_WRONLY|unix.O_TRUNC|unix.O_CLOEXEC, mode)
	if err != nil {
		return fmt.Errorf("openat(O_CREAT|O_TRUNC, %q): %w", rel, err)
	}

	f := os.NewFile(uintptr(fd), rel)

	_, writeErr := f.Write(data)
	closeErr := f.Close()

	return errors.Join(writeErr, closeErr)
}

// Tee writes data to rel and returns an open read-only fd to it, useful when
// the same content must both exist on disk in the sandbox and be handed to
// the child as an inherited descriptor (e.g. --args=N style plumbing).
func (b *dirBuilder) Tee(rel string, data []byte) (*os.File, error) {
	if err := b.Write(rel, data); err != nil {
		return nil, err
	}

	return openat(int(b.root.Fd()), rel)
}

// Symlink creates a symlink at rel pointing to target (target is stored
// verbatim, not resolved).
func (b *dirBuilder) Symlink(target, rel string) error {
	if err := b.ensureParent(rel); err != nil {
		return err
	}

	err := unix.Symlinkat(target, int(b.root.Fd()), rel)
	if err != nil && !errors.Is(err, unix.EEXIST) {
		return fmt.Errorf("symlinkat(%q -> %q): %w", rel, target, err)
	}

	return nil
}

// BindFile ensures an empty regular file exists at rel and bind-mounts src
// (an absolute host path, or a /proc/self/fd/N path) over it. Bind-mounting
// over a file requires the destination to already be a file, hence CreateFile
// first.
func (b *dirBuilder) BindFile(src, rel string) error {
	if err := b.ensureParent(rel); err != nil {
		return err
	}

	if err := b.CreateFile(rel); err != nil {
		return err
	}

	return b.bind(src, rel, false)
}

// BindDir ensures an empty directory exists at rel and bind-mounts src over
// it.
func (b *dirBuilder) BindDir(src, rel string) error {
	if err := b.ensureParent(rel); err != nil {
		return err
	}

	if err := b.CreateDir(rel); err != nil {
		return err
	}

	return b.bind(src, rel, true)
}

func (b *dirBuilder) ensureParent(rel string) error {
	dir := path.Dir(strings.Trim(rel, "/"))
	if dir == "." || dir == "/" {
		return nil
	}

	return b.CreateDir(dir)
}

// bind clones src as a detached mount tree and moves it directly onto rel,
// using the new mount API end to end rather than shelling out to mount(8).
func (b *dirBuilder) bind(src, rel string, recursive bool) error {
	tree, err := CloneTree(unix.AT_FDCWD, src, recursive)
	if err != nil {
		return fmt.Errorf("bind %q -> %q: %w", src, rel, err)
	}

	return tree.MoveTo(int(b.root.Fd()), rel)
}

// Mount attaches an already-built detached mount at rel.
func (b *dirBuilder) Mount(tree *MountHandle, rel string) error {
	if err := b.ensureParent(rel); err != nil {
		return err
	}

	if err := b.CreateDir(rel); err != nil {
		return err
	}

	return tree.MoveTo(int(b.root.Fd()), rel)
}

func openDirat(dirfd int, rel string) (*os.File, error) {
	fd, err := unix.Openat(dirfd, rel, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	return os.NewFile(uintptr(fd), rel), nil
}

func openat(dirfd int, rel string) (*os.File, error) {
	fd, err := unix.Openat(dirfd, rel, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}

	return os.NewFile(uintptr(fd), rel), nil
}
