//go:build linux

package sandbox

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MountHandle owns a detached mount fd (component C): a mount that exists in
// the kernel's mount table but has not been attached anywhere in the
// filesystem hierarchy. A detached mount becomes visible only once MoveTo (or
// PivotRoot, for the root mount) attaches it.
//
// This indirection lets the orchestrator build a complete root filesystem
// (tmpfs + devpts + FUSE image mounts + bind mounts) entirely off to the
// side, and only then make it visible in a single pivot_root, rather than
// mutating the caller's mount namespace incrementally.
type MountHandle struct {
	fd int
}

// CloneTree opens a detached copy of the mount (and, if recursive, every
// mount under it) rooted at path relative to dirfd. Use unix.AT_FDCWD for an
// absolute or cwd-relative path.
func CloneTree(dirfd int, path string, recursive bool) (*MountHandle, error) {
	flags := uint(openTreeClOExec | openTreeClone)
	if recursive {
		flags |= unix.AT_RECURSIVE
	}

	fd, err := openTreeRaw(dirfd, path, flags)
	if err != nil {
		return nil, fmt.Errorf("open_tree(%q): %w", path, err)
	}

	return &MountHandle{fd: fd}, nil
}

// FD returns the underlying detached-mount file descriptor. Callers must not
// close it directly; use Close.
func (m *MountHandle) FD() int {
	return m.fd
}

// MoveTo attaches the detached mount at path relative to dirfd, consuming the
// handle: after a successful move the mount is live in the hierarchy and m no
// longer owns a distinct fd for it.
func (m *MountHandle) MoveTo(dirfd int, path string) error {
	err := moveMountRaw(m.fd, "", dirfd, path, moveMountFEmpty)
	if err != nil {
		return fmt.Errorf("move_mount(-> %q): %w", path, err)
	}

	_ = unix.Close(m.fd)
	m.fd = -1

	return nil
}

// MakeReadonly applies MOUNT_ATTR_RDONLY to the live mount at path relative
// to dirfd (or to dirfd itself when path is empty). The change is not
// recursive.
//
// This is used once the sandbox root filesystem has been fully populated, to
// enforce read-only access across the whole tree except the explicit
// read-write bind mounts layered on top (which are separate mount points and
// are therefore unaffected by a non-recursive attribute change on their
// ancestor).
func MakeReadonly(dirfd int, path string) error {
	attr := mountAttr{AttrSet: mountAttrRdonly}

	var flags uint
	if path == "" {
		flags |= unix.AT_EMPTY_PATH
	}

	err := mountSetattrRaw(dirfd, path, flags, &attr)
	if err != nil {
		return fmt.Errorf("mount_setattr(%q, RDONLY): %w", path, err)
	}

	return nil
}

// PivotRoot attaches m as the new process root filesystem, replacing the
// current one. PivotRoot first changes the working directory to the
// handle's mount root itself, since pivot_root(".", ".") is used: new_root
// and put_old are the same directory,
// and the old root ends up mounted over itself, from which it is then
// unmounted with MNT_DETACH.
func (m *MountHandle) PivotRoot() error {
	f := os.NewFile(uintptr(m.fd), "mount-root")
	if f == nil {
		return internalErrorf("PivotRoot", "os.NewFile returned nil for fd %d", m.fd)
	}

	if err := unix.Fchdir(int(f.Fd())); err != nil {
		return fmt.Errorf("fchdir(mount root): %w", err)
	}

	if err := unix.PivotRoot(".", "."); err != nil {
		return fmt.Errorf("pivot_root(\".\", \".\"): %w", err)
	}

	if err := unix.Unmount(".", unix.MNT_DETACH); err != nil {
		return fmt.Errorf("umount(old root, MNT_DETACH): %w", err)
	}

	// f wraps m.fd via os.NewFile, which registers a finalizer that closes
	// the fd again once f is unreachable; close through f rather than
	// raw-closing m.fd to avoid a GC-timed double-close of a reused fd.
	closeErr := f.Close()
	m.fd = -1

	return closeErr
}

// Close releases the detached mount fd without attaching it anywhere,
// discarding the mount. Safe to call on an already-moved handle.
func (m *MountHandle) Close() error {
	if m.fd < 0 {
		return nil
	}

	err := unix.Close(m.fd)
	m.fd = -1

	return err
}
