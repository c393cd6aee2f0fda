//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// fsHandle owns an fs-context fd created via fsopen (component B). It is
// configured with a sequence of set* calls and then either created (turning
// it into a mountable superblock context) or abandoned.
//
// fsHandle is a thin, single-purpose wrapper: callers are expected to call
// Mount exactly once and then discard the handle (or keep it only to drain
// diagnostic messages on error).
type fsHandle struct {
	fd     int
	fsType string
}

// newFsHandle opens a filesystem context for fsType (e.g. "tmpfs", "devpts",
// "fuse").
func newFsHandle(fsType string) (*fsHandle, error) {
	fd, err := fsopenRaw(fsType, true)
	if err != nil {
		return nil, fmt.Errorf("fsopen(%q): %w", fsType, err)
	}

	return &fsHandle{fd: fd, fsType: fsType}, nil
}

// SetFlag sets a boolean configuration parameter (e.g. "ro", "allow_other").
func (h *fsHandle) SetFlag(key string) error {
	if err := fsconfigSetFlagRaw(h.fd, key); err != nil {
		return fmt.Errorf("fsconfig(%s, set_flag, %q): %w", h.fsType, key, err)
	}

	return nil
}

// SetString sets a string configuration parameter (e.g. "source").
func (h *fsHandle) SetString(key, value string) error {
	if err := fsconfigSetStringRaw(h.fd, key, value); err != nil {
		return fmt.Errorf("fsconfig(%s, set_string, %q=%q): %w", h.fsType, key, value, err)
	}

	return nil
}

// SetUint sets an unsigned integer configuration parameter, encoded as a
// decimal string (the new mount API has no dedicated integer parameter kind).
func (h *fsHandle) SetUint(key string, value uint32) error {
	return h.SetString(key, fmt.Sprintf("%d", value))
}

// SetFd passes an auxiliary file descriptor as a configuration parameter
// (used for fuse's "fd" key, pointing at an already-opened /dev/fuse).
func (h *fsHandle) SetFd(key string, fd int) error {
	if err := fsconfigSetFdRaw(h.fd, key, fd); err != nil {
		return fmt.Errorf("fsconfig(%s, set_fd, %q): %w", h.fsType, key, err)
	}

	return nil
}

// Create validates the accumulated configuration and instantiates the
// filesystem's superblock. Any configuration-time diagnostics emitted by the
// kernel become readable from the context fd afterwards; Mount drains them on
// error.
func (h *fsHandle) Create() error {
	if err := fsconfigCreateRaw(h.fd); err != nil {
		return fmt.Errorf("fsconfig(%s, create): %w: %s", h.fsType, err, h.drainMessages())
	}

	return nil
}

// Mount turns a created context into a detached mount and returns the
// resulting MountHandle. The fs-context fd is closed either way.
func (h *fsHandle) Mount() (*MountHandle, error) {
	defer func() { _ = unix.Close(h.fd) }()

	if err := h.Create(); err != nil {
		return nil, err
	}

	fd, err := fsmountRaw(h.fd, 0, mountAttrRdonlyIfSet(h))
	if err != nil {
		return nil, fmt.Errorf("fsmount(%s): %w: %s", h.fsType, err, h.drainMessages())
	}

	return &MountHandle{fd: fd}, nil
}

// mountAttrRdonlyIfSet is a placeholder hook kept deliberately trivial:
// fsmount's own attr_flags argument is rarely needed here because read-only
// is applied via fsconfig's "ro" flag before Create, not via fsmount's
// attr_flags bitmask. Kept named and documented so a future mount kind that
// does need attr_flags has an obvious extension point.
func mountAttrRdonlyIfSet(*fsHandle) uintptr {
	return 0
}

// drainMessages reads pending kernel diagnostic lines from the fs-context fd
// (available via read(2) on the fscontext fd after a failed fsconfig call)
// and joins them into a single string for error messages.
func (h *fsHandle) drainMessages() string {
	f := os.NewFile(uintptr(h.fd), h.fsType)
	if f == nil {
		return ""
	}

	buf := make([]byte, 4096)

	var out []byte

	for {
		n, err := f.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}

		if err != nil {
			break
		}
	}

	// f wraps h.fd, which Mount's own deferred unix.Close owns; clear f's
	// finalizer so it doesn't close the same fd a second time once f is
	// collected.
	runtime.SetFinalizer(f, nil)

	if len(out) == 0 {
		return "(no kernel diagnostics)"
	}

	return string(out)
}
