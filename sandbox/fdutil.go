//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// openPath opens path with O_PATH|O_CLOEXEC, optionally following the final
// symlink component (O_NOFOLLOW is set unless followSymlink is true).
//
// O_PATH handles are used throughout this package for directory-builder and
// mount-handle operations: they name a location without requiring read
// permission on its contents, matching the host-trust-nothing posture the
// orchestrator needs while assembling a sandbox root.
func openPath(path string, followSymlink bool) (*os.File, error) {
	flags := unix.O_PATH | unix.O_CLOEXEC

	if !followSymlink {
		flags |= unix.O_NOFOLLOW
	}

	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		return nil, fmt.Errorf("open %q (O_PATH): %w", path, err)
	}

	return os.NewFile(uintptr(fd), path), nil
}

// openDir opens path as a directory with O_PATH|O_DIRECTORY|O_CLOEXEC.
func openDir(path string) (*os.File, error) {
	fd, err := unix.Open(path, unix.O_PATH|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %q (O_PATH|O_DIRECTORY): %w", path, err)
	}

	return os.NewFile(uintptr(fd), path), nil
}

// nameat synthesizes a /proc/self/fd path for fd, optionally with a trailing
// component. This lets APIs that only accept path strings (bind, mount by
// path, connect) operate against an already-open, race-free file descriptor.
func nameat(fd int, name string) string {
	base := fmt.Sprintf("/proc/self/fd/%d", fd)
	if name == "" {
		return base
	}

	return base + "/" + name
}

// filterErrno returns nil if err is one of the given errno values, and err
// otherwise, so that an expected failure mode can be swallowed. No code in
// this module calls it at present.
func filterErrno(err error, ignore ...unix.Errno) error {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return err
	}

	for _, want := range ignore {
		if errno == want {
			return nil
		}
	}

	return err
}

// closeFiles closes every non-nil file in files, joining any errors.
func closeFiles(files ...*os.File) error {
	var errs []error

	for _, f := range files {
		if f == nil {
			continue
		}

		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// closeFilesOnce wraps closeFiles in a sync.Once so it is safe to register as
// an idempotent cleanup function (e.g. returned from a constructor and also
// deferred by the caller).
func closeFilesOnce(files ...*os.File) func() error {
	var (
		once   sync.Once
		outErr error
	)

	return func() error {
		once.Do(func() {
			outErr = closeFiles(files...)
		})

		return outErr
	}
}

// newMemfdOrTemp returns an anonymous (unsealed) backing file for small amounts of
// synthesized content (e.g. /etc/passwd, ld.so.conf fragments). It prefers
// memfd_create and falls back to an unlinked temp file when the kernel or
// sandbox denies it.
func newMemfdOrTemp(name string) (*os.File, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err == nil {
		f := os.NewFile(uintptr(fd), name)
		if f == nil {
			closeErr := unix.Close(fd)

			return nil, errors.Join(internalErrorf("newMemfdOrTemp", "os.NewFile returned nil"), closeErr)
		}

		return f, nil
	}

	tmp, tmpErr := os.CreateTemp("", name+"-*")
	if tmpErr != nil {
		return nil, errors.Join(fmt.Errorf("memfd_create: %w", err), fmt.Errorf("create temp file: %w", tmpErr))
	}

	_ = os.Remove(tmp.Name())

	return tmp, nil
}
