//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// maxArgsFdBytes bounds the total size written through an args-fd pipe, large
// enough for any realistic argv but small enough to fail fast on misuse
// rather than deadlock against a non-blocking pipe's buffer.
const maxArgsFdBytes = 64 * 1024

// argsFdBuilder accumulates NUL-terminated arguments into a pipe, the wire
// format xdg-dbus-proxy and similar tools accept via --args=FD (component I).
//
// The write end is kept non-blocking so a misbehaving consumer that never
// reads cannot wedge the caller; since the whole payload is written once,
// up-front, before the read end is handed to a child, this is purely a
// safety net against exceeding the pipe buffer.
type argsFdBuilder struct {
	r, w    *os.File
	written int
}

// newArgsFdBuilder creates the underlying pipe.
func newArgsFdBuilder() (*argsFdBuilder, error) {
	var fds [2]int

	err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("pipe2: %w", err)
	}

	r := os.NewFile(uintptr(fds[0]), "args-fd-r")
	w := os.NewFile(uintptr(fds[1]), "args-fd-w")

	return &argsFdBuilder{r: r, w: w}, nil
}

// Add appends a single argument, NUL-terminated. Embedded NUL bytes are
// rejected since they cannot be represented in the wire format.
func (a *argsFdBuilder) Add(arg string) error {
	if strings.ContainsRune(arg, 0) {
		return fmt.Errorf("argument contains embedded NUL: %q", arg)
	}

	n := len(arg) + 1
	if a.written+n > maxArgsFdBytes {
		return fmt.Errorf("args-fd payload exceeds %d bytes", maxArgsFdBytes)
	}

	buf := make([]byte, 0, n)
	buf = append(buf, arg...)
	buf = append(buf, 0)

	written, err := a.w.Write(buf)
	a.written += written

	if err != nil {
		return fmt.Errorf("write arg %q: %w", arg, err)
	}

	return nil
}

// Extend appends every argument in args, in order.
func (a *argsFdBuilder) Extend(args []string) error {
	for _, arg := range args {
		if err := a.Add(arg); err != nil {
			return err
		}
	}

	return nil
}

// Done closes the write end and returns the read end, ready to be passed to
// a child as an inherited fd (e.g. formatted via ArgsFdSpec).
func (a *argsFdBuilder) Done() (*os.File, error) {
	if err := a.w.Close(); err != nil {
		return nil, fmt.Errorf("close args-fd write end: %w", err)
	}

	return a.r, nil
}

// ArgsFdSpec formats the --args=FD flag xdg-dbus-proxy (and similar argv-fd
// consumers) expect, given the fd number the read end will have inside the
// child (after withfds has placed it there).
func ArgsFdSpec(fd int) string {
	return fmt.Sprintf("--args=%d", fd)
}
