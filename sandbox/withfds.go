//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// fdAuditStart/fdAuditEnd bound the descriptor range audited before exec: fds
// below 3 are stdio and exempt, and 1000 is comfortably above anything this
// package itself ever opens. Fds at or above fdAuditEnd are neither audited
// nor have their CLOEXEC flag cleared, even when listed as inherited.
const (
	fdAuditStart = 3
	fdAuditEnd   = 1000
)

// withInheritedFds sets Pdeathsig on cmd and then, immediately and in this
// process, audits every open fd in [fdAuditStart, fdAuditEnd), panicking if
// any of them lacks CLOEXEC, except those explicitly listed in inherited,
// whose CLOEXEC flag is cleared so a child started afterwards inherits them
// at the same fd number (ExtraFiles is not expressive enough for fds that
// must land at a caller-chosen number rather than sequentially after stdio).
//
// This is deliberately strict: a leaked fd into a sandboxed child is a
// sandbox escape (it hands the child a capability the filesystem/mount
// policy never granted), so an accidental leak is treated as a programming
// error worth crashing over rather than silently inheriting.
func withInheritedFds(cmd *exec.Cmd, inherited map[int]*os.File) {
	allowed := make(map[int]struct{}, len(inherited))
	for fd := range inherited {
		allowed[fd] = struct{}{}
	}

	cmd.SysProcAttr = ensureSysProcAttr(cmd.SysProcAttr)
	cmd.SysProcAttr.Pdeathsig = syscall.SIGKILL

	auditAndClearCloexec(allowed)
}

// auditAndClearCloexec walks /proc/self/fd, a point-in-time accurate view of
// this process's open descriptors, unlike guessing from what this package
// itself opened.
func auditAndClearCloexec(allowed map[int]struct{}) {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		panic(fmt.Sprintf("withfds: read /proc/self/fd: %v", err))
	}

	for _, entry := range entries {
		fd, err := parseFdName(entry.Name())
		if err != nil || fd < fdAuditStart || fd >= fdAuditEnd {
			continue
		}

		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
		if err != nil {
			continue
		}

		if flags&unix.FD_CLOEXEC == 0 {
			if _, ok := allowed[fd]; ok {
				continue
			}

			target, _ := os.Readlink(fmt.Sprintf("/proc/self/fd/%d", fd))
			panic(fmt.Sprintf("withfds: fd %d (-> %s) is open without CLOEXEC and was not explicitly inherited", fd, target))
		}

		if _, ok := allowed[fd]; ok {
			_, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags&^unix.FD_CLOEXEC)
			if err != nil {
				panic(fmt.Sprintf("withfds: clear CLOEXEC on fd %d: %v", fd, err))
			}
		}
	}
}

func parseFdName(name string) (int, error) {
	var fd int

	_, err := fmt.Sscanf(name, "%d", &fd)

	return fd, err
}

func ensureSysProcAttr(attr *syscall.SysProcAttr) *syscall.SysProcAttr {
	if attr == nil {
		return &syscall.SysProcAttr{}
	}

	return attr
}
