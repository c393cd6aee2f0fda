//go:build linux

package sandbox

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestParseFdName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		wantFd  int
		wantErr bool
	}{
		{name: "3", wantFd: 3},
		{name: "42", wantFd: 42},
		{name: "not-a-number", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fd, err := parseFdName(tc.name)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("parseFdName(%q): expected error, got fd=%d", tc.name, fd)
				}

				return
			}

			if err != nil {
				t.Fatalf("parseFdName(%q): unexpected error: %v", tc.name, err)
			}

			if fd != tc.wantFd {
				t.Errorf("parseFdName(%q) = %d, want %d", tc.name, fd, tc.wantFd)
			}
		})
	}
}

// fcntlFlags reads a descriptor's current fcntl(F_GETFD) flags.
func fcntlFlags(t *testing.T, f *os.File) int {
	t.Helper()

	flags, err := unix.FcntlInt(f.Fd(), unix.F_GETFD, 0)
	if err != nil {
		t.Fatalf("fcntl(F_GETFD): %v", err)
	}

	return flags
}

func TestAuditAndClearCloexecClearsAllowedFd(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	// os.Pipe sets CLOEXEC on both ends by default.
	if fcntlFlags(t, w)&unix.FD_CLOEXEC == 0 {
		t.Fatal("precondition failed: pipe fd should start with CLOEXEC set")
	}

	auditAndClearCloexec(map[int]struct{}{int(w.Fd()): {}})

	if fcntlFlags(t, w)&unix.FD_CLOEXEC != 0 {
		t.Error("auditAndClearCloexec did not clear CLOEXEC on an explicitly allowed fd")
	}
}

func TestAuditAndClearCloexecPanicsOnUnlistedNonCloexecFd(t *testing.T) {
	t.Parallel()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	flags := fcntlFlags(t, w)

	if _, err := unix.FcntlInt(w.Fd(), unix.F_SETFD, flags&^unix.FD_CLOEXEC); err != nil {
		t.Fatalf("clearing CLOEXEC for test setup: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("auditAndClearCloexec did not panic on a leaked non-CLOEXEC fd")
		}
	}()

	auditAndClearCloexec(nil)
}
