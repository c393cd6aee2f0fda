//go:build linux

package sandbox

import (
	"os"
	"os/exec"
	"testing"
)

// skipUnlessRoot skips the test unless running as uid 0. Several components
// (mount, pivot_root, FUSE kernel registration) require real root even inside
// a user namespace that maps the caller to inside 0.
func skipUnlessRoot(t *testing.T) {
	t.Helper()

	if os.Geteuid() != 0 {
		t.Skip("test requires root")
	}
}

// skipUnlessCanUnshareUserns skips the test unless the environment allows an
// unprivileged process to create a user namespace. Some hardened kernels and
// containers disable this via /proc/sys/kernel/unprivileged_userns_clone or
// an AppArmor/seccomp policy, so probe it with a real external "unshare"
// invocation rather than calling unix.Unshare in-process, which would
// irreversibly alter this test binary's own namespace.
func skipUnlessCanUnshareUserns(t *testing.T) {
	t.Helper()

	path, err := exec.LookPath("unshare")
	if err != nil {
		t.Skip("test requires the unshare(1) helper, not installed")
	}

	cmd := exec.Command(path, "--user", "--map-root-user", "true")
	if err := cmd.Run(); err != nil {
		t.Skipf("test requires unprivileged user namespaces, probe failed: %v", err)
	}
}
