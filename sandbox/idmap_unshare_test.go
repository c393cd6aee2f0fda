//go:build linux

package sandbox

import (
	"os"
	"os/exec"
	"strconv"
	"testing"

	"golang.org/x/sys/unix"
)

// TestUnshareUserNSSimpleHelperProcess is not a real test: it is re-executed
// as a subprocess (the stdlib os/exec_test.go "helper process" idiom) so that
// unshareUserNSSimple's unix.Unshare(CLONE_NEWUSER) call can be exercised
// without permanently mutating this test binary's own namespace.
func TestUnshareUserNSSimpleHelperProcess(t *testing.T) {
	if os.Getenv("FLATPAK_GO_WANT_UNSHARE_HELPER") != "1" {
		return
	}

	uid, gid := unix.Getuid(), unix.Getgid()
	if err := unshareUserNSSimple(uint32(uid), uint32(gid)); err != nil {
		os.Stderr.WriteString(err.Error())
		os.Exit(1)
	}

	if got := unix.Getuid(); got != 0 {
		os.Stderr.WriteString("uid inside namespace = " + strconv.Itoa(got) + ", want 0")
		os.Exit(1)
	}

	os.Exit(0)
}

func TestUnshareUserNSSimple(t *testing.T) {
	skipUnlessCanUnshareUserns(t)

	cmd := exec.Command(os.Args[0], "-test.run=TestUnshareUserNSSimpleHelperProcess")
	cmd.Env = append(os.Environ(), "FLATPAK_GO_WANT_UNSHARE_HELPER=1")

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("helper process failed: %v\noutput: %s", err, out)
	}
}
