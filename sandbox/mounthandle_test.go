//go:build linux

package sandbox

import (
	"os"
	"os/exec"
	"testing"

	"golang.org/x/sys/unix"
)

// TestCloneTreeHelperProcess is re-executed as a subprocess of
// TestCloneTreeAndMakeReadonly, inside a fresh unprivileged user+mount
// namespace, since open_tree(OPEN_TREE_CLONE) and mount_setattr both need
// CAP_SYS_ADMIN over the mount's owning namespace.
func TestCloneTreeHelperProcess(t *testing.T) {
	if os.Getenv("FLATPAK_GO_WANT_CLONETREE_HELPER") != "1" {
		return
	}

	dir := os.Getenv("FLATPAK_GO_CLONETREE_DIR")

	uid, gid := unix.Getuid(), unix.Getgid()
	if err := unshareUserNSSimple(uint32(uid), uint32(gid)); err != nil {
		fatalHelper(err)
	}

	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		fatalHelper(err)
	}

	mh, err := CloneTree(unix.AT_FDCWD, dir, true)
	if err != nil {
		fatalHelper(err)
	}

	if mh.FD() < 0 {
		fatalHelper(internalErrorf("test", "CloneTree returned a negative fd"))
	}

	if err := MakeReadonly(mh.FD(), ""); err != nil {
		fatalHelper(err)
	}

	if err := mh.Close(); err != nil {
		fatalHelper(err)
	}

	os.Exit(0)
}

func fatalHelper(err error) {
	os.Stderr.WriteString(err.Error())
	os.Exit(1)
}

func TestCloneTreeAndMakeReadonly(t *testing.T) {
	skipUnlessCanUnshareUserns(t)

	dir := t.TempDir()

	cmd := exec.Command(os.Args[0], "-test.run=TestCloneTreeHelperProcess")
	cmd.Env = append(os.Environ(),
		"FLATPAK_GO_WANT_CLONETREE_HELPER=1",
		"FLATPAK_GO_CLONETREE_DIR="+dir,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("helper process failed: %v\noutput: %s", err, out)
	}
}
