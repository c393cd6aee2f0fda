//go:build linux

package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

// openTestRoot opens a fresh temp directory as a dirBuilder root, the same
// way Sandbox.createRootfs opens its freshly anchored tmpfs.
func openTestRoot(t *testing.T) (*dirBuilder, string) {
	t.Helper()

	dir := t.TempDir()

	f, err := os.Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { f.Close() })

	return newDirBuilder(f), dir
}

func statMode(t *testing.T, path string) os.FileMode {
	t.Helper()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	return info.Mode()
}

func TestDirBuilderCreateDirIsIdempotentAndRecursive(t *testing.T) {
	t.Parallel()

	b, dir := openTestRoot(t)

	if err := b.CreateDir("a/b/c"); err != nil {
		t.Fatal(err)
	}

	if perm := statMode(t, filepath.Join(dir, "a", "b", "c")).Perm(); perm != dirPermission {
		t.Errorf("CreateDir mode = %o, want %o", perm, dirPermission)
	}

	// Re-creating an existing directory (and its existing parents) must not error.
	if err := b.CreateDir("a/b/c"); err != nil {
		t.Errorf("CreateDir on existing path returned error: %v", err)
	}
}

func TestDirBuilderCreateFileDefaultsToFilePermission(t *testing.T) {
	t.Parallel()

	b, dir := openTestRoot(t)

	if err := b.CreateFile("empty"); err != nil {
		t.Fatal(err)
	}

	if perm := statMode(t, filepath.Join(dir, "empty")).Perm(); perm != filePermission {
		t.Errorf("CreateFile mode = %o, want %o", perm, filePermission)
	}

	// CreateFile on an existing file is a no-op, not an error.
	if err := b.CreateFile("empty"); err != nil {
		t.Errorf("CreateFile on existing path returned error: %v", err)
	}
}

func TestDirBuilderWriteExecutableSetsExecuteBits(t *testing.T) {
	t.Parallel()

	b, dir := openTestRoot(t)

	if err := b.WriteExecutable("run.sh", []byte("#!/bin/sh\n")); err != nil {
		t.Fatal(err)
	}

	if perm := statMode(t, filepath.Join(dir, "run.sh")).Perm(); perm != 0o755 {
		t.Errorf("WriteExecutable mode = %o, want %o", perm, 0o755)
	}

	data, err := os.ReadFile(filepath.Join(dir, "run.sh"))
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != "#!/bin/sh\n" {
		t.Errorf("WriteExecutable content = %q", data)
	}
}

func TestDirBuilderWriteDefaultsToFilePermission(t *testing.T) {
	t.Parallel()

	b, dir := openTestRoot(t)

	if err := b.Write("config", []byte("hello")); err != nil {
		t.Fatal(err)
	}

	if perm := statMode(t, filepath.Join(dir, "config")).Perm(); perm != filePermission {
		t.Errorf("Write mode = %o, want %o", perm, filePermission)
	}
}

func TestDirBuilderSymlink(t *testing.T) {
	t.Parallel()

	b, dir := openTestRoot(t)

	if err := b.Symlink("../run", "var/run"); err != nil {
		t.Fatal(err)
	}

	target, err := os.Readlink(filepath.Join(dir, "var", "run"))
	if err != nil {
		t.Fatal(err)
	}

	if target != "../run" {
		t.Errorf("Symlink target = %q, want %q", target, "../run")
	}

	// Re-creating an existing symlink must not error (matches the
	// EEXIST-swallowing convention CreateDir/CreateFile also follow).
	if err := b.Symlink("../run", "var/run"); err != nil {
		t.Errorf("Symlink on existing path returned error: %v", err)
	}
}

func TestDirBuilderSubdir(t *testing.T) {
	t.Parallel()

	b, dir := openTestRoot(t)

	if err := b.CreateDir("etc"); err != nil {
		t.Fatal(err)
	}

	sub, err := b.Subdir("etc")
	if err != nil {
		t.Fatal(err)
	}
	defer sub.root.Close()

	if err := sub.Write("hostname", []byte("sandbox\n")); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "etc", "hostname"))
	if err != nil {
		t.Fatal(err)
	}

	if string(data) != "sandbox\n" {
		t.Errorf("Subdir().Write content = %q", data)
	}
}

func TestOpenDiratOpensDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	root, err := os.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer root.Close()

	f, err := openDirat(int(root.Fd()), "sub")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	// An O_PATH|O_DIRECTORY fd can itself be used as a *at base.
	if err := unix.Mkdirat(int(f.Fd()), "nested", dirPermission); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "sub", "nested")); err != nil {
		t.Error(err)
	}
}
