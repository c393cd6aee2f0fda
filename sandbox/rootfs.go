//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	dbus "github.com/godbus/dbus/v5"
	digest "github.com/opencontainers/go-digest"
	"golang.org/x/sys/unix"

	"github.com/allisonkarlitskaya/flatpak-go/manifest"
	"github.com/allisonkarlitskaya/flatpak-go/ref"
)

// ImageRepository resolves a reference to its served image tree, bundled
// with the raw metadata document and the content digest recorded against it
// (for diagnostics). This is the seam between the orchestrator and the
// content-addressed store, kept as an interface here (rather than an import
// of the store package) since store.ImageTree already depends on this
// package's ImageTree interface — store implements ImageRepository, not the
// other way around.
type ImageRepository interface {
	MountImage(r ref.Ref) (tree ImageTree, metadata []byte, contentDigest digest.Digest, err error)
}

// Sandbox drives one sandbox run to completion: unshare, mount, populate,
// pivot, exec (component H).
//
// A Sandbox must not be copied after first use, and [Sandbox.Run] must be
// called at most once: after it unshares the user namespace, this goroutine
// (and the OS thread it must be locked to) can never return to the original
// namespace.
type Sandbox struct {
	noCopy noCopy

	d    *Descriptor
	repo ImageRepository
}

// New constructs a Sandbox that will launch d's reference using images
// resolved from repo.
func New(d *Descriptor, repo ImageRepository) *Sandbox {
	return &Sandbox{d: d, repo: repo}
}

// Run unshares namespaces, builds the sandbox root filesystem, execs the
// target command, and returns its exit code (or a setup error) once the
// child has exited; the caller is expected to os.Exit with the returned
// code.
//
// The calling goroutine must be locked to its OS thread (runtime.LockOSThread)
// before Run is called, since unshare(CLONE_NEWUSER) and the uid/gid drops
// are per-thread kernel state.
func (s *Sandbox) Run() (int, error) {
	if err := s.unshareNamespaces(); err != nil {
		return 0, err
	}

	appManifest, appMount, runtimeManifest, usrMount, err := s.mountImages()
	if err != nil {
		return 0, err
	}

	rootMount, err := s.createRootfs(appMount, usrMount)
	if err != nil {
		return 0, err
	}

	if err := rootMount.PivotRoot(); err != nil {
		return 0, fmt.Errorf("sandbox: pivot_root: %w", err)
	}

	if err := exec.Command("ldconfig", "-X").Run(); err != nil {
		return 0, fmt.Errorf("sandbox: ldconfig -X: %w", err)
	}

	if err := MakeReadonly(unix.AT_FDCWD, "/"); err != nil {
		return 0, fmt.Errorf("sandbox: make root read-only: %w", err)
	}

	if err := s.dropCapabilities(); err != nil {
		return 0, err
	}

	command, args := s.determineCommand(appManifest)

	return s.execChild(command, args, runtimeManifest)
}

// unshareNamespaces performs step 2-3 of spec.md §4.H: unshare the user
// namespace (using the configured id-mapping strategy) and then the mount
// namespace. The PID namespace is intentionally left shared (see
// spec.md §4.H step 3 and §9): unsharing it would orphan the FUSE server
// goroutines this process is about to spawn.
func (s *Sandbox) unshareNamespaces() error {
	d := s.d

	switch d.Type {
	case Simple:
		if err := unshareUserNSSimple(d.UID, d.GID); err != nil {
			return fmt.Errorf("sandbox: unshare user namespace: %w", err)
		}
	case RequireMapping, TryMapping:
		ok, err := s.unshareViaHelpers()
		if err != nil {
			return fmt.Errorf("sandbox: unshare user namespace: %w", err)
		}

		if !ok {
			if d.Type == RequireMapping {
				return fmt.Errorf("sandbox: no usable subuid/subgid ranges and mapping is required")
			}

			d.debugf("no subuid/subgid ranges found, falling back to Simple mapping")

			if err := unshareUserNSSimple(d.UID, d.GID); err != nil {
				return fmt.Errorf("sandbox: unshare user namespace: %w", err)
			}
		}
	default:
		return internalErrorf("unshareNamespaces", "unknown SandboxType %d", d.Type)
	}

	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("sandbox: unshare mount namespace: %w", err)
	}

	return nil
}

// unshareViaHelpers resolves the caller's subordinate id ranges and, if
// present, performs the newuidmap/newgidmap handshake. It reports ok=false
// (not an error) when no subordinate ranges are configured, letting the
// caller fall back to Simple.
func (s *Sandbox) unshareViaHelpers() (bool, error) {
	d := s.d

	uidRange, gidRange, ok, err := lookupSubordinateRanges()
	if err != nil {
		return false, err
	}

	if !ok {
		return false, nil
	}

	var uidPreserve, gidPreserve *idMapTriple

	switch d.Mapping {
	case NoPreserve:
	case PreserveAsRoot:
		uidPreserve = &idMapTriple{Inside: 0, Outside: d.UID, Length: 1}
		gidPreserve = &idMapTriple{Inside: 0, Outside: d.GID, Length: 1}
	case PreserveAsUser:
		uidPreserve = &idMapTriple{Inside: d.UID, Outside: d.UID, Length: 1}
		gidPreserve = &idMapTriple{Inside: d.GID, Outside: d.GID, Length: 1}
	default:
		return false, internalErrorf("unshareViaHelpers", "unknown MappingType %d", d.Mapping)
	}

	uidMapping := computeMapping(uidRange, uidPreserve)
	gidMapping := computeMapping(gidRange, gidPreserve)

	if err := unshareUserNSWithHelpers(uidMapping, gidMapping); err != nil {
		return false, err
	}

	return true, nil
}

// mountImages performs step 4 of spec.md §4.H: mount the app image (if the
// reference names one) and, via its manifest's declared runtime, the
// runtime image; or just the runtime image for a bare runtime reference.
//
// FUSE servers are started here, strictly after both namespace unshares
// (ordering guarantee 3 of spec.md §5): once a goroutine exists the process
// can no longer create a new user namespace on this thread.
func (s *Sandbox) mountImages() (appManifest *manifest.Manifest, appMount *MountHandle, runtimeManifest manifest.Manifest, usrMount *MountHandle, err error) {
	if s.d.Ref.IsApp() {
		m, mnt, appDigest, mountErr := s.mountImage(s.d.Ref)
		if mountErr != nil {
			return nil, nil, manifest.Manifest{}, nil, fmt.Errorf("sandbox: mount app image: %w", mountErr)
		}

		s.d.debugf("mounted app image %s (%s)", s.d.Ref, appDigest)

		if err := validateAppManifest(m); err != nil {
			return nil, nil, manifest.Manifest{}, nil, fmt.Errorf("sandbox: app manifest: %w", err)
		}

		runtimeRef, _ := m.Runtime()

		runtimeM, usrMnt, runtimeDigest, mountErr := s.mountImage(runtimeRef)
		if mountErr != nil {
			return nil, nil, manifest.Manifest{}, nil, fmt.Errorf("sandbox: mount runtime image %s: %w", runtimeRef, mountErr)
		}

		s.d.debugf("mounted runtime image %s (%s)", runtimeRef, runtimeDigest)

		return &m, mnt, runtimeM, usrMnt, nil
	}

	runtimeM, usrMnt, runtimeDigest, mountErr := s.mountImage(s.d.Ref)
	if mountErr != nil {
		return nil, nil, manifest.Manifest{}, nil, fmt.Errorf("sandbox: mount runtime image: %w", mountErr)
	}

	s.d.debugf("mounted runtime image %s (%s)", s.d.Ref, runtimeDigest)

	return nil, nil, runtimeM, usrMnt, nil
}

// mountImage resolves r via the repository, mounts its tree over FUSE, and
// parses its bundled metadata as a manifest. The server goroutine is started
// before this function returns; it runs for the remaining lifetime of the
// sandbox.
func (s *Sandbox) mountImage(r ref.Ref) (manifest.Manifest, *MountHandle, digest.Digest, error) {
	tree, metadataBytes, contentDigest, err := s.repo.MountImage(r)
	if err != nil {
		return manifest.Manifest{}, nil, "", fmt.Errorf("resolve %s: %w", r, err)
	}

	m, err := manifest.Parse(string(metadataBytes))
	if err != nil {
		return manifest.Manifest{}, nil, "", fmt.Errorf("parse manifest for %s: %w", r, err)
	}

	mount, server, err := mountFuseImage(tree, s.d.UID, s.d.GID)
	if err != nil {
		return manifest.Manifest{}, nil, "", fmt.Errorf("mount fuse image for %s: %w", r, err)
	}

	go func() {
		if err := server.Serve(); err != nil {
			s.d.debugf("fuse server for %s terminated irregularly: %v", r, err)
		}
	}()

	return m, mount, contentDigest, nil
}

// createRootfs performs step 5-6 of spec.md §4.H: mount a fresh tmpfs,
// anchor it at /tmp (the kernel <6.15 workaround, applied unconditionally
// per spec.md §9), populate it via a directory builder, and mount the app
// and runtime images at /app and /usr.
func (s *Sandbox) createRootfs(appMount, usrMount *MountHandle) (*MountHandle, error) {
	rootMount, err := mountTmpfs("flatpak-root", dirPermission)
	if err != nil {
		return nil, fmt.Errorf("sandbox: mount tmpfs for sandbox root: %w", err)
	}

	// move_mount closes rootMount's detached-mount fd once attached (see
	// MountHandle.MoveTo); reopen the now-anchored path to get a directory fd
	// the builder can operate on.
	if err := rootMount.MoveTo(unix.AT_FDCWD, "/tmp"); err != nil {
		return nil, fmt.Errorf("sandbox: anchor root tmpfs at /tmp: %w", err)
	}

	rootFile, err := openDirat(unix.AT_FDCWD, "/tmp")
	if err != nil {
		return nil, fmt.Errorf("sandbox: reopen anchored root at /tmp: %w", err)
	}

	root := newDirBuilder(rootFile)

	if err := s.populateRoot(root); err != nil {
		return nil, err
	}

	if err := root.Mount(usrMount, "usr"); err != nil {
		return nil, fmt.Errorf("sandbox: mount runtime image at /usr: %w", err)
	}

	if appMount != nil {
		if err := root.Mount(appMount, "app"); err != nil {
			return nil, fmt.Errorf("sandbox: mount app image at /app: %w", err)
		}
	}

	return &MountHandle{fd: int(rootFile.Fd())}, nil
}

func (s *Sandbox) populateRoot(root *dirBuilder) error {
	for dst, target := range map[string]string{
		"bin":   "usr/bin",
		"lib":   "usr/lib",
		"lib64": "usr/lib64",
		"sbin":  "usr/sbin",
	} {
		if err := root.Symlink(target, dst); err != nil {
			return fmt.Errorf("sandbox: symlink %s -> %s: %w", dst, target, err)
		}
	}

	if err := root.CreateDir("dev"); err != nil {
		return err
	}

	dev, err := root.Subdir("dev")
	if err != nil {
		return fmt.Errorf("sandbox: open dev: %w", err)
	}

	if err := s.populateDev(dev); err != nil {
		return err
	}

	if err := root.CreateDir("etc"); err != nil {
		return err
	}

	etc, err := root.Subdir("etc")
	if err != nil {
		return fmt.Errorf("sandbox: open etc: %w", err)
	}

	if err := s.populateEtc(etc); err != nil {
		return err
	}

	if err := root.CreateDir("run"); err != nil {
		return err
	}

	run, err := root.Subdir("run")
	if err != nil {
		return fmt.Errorf("sandbox: open run: %w", err)
	}

	if err := s.populateRun(run); err != nil {
		return err
	}

	if err := root.CreateDir("var"); err != nil {
		return err
	}

	varDir, err := root.Subdir("var")
	if err != nil {
		return fmt.Errorf("sandbox: open var: %w", err)
	}

	if err := varDir.Symlink("../run", "run"); err != nil {
		return fmt.Errorf("sandbox: symlink var/run: %w", err)
	}

	if err := root.BindDir("/proc", "proc"); err != nil {
		return fmt.Errorf("sandbox: bind /proc: %w", err)
	}

	if err := root.BindDir("/sys", "sys"); err != nil {
		return fmt.Errorf("sandbox: bind /sys: %w", err)
	}

	tmpMount, err := mountTmpfs("tmp", 0o1777)
	if err != nil {
		return fmt.Errorf("sandbox: mount /tmp: %w", err)
	}

	if err := root.Mount(tmpMount, "tmp"); err != nil {
		return fmt.Errorf("sandbox: mount /tmp: %w", err)
	}

	return s.populateHome(root)
}

func (s *Sandbox) populateHome(root *dirBuilder) error {
	rel := strings.TrimPrefix(s.d.Home, "/")
	if rel == "" {
		return nil
	}

	if s.d.Share.Home {
		if err := root.BindDir(s.d.Home, rel); err != nil {
			return fmt.Errorf("sandbox: bind home %s: %w", s.d.Home, err)
		}

		return nil
	}

	if err := root.CreateDir(rel); err != nil {
		return fmt.Errorf("sandbox: create home %s: %w", rel, err)
	}

	homeFd, err := openDirat(int(root.root.Fd()), rel)
	if err != nil {
		return fmt.Errorf("sandbox: open home %s: %w", rel, err)
	}
	defer homeFd.Close()

	if err := unix.Fchown(int(homeFd.Fd()), int(s.d.UID), int(s.d.GID)); err != nil {
		return fmt.Errorf("sandbox: chown home %s: %w", rel, err)
	}

	return nil
}

func (s *Sandbox) populateDev(dev *dirBuilder) error {
	for _, name := range []string{"full", "null", "random", "tty", "urandom", "zero"} {
		if err := dev.BindFile("/dev/"+name, name); err != nil {
			return fmt.Errorf("sandbox: bind /dev/%s: %w", name, err)
		}
	}

	if console, err := bindControllingTerminal(); err == nil && console != nil {
		if err := dev.CreateFile("console"); err != nil {
			return fmt.Errorf("sandbox: create /dev/console: %w", err)
		}

		if err := console.MoveTo(int(dev.root.Fd()), "console"); err != nil {
			return fmt.Errorf("sandbox: bind controlling terminal: %w", err)
		}
	}

	for dst, target := range map[string]string{
		"stdin":  "/proc/self/fd/0",
		"stdout": "/proc/self/fd/1",
		"stderr": "/proc/self/fd/2",
		"fd":     "/proc/self/fd",
		"ptmx":   "pts/ptmx",
	} {
		if err := dev.Symlink(target, dst); err != nil {
			return fmt.Errorf("sandbox: symlink /dev/%s: %w", dst, err)
		}
	}

	ptsMount, err := mountDevpts()
	if err != nil {
		return fmt.Errorf("sandbox: mount devpts: %w", err)
	}

	if err := dev.Mount(ptsMount, "pts"); err != nil {
		return fmt.Errorf("sandbox: mount /dev/pts: %w", err)
	}

	shmMount, err := mountTmpfs("shm", 0o1777)
	if err != nil {
		return fmt.Errorf("sandbox: mount /dev/shm: %w", err)
	}

	return dev.Mount(shmMount, "shm")
}

func (s *Sandbox) populateEtc(etc *dirBuilder) error {
	for _, name := range []string{"resolv.conf", "localtime"} {
		if err := etc.BindFile("/etc/"+name, name); err != nil {
			return fmt.Errorf("sandbox: bind /etc/%s: %w", name, err)
		}
	}

	passwd := fmt.Sprintf(
		"root:x:0:0:root:/root:/bin/bash\n%s:x:%d:%d:%s:%s:/bin/bash\nhost:x:65534:65534:Host files:/:/\n",
		s.d.Username, s.d.UID, s.d.GID, s.d.Gecos, s.d.Home,
	)
	if err := etc.Write("passwd", []byte(passwd)); err != nil {
		return fmt.Errorf("sandbox: write /etc/passwd: %w", err)
	}

	group := fmt.Sprintf("root:x:0:0:\n%s:x:%d:0:\nhost:x:65534:0:\n", s.d.Groupname, s.d.GID)
	if err := etc.Write("group", []byte(group)); err != nil {
		return fmt.Errorf("sandbox: write /etc/group: %w", err)
	}

	ldSoConf := "include /run/flatpak/ld.so.conf.d/app-*.conf\n" +
		"include /app/etc/ld.so.conf\n" +
		"include /app/etc/ld.so.conf.d/*.conf\n" +
		"/app/lib64\n" +
		"/app/lib\n" +
		"include /run/flatpak/ld.so.conf.d/runtime-*.conf\n" +
		"/usr/lib64/pipewire-0.3/jack/\n"

	if err := etc.Write("ld.so.conf", []byte(ldSoConf)); err != nil {
		return fmt.Errorf("sandbox: write /etc/ld.so.conf: %w", err)
	}

	return nil
}

func (s *Sandbox) populateRun(run *dirBuilder) error {
	if err := run.CreateDir("user"); err != nil {
		return err
	}

	user, err := run.Subdir("user")
	if err != nil {
		return fmt.Errorf("sandbox: open run/user: %w", err)
	}

	return s.populateRunUser(user)
}

func (s *Sandbox) populateRunUser(user *dirBuilder) error {
	uidStr := fmt.Sprintf("%d", s.d.UID)

	xdgRuntimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if xdgRuntimeDir == "" {
		return fmt.Errorf("sandbox: XDG_RUNTIME_DIR is required on the host")
	}

	s.d.setenv("XDG_RUNTIME_DIR", "/run/user/"+uidStr)

	if s.d.Share.XdgRuntimeDir {
		if err := user.BindDir(xdgRuntimeDir, uidStr); err != nil {
			return fmt.Errorf("sandbox: bind XDG_RUNTIME_DIR: %w", err)
		}

		return nil
	}

	if err := user.CreateDir(uidStr); err != nil {
		return err
	}

	runtimeMount, err := newFsHandle("tmpfs")
	if err != nil {
		return fmt.Errorf("sandbox: open xdg-runtime-dir tmpfs: %w", err)
	}

	if err := runtimeMount.SetString("source", "xdg-runtime-dir"); err != nil {
		return err
	}

	if err := runtimeMount.SetUint("mode", 0o700); err != nil {
		return err
	}

	if err := runtimeMount.SetUint("uid", s.d.UID); err != nil {
		return err
	}

	if err := runtimeMount.SetUint("gid", s.d.GID); err != nil {
		return err
	}

	mount, err := runtimeMount.Mount()
	if err != nil {
		return fmt.Errorf("sandbox: mount xdg-runtime-dir tmpfs: %w", err)
	}

	if err := user.Mount(mount, uidStr); err != nil {
		return fmt.Errorf("sandbox: mount /run/user/%s: %w", uidStr, err)
	}

	runtimeDirBuilder, err := user.Subdir(uidStr)
	if err != nil {
		return fmt.Errorf("sandbox: open /run/user/%s: %w", uidStr, err)
	}

	return s.populateRuntimeDir(runtimeDirBuilder, xdgRuntimeDir)
}

func (s *Sandbox) populateRuntimeDir(runtimeDir *dirBuilder, hostRuntimeDir string) error {
	if s.d.Share.Wayland {
		closeFD, err := bindWaylandSocket(runtimeDir, hostRuntimeDir, "wayland-0", s.d.Ref.ID(), s.d.InstanceID)
		if err != nil {
			s.d.debugf("wayland broker unavailable: %v", err)
			s.d.unsetenv("WAYLAND_DISPLAY")
		} else {
			s.d.setenv("WAYLAND_DISPLAY", "wayland-0")

			if closeFD != nil {
				s.d.InheritFds[int(closeFD.Fd())] = closeFD
			}
		}
	} else {
		s.d.unsetenv("WAYLAND_DISPLAY")
	}

	if s.d.Share.SessionBus {
		busPath, err := resolveSessionBusPath(os.Getenv("DBUS_SESSION_BUS_ADDRESS"))
		if err != nil {
			s.d.debugf("session bus unavailable: %v", err)
		} else if err := runtimeDir.BindFile(busPath, "bus"); err != nil {
			return fmt.Errorf("sandbox: bind session bus: %w", err)
		}
	}

	return nil
}

// resolveSessionBusPath extracts the filesystem path of a unix-transport
// D-Bus address, using dbus.ParseAddresses to honor the full address-list
// grammar (comma-separated, semicolon-delimited fallbacks) rather than
// hand-rolling it.
func resolveSessionBusPath(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("DBUS_SESSION_BUS_ADDRESS is unset")
	}

	addresses, err := dbus.ParseAddresses(addr)
	if err != nil {
		return "", fmt.Errorf("parse DBUS_SESSION_BUS_ADDRESS: %w", err)
	}

	for _, a := range addresses {
		raw := string(a)
		if !strings.HasPrefix(raw, "unix:") {
			continue
		}

		for _, kv := range strings.Split(strings.TrimPrefix(raw, "unix:"), ",") {
			if path, ok := strings.CutPrefix(kv, "path="); ok {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("no unix:path= transport in %q", addr)
}

// bindControllingTerminal reopens the process's controlling terminal (if
// any) by its /proc/self/fd path, so it can be cloned as a detached mount
// and bound at /dev/console. Returns (nil, nil) if stdout is not a tty.
func bindControllingTerminal() (*MountHandle, error) {
	if _, err := unix.IoctlGetTermios(1, unix.TCGETS); err != nil {
		return nil, nil
	}

	name, err := os.Readlink("/proc/self/fd/1")
	if err != nil {
		return nil, nil
	}

	if !strings.HasPrefix(name, "/dev/") {
		return nil, nil
	}

	mount, err := CloneTree(unix.AT_FDCWD, name, false)
	if err != nil {
		return nil, fmt.Errorf("reopen controlling terminal %s: %w", name, err)
	}

	return mount, nil
}

func mountTmpfs(source string, mode uint32) (*MountHandle, error) {
	h, err := newFsHandle("tmpfs")
	if err != nil {
		return nil, err
	}

	if err := h.SetString("source", source); err != nil {
		return nil, err
	}

	if err := h.SetUint("mode", mode); err != nil {
		return nil, err
	}

	return h.Mount()
}

func mountDevpts() (*MountHandle, error) {
	h, err := newFsHandle("devpts")
	if err != nil {
		return nil, err
	}

	if err := h.SetFlag("newinstance"); err != nil {
		return nil, err
	}

	if err := h.SetUint("ptmxmode", 0o666); err != nil {
		return nil, err
	}

	if err := h.SetUint("mode", 0o620); err != nil {
		return nil, err
	}

	return h.Mount()
}

// dropCapabilities performs step 10 of spec.md §4.H: set the thread gid then
// uid to the target values, in that order so the gid change still has
// CAP_SETGID.
func (s *Sandbox) dropCapabilities() error {
	if err := unix.Setgid(int(s.d.GID)); err != nil {
		return fmt.Errorf("sandbox: setgid(%d): %w", s.d.GID, err)
	}

	if err := unix.Setuid(int(s.d.UID)); err != nil {
		return fmt.Errorf("sandbox: setuid(%d): %w", s.d.UID, err)
	}

	return nil
}

// determineCommand performs step 12: CLI override, then the app manifest's
// command, then /bin/sh.
func (s *Sandbox) determineCommand(appManifest *manifest.Manifest) (string, []string) {
	if s.d.Command != "" {
		return s.d.Command, s.d.Args
	}

	if appManifest != nil && appManifest.Command() != "" {
		return appManifest.Command(), s.d.Args
	}

	return "/bin/sh", s.d.Args
}

// execChild performs step 11 and 13: compose the environment, spawn the
// target command, and translate its termination into an exit code.
func (s *Sandbox) execChild(command string, args []string, runtimeManifest manifest.Manifest) (int, error) {
	env := s.d.composeEnvironment(runtimeManifest)

	cmd := exec.Command(command, args...)
	cmd.Dir = s.d.Home
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	cmd.Env = make([]string, 0, len(env))
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	if len(s.d.InheritFds) > 0 {
		withInheritedFds(cmd, s.d.InheritFds)
	}

	err := cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 255, nil
			}

			return status.ExitStatus(), nil
		}

		return 255, nil
	}

	if err != nil {
		return 0, fmt.Errorf("sandbox: spawn %s: %w", command, err)
	}

	return 0, nil
}
