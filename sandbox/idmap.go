//go:build linux

package sandbox

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// MappingType selects how the sandboxed uid/gid relates to the inside
// identity (component E).
type MappingType int

const (
	// NoPreserve maps the subordinate id range flat, starting at inside id 0;
	// the caller's host uid/gid is not mapped.
	NoPreserve MappingType = iota
	// PreserveAsRoot additionally pins the caller's host uid/gid to inside id 0.
	PreserveAsRoot
	// PreserveAsUser additionally pins the caller's host uid/gid to a
	// non-zero inside id (the sandboxed "user").
	PreserveAsUser
)

// SandboxType controls whether the sandbox requires subordinate id mapping
// to be available, attempts it best-effort, or skips it entirely.
type SandboxType int

const (
	// Simple unshares a user namespace mapping only the caller's own uid/gid
	// (a "single id" sandbox).
	Simple SandboxType = iota
	// RequireMapping fails if /etc/subuid or /etc/subgid has no entry for the
	// caller.
	RequireMapping
	// TryMapping attempts subordinate id mapping and silently falls back to
	// Simple if none is available.
	TryMapping
)

// idMapTriple is one line of a uid_map/gid_map file: Length consecutive ids
// starting at Inside (inside the new namespace) map to Length consecutive
// ids starting at Outside (in the parent namespace).
type idMapTriple struct {
	Inside, Outside, Length uint32
}

// idMapping is a flattened uid_map or gid_map, ready to be rendered as
// "inside outside length" lines or passed to newuidmap/newgidmap as a flat
// argument list.
type idMapping []idMapTriple

// Flatten renders the mapping as the flat int list newuidmap/newgidmap
// expect: inside1 outside1 length1 inside2 outside2 length2 ...
func (m idMapping) Flatten() []string {
	out := make([]string, 0, len(m)*3)
	for _, t := range m {
		out = append(out, strconv.FormatUint(uint64(t.Inside), 10), strconv.FormatUint(uint64(t.Outside), 10), strconv.FormatUint(uint64(t.Length), 10))
	}

	return out
}

// Lines renders the mapping as the newline-separated "inside outside length"
// format the kernel's uid_map/gid_map files accept directly (only valid for a
// single-line mapping, since the kernel allows at most 5 lines and only the
// owning process, or one with CAP_SETUID in the owning user namespace's
// parent, may write more than one).
func (m idMapping) Lines() string {
	var b strings.Builder

	for _, t := range m {
		fmt.Fprintf(&b, "%d %d %d\n", t.Inside, t.Outside, t.Length)
	}

	return b.String()
}

// subidRange is a single line of /etc/subuid or /etc/subgid: Start..Start+Len
// is reserved to the owner for subordinate id mapping.
type subidRange struct {
	Start, Len uint32
}

// computeMapping builds the full inside->outside mapping for one namespace
// (uid or gid), given the subordinate id range reserved to the caller
// (subrange) and, optionally, a pinned identity mapping (preserve) for
// PreserveAsRoot/PreserveAsUser.
//
// Without a pinned identity, the whole subordinate range is mapped starting
// at inside id 0. With one, the pinned inside id gets its own single-id row,
// and the subordinate range is split around it: the portion consumed as a
// prefix (one id per inside id below the pinned one) comes first, and
// whatever of the subordinate range remains becomes the suffix, starting
// immediately after the pinned id.
//
// If the subordinate range is empty, only the pinned row is produced: no
// other inside ids receive a mapping, which is fine since a sandbox that
// could not acquire subordinate ids only strictly needs its own id mapped.
func computeMapping(subrange subidRange, preserve *idMapTriple) idMapping {
	if preserve == nil {
		if subrange.Len == 0 {
			return nil
		}

		return idMapping{{Inside: 0, Outside: subrange.Start, Length: subrange.Len}}
	}

	inside, outside := preserve.Inside, preserve.Outside

	prefixSize := min(inside, subrange.Len)

	mapping := make(idMapping, 0, 3)

	if prefixSize > 0 {
		mapping = append(mapping, idMapTriple{Inside: 0, Outside: subrange.Start, Length: prefixSize})
	}

	mapping = append(mapping, idMapTriple{Inside: inside, Outside: outside, Length: 1})

	remaining := subrange.Len - prefixSize
	if remaining > 0 {
		mapping = append(mapping, idMapTriple{Inside: inside + 1, Outside: subrange.Start + prefixSize, Length: remaining})
	}

	return mapping
}

// findRange looks up username's reserved subordinate id range in path
// (/etc/subuid or /etc/subgid). The file format is "name:start:count" per
// line, with name either a literal username or a numeric uid/gid.
func findRange(path, username string, id uint32) (subidRange, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return subidRange{}, false, nil
		}

		return subidRange{}, false, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) != 3 {
			continue
		}

		if fields[0] != username && fields[0] != strconv.FormatUint(uint64(id), 10) {
			continue
		}

		start, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			continue
		}

		length, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			continue
		}

		return subidRange{Start: uint32(start), Len: uint32(length)}, true, nil
	}

	if err := scanner.Err(); err != nil {
		return subidRange{}, false, fmt.Errorf("scan %q: %w", path, err)
	}

	return subidRange{}, false, nil
}

// lookupSubordinateRanges resolves the caller's subuid/subgid ranges, by
// username first and falling back to the numeric uid/gid as /etc/subuid and
// /etc/subgid both allow.
func lookupSubordinateRanges() (uidRange, gidRange subidRange, ok bool, err error) {
	u, err := user.Current()
	if err != nil {
		return subidRange{}, subidRange{}, false, fmt.Errorf("look up current user: %w", err)
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return subidRange{}, subidRange{}, false, fmt.Errorf("parse uid %q: %w", u.Uid, err)
	}

	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return subidRange{}, subidRange{}, false, fmt.Errorf("parse gid %q: %w", u.Gid, err)
	}

	uidRange, uidOK, err := findRange("/etc/subuid", u.Username, uint32(uid))
	if err != nil {
		return subidRange{}, subidRange{}, false, err
	}

	gidRange, gidOK, err := findRange("/etc/subgid", u.Username, uint32(gid))
	if err != nil {
		return subidRange{}, subidRange{}, false, err
	}

	return uidRange, gidRange, uidOK && gidOK, nil
}

// unshareUserNSSimple unshares a new user namespace and writes a trivial
// single-id mapping (the caller's own uid/gid pinned to inside 0), using only
// the CAP_SETUID-free path the kernel allows a process to perform on its own
// user namespace. Used for SandboxType Simple.
func unshareUserNSSimple(uid, gid uint32) error {
	if err := unix.Unshare(unix.CLONE_NEWUSER); err != nil {
		return fmt.Errorf("unshare(CLONE_NEWUSER): %w", err)
	}

	if err := os.WriteFile("/proc/self/setgroups", []byte("deny"), 0o644); err != nil {
		return fmt.Errorf("write /proc/self/setgroups: %w", err)
	}

	uidMap := idMapping{{Inside: 0, Outside: uid, Length: 1}}
	if err := os.WriteFile("/proc/self/uid_map", []byte(uidMap.Lines()), 0o644); err != nil {
		return fmt.Errorf("write /proc/self/uid_map: %w", err)
	}

	gidMap := idMapping{{Inside: 0, Outside: gid, Length: 1}}
	if err := os.WriteFile("/proc/self/gid_map", []byte(gidMap.Lines()), 0o644); err != nil {
		return fmt.Errorf("write /proc/self/gid_map: %w", err)
	}

	return nil
}

// unshareUserNSWithHelpers unshares a new user namespace and populates a
// multi-line uid_map/gid_map (computed by computeMapping) using the
// newuidmap/newgidmap setuid helpers, which are required whenever more than
// one range needs to be written (the kernel restricts unprivileged, unhelped
// writes to a single 1:1 mapping).
//
// The helpers must run from the original namespace, after this process has
// unshared, so this orchestrates a small handshake over two pipes: a helper
// shell is started first and blocks on a read; this process then unshares,
// signals the helper, which runs newuidmap/newgidmap against this process's
// pid and reports back before exiting.
func unshareUserNSWithHelpers(uidMap, gidMap idMapping) error {
	readyR, readyW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe: %w", err)
	}
	defer readyR.Close()
	defer readyW.Close()

	doneR, doneW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("pipe: %w", err)
	}
	defer doneR.Close()
	defer doneW.Close()

	pid := os.Getpid()

	script := fmt.Sprintf(
		"read line <&%d; newuidmap %d %s; newgidmap %d %s; echo ok >&%d\n",
		3, pid, strings.Join(uidMap.Flatten(), " "), pid, strings.Join(gidMap.Flatten(), " "), 4,
	) // ExtraFiles below land at fds 3 (readyR) and 4 (doneW) in the helper

	cmd := exec.Command("sh", "-cxe", script)
	cmd.ExtraFiles = []*os.File{readyR, doneW}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start newuidmap/newgidmap helper: %w", err)
	}

	_ = doneW.Close()

	if err := unix.Unshare(unix.CLONE_NEWUSER); err != nil {
		_ = cmd.Process.Kill()

		return fmt.Errorf("unshare(CLONE_NEWUSER): %w", err)
	}

	if _, err := readyW.WriteString("go\n"); err != nil {
		return fmt.Errorf("signal helper to proceed: %w", err)
	}

	buf := make([]byte, bytes.MinRead)
	if _, err := io.ReadFull(doneR, buf[:bytes.MinRead]); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		// An unexpected EOF here just means the "ok\n" line was shorter than
		// bytes.MinRead; the real success/failure signal is cmd.Wait below.
		_ = err
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("newuidmap/newgidmap helper: %w", err)
	}

	if err := unix.Setgroups(nil); err != nil {
		return fmt.Errorf("setgroups([]): %w", err)
	}

	if err := unix.Setgid(0); err != nil {
		return fmt.Errorf("setgid(0): %w", err)
	}

	if err := unix.Setuid(0); err != nil {
		return fmt.Errorf("setuid(0): %w", err)
	}

	return nil
}
