//go:build linux

package sandbox

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// This file implements just enough of the Wayland wire protocol to broker a
// security context for the sandboxed compositor connection (component G). No
// Wayland client library is present in this repository's dependency corpus,
// and the protocol surface needed is narrow (connect, get_registry plus one
// roundtrip, bind wp_security_context_manager_v1, call four setters and
// commit, roundtrip again), so it is implemented directly against the wire
// format: a 32-bit object id, a 16-bit opcode, a 16-bit message size, then
// opcode-specific arguments, all host-endian (effectively little-endian on
// every platform this package targets).

const (
	waylandDisplayObjectID  = 1
	waylandDisplayGetReg    = 1
	waylandDisplaySyncOp    = 0
	waylandRegistryBindOp   = 0
	waylandRegistryGlobalEv = 0
	waylandDisplayErrorEv   = 0
	waylandDisplayDoneEv    = 0 // on the sync callback object, not the display

	securityContextManagerInterface = "wp_security_context_manager_v1"
	securityContextManagerVersion   = 1

	secCtxCreateListenerOp = 1 // on the manager object; its opcode 0 is destroy
	secCtxSetSandboxOp     = 1
	secCtxSetAppIDOp       = 2
	secCtxSetInstanceIDOp  = 3
	secCtxCommitOp         = 4
	secCtxDestroyOp        = 0

	// sandboxEngineID identifies this sandbox implementation to the
	// compositor via wp_security_context_v1.set_sandbox_engine, the way
	// original_source's wayland.rs identifies itself as "org.flatpak.rs".
	sandboxEngineID = "org.flatpak.go"
)

// bindWaylandSocket exposes the host Wayland compositor socket inside the
// sandbox at dst (relative to builder). If the compositor supports
// wp_security_context_manager_v1, a scoped, sandbox-labeled listener is bound
// directly at dst and handed to the compositor, so the compositor can
// distinguish and, if it chooses, restrict sandboxed clients. Otherwise this
// falls back to bind-mounting the host socket directly.
//
// On success using the secure-listener path, the returned *os.File is the
// write end of a revocation pipe that the caller must keep open (with
// CLOEXEC cleared so it survives the final exec) for as long as the sandbox
// runs: the compositor holds the read end, and sees it close exactly when
// this process's last fd referencing it closes, signaling the sandboxed
// client is gone. The returned file is nil whenever the plain bind-mount
// fallback was used.
func bindWaylandSocket(builder *dirBuilder, runtimeDir, dst, appID, instanceID string) (*os.File, error) {
	display := os.Getenv("WAYLAND_DISPLAY")
	if display == "" {
		display = "wayland-0"
	}

	hostSocket := filepath.Join(runtimeDir, display)

	closeFD, err := trySecureListener(builder, hostSocket, dst, appID, instanceID)
	if err != nil || closeFD == nil {
		return nil, builder.BindFile(hostSocket, dst)
	}

	return closeFD, nil
}

// trySecureListener attempts to negotiate a security-context-scoped listener
// socket with the compositor at hostSocket, binding it directly at dst inside
// builder (mirroring original_source's UnixListener::bind(nameat(runtime_dir,
// name))). It returns (nil, nil) if the compositor does not advertise
// wp_security_context_manager_v1, in which case the caller should fall back
// to a plain bind.
func trySecureListener(builder *dirBuilder, hostSocket, dst, appID, instanceID string) (*os.File, error) {
	conn, err := net.Dial("unix", hostSocket)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", hostSocket, err)
	}
	defer conn.Close()

	c := &waylandConn{conn: conn, objects: map[uint32]string{waylandDisplayObjectID: "wl_display"}, nextID: 2}

	registryID := c.nextObjectID("wl_registry")
	if err := c.sendRequest(waylandDisplayObjectID, waylandDisplayGetReg, encodeUint32(registryID)); err != nil {
		return nil, err
	}

	managerName, managerID, err := c.roundtripForGlobal(registryID, securityContextManagerInterface, securityContextManagerVersion)
	if err != nil {
		return nil, err
	}

	if managerName == 0 {
		return nil, nil
	}

	listenSocket, cleanupListener, err := newLocalListenerSocket(builder, dst)
	if err != nil {
		return nil, err
	}
	defer cleanupListener()

	listenerFD, err := listenSocket.File()
	if err != nil {
		return nil, fmt.Errorf("listener socket fd: %w", err)
	}
	defer listenerFD.Close()

	var pipeFDs [2]int
	if err := unix.Pipe2(pipeFDs[:], unix.O_CLOEXEC); err != nil {
		return nil, fmt.Errorf("pipe2: %w", err)
	}

	closeFDRead := os.NewFile(uintptr(pipeFDs[0]), "wayland-close-fd-read")
	closeFDWrite := os.NewFile(uintptr(pipeFDs[1]), "wayland-close-fd-write")
	defer closeFDRead.Close()

	secCtxID := c.nextObjectID("wp_security_context_v1")

	err = c.sendRequest(registryID, waylandRegistryBindOp, encodeBindArgs(managerName, securityContextManagerInterface, securityContextManagerVersion, managerID))
	if err != nil {
		closeFDWrite.Close()

		return nil, err
	}

	err = c.sendRequestWithFDs(managerID, secCtxCreateListenerOp, encodeUint32(secCtxID), int(listenerFD.Fd()), int(closeFDRead.Fd()))
	if err != nil {
		closeFDWrite.Close()

		return nil, fmt.Errorf("create_listener: %w", err)
	}

	if err := c.sendRequest(secCtxID, secCtxSetSandboxOp, encodeString(sandboxEngineID)); err != nil {
		closeFDWrite.Close()

		return nil, err
	}

	if err := c.sendRequest(secCtxID, secCtxSetAppIDOp, encodeString(appID)); err != nil {
		closeFDWrite.Close()

		return nil, err
	}

	if err := c.sendRequest(secCtxID, secCtxSetInstanceIDOp, encodeString(instanceID)); err != nil {
		closeFDWrite.Close()

		return nil, err
	}

	if err := c.sendRequest(secCtxID, secCtxCommitOp, nil); err != nil {
		closeFDWrite.Close()

		return nil, err
	}

	if err := c.roundtrip(); err != nil {
		closeFDWrite.Close()

		return nil, err
	}

	return closeFDWrite, nil
}

// waylandConn is a minimal client-side connection state: just enough to send
// requests and track the handful of object ids this broker creates.
type waylandConn struct {
	conn    net.Conn
	objects map[uint32]string
	nextID  uint32
}

func (c *waylandConn) nextObjectID(iface string) uint32 {
	id := c.nextID
	c.nextID++
	c.objects[id] = iface

	return id
}

func (c *waylandConn) sendRequest(objectID uint32, opcode uint16, args []byte) error {
	return c.sendRequestWithFDs(objectID, opcode, args)
}

// sendRequestWithFDs sends a request, attaching fds as SCM_RIGHTS ancillary
// data when any are given. create_listener needs two (the listener socket and
// the close-fd's read end) in a single message; other requests need none.
func (c *waylandConn) sendRequestWithFDs(objectID uint32, opcode uint16, args []byte, fds ...int) error {
	size := uint16(8 + len(args))

	msg := make([]byte, 8, int(size))
	binary.LittleEndian.PutUint32(msg[0:4], objectID)
	binary.LittleEndian.PutUint16(msg[4:6], opcode)
	binary.LittleEndian.PutUint16(msg[6:8], size)
	msg = append(msg, args...)

	unixConn, ok := c.conn.(*net.UnixConn)
	if ok && len(fds) > 0 {
		oob := unix.UnixRights(fds...)
		_, _, err := unixConn.WriteMsgUnix(msg, oob, nil)

		return err
	}

	_, err := c.conn.Write(msg)

	return err
}

// roundtripForGlobal sends wl_display.sync and scans registry-global events
// until the target interface is announced or the sync callback fires, in
// which case it returns (0, 0, nil) meaning "not offered".
func (c *waylandConn) roundtripForGlobal(registryID uint32, iface string, minVersion uint32) (uint32, uint32, error) {
	buf := make([]byte, 4096)

	if err := c.sendSync(); err != nil {
		return 0, 0, err
	}

	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return 0, 0, fmt.Errorf("read wayland events: %w", err)
		}

		name, version, done, matched := scanGlobalEvents(buf[:n], registryID, iface)
		if matched && version >= minVersion {
			return name, registryID, nil
		}

		if done {
			return 0, 0, nil
		}
	}
}

func (c *waylandConn) roundtrip() error {
	if err := c.sendSync(); err != nil {
		return err
	}

	buf := make([]byte, 4096)
	_, err := c.conn.Read(buf)

	return err
}

func (c *waylandConn) sendSync() error {
	cbID := c.nextObjectID("wl_callback")

	return c.sendRequest(waylandDisplayObjectID, waylandDisplaySyncOp, encodeUint32(cbID))
}

// scanGlobalEvents is a best-effort scan for wl_registry.global events inside
// a batch of received bytes; it does not attempt to handle messages split
// across read() calls, which in practice does not happen for the small,
// early-handshake traffic this broker exchanges.
func scanGlobalEvents(buf []byte, registryID uint32, wantIface string) (name, version uint32, sawDone, matched bool) {
	off := 0
	for off+8 <= len(buf) {
		objectID := binary.LittleEndian.Uint32(buf[off : off+4])
		opcode := binary.LittleEndian.Uint16(buf[off+4 : off+6])
		size := binary.LittleEndian.Uint16(buf[off+6 : off+8])

		if size < 8 || off+int(size) > len(buf) {
			break
		}

		body := buf[off+8 : off+int(size)]

		if objectID == registryID && opcode == waylandRegistryGlobalEv && len(body) >= 12 {
			n := binary.LittleEndian.Uint32(body[0:4])
			ifaceLen := int(binary.LittleEndian.Uint32(body[4:8]))

			if 8+ifaceLen <= len(body) {
				iface := string(body[8 : 8+ifaceLen-1])

				padded := (ifaceLen + 3) &^ 3
				if 8+padded+4 <= len(body) {
					v := binary.LittleEndian.Uint32(body[8+padded : 8+padded+4])
					if iface == wantIface {
						name, version, matched = n, v, true
					}
				}
			}
		}

		if objectID != registryID && opcode == waylandDisplayDoneEv {
			sawDone = true
		}

		off += int(size)
	}

	return name, version, sawDone, matched
}

func encodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)

	return buf
}

func encodeString(s string) []byte {
	raw := append([]byte(s), 0)
	padded := (len(raw) + 3) &^ 3

	buf := make([]byte, 4+padded)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(raw)))
	copy(buf[4:], raw)

	return buf
}

func encodeBindArgs(name uint32, iface string, version uint32, newID uint32) []byte {
	var buf []byte

	buf = append(buf, encodeUint32(name)...)
	buf = append(buf, encodeString(iface)...)
	buf = append(buf, encodeUint32(version)...)
	buf = append(buf, encodeUint32(newID)...)

	return buf
}

// newLocalListenerSocket binds a Unix listener at dst inside builder, so it
// exists as a real path the sandbox can later reach (mirroring
// original_source's UnixListener::bind(nameat(runtime_dir, name))), rather
// than an abstract-namespace socket with no filesystem presence.
func newLocalListenerSocket(builder *dirBuilder, dst string) (*net.UnixListener, func(), error) {
	addr, err := net.ResolveUnixAddr("unix", nameat(int(builder.root.Fd()), dst))
	if err != nil {
		return nil, nil, err
	}

	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen unix: %w", err)
	}

	// The bound socket file must outlive this listener: the sandboxed
	// process still needs to connect() at dst after this function's own fd
	// is closed (the compositor keeps the listening socket alive via its own
	// dup). Go's UnixListener otherwise unlinks the path on Close.
	l.SetUnlinkOnClose(false)

	return l, func() { _ = l.Close() }, nil
}
