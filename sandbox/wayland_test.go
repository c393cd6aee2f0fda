//go:build linux

package sandbox

import (
	"encoding/binary"
	"os"
	"testing"
)

func TestEncodeUint32(t *testing.T) {
	t.Parallel()

	buf := encodeUint32(0x01020304)

	want := []byte{0x04, 0x03, 0x02, 0x01}
	if string(buf) != string(want) {
		t.Errorf("encodeUint32() = % x, want % x", buf, want)
	}
}

func TestEncodeStringPadsTo32Bits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		wantLen int
	}{
		{in: "", wantLen: 4 + 4},     // 1-byte NUL padded to 4
		{in: "ab", wantLen: 4 + 4},   // 3 bytes padded to 4
		{in: "abc", wantLen: 4 + 4},  // 4 bytes, already aligned
		{in: "abcd", wantLen: 4 + 8}, // 5 bytes padded to 8
	}

	for _, tc := range tests {
		buf := encodeString(tc.in)

		if len(buf) != tc.wantLen {
			t.Errorf("encodeString(%q) len = %d, want %d", tc.in, len(buf), tc.wantLen)
		}

		if got := binary.LittleEndian.Uint32(buf[0:4]); got != uint32(len(tc.in))+1 {
			t.Errorf("encodeString(%q) length prefix = %d, want %d", tc.in, got, len(tc.in)+1)
		}

		if got := string(buf[4 : 4+len(tc.in)]); got != tc.in {
			t.Errorf("encodeString(%q) payload = %q", tc.in, got)
		}

		if buf[4+len(tc.in)] != 0 {
			t.Errorf("encodeString(%q) missing NUL terminator", tc.in)
		}
	}
}

func TestEncodeBindArgs(t *testing.T) {
	t.Parallel()

	buf := encodeBindArgs(3, "wl_compositor", 4, 9)

	if got := binary.LittleEndian.Uint32(buf[0:4]); got != 3 {
		t.Errorf("name = %d, want 3", got)
	}

	ifaceField := encodeString("wl_compositor")
	if string(buf[4:4+len(ifaceField)]) != string(ifaceField) {
		t.Errorf("encodeBindArgs() interface field mismatch")
	}

	rest := buf[4+len(ifaceField):]
	if got := binary.LittleEndian.Uint32(rest[0:4]); got != 4 {
		t.Errorf("version = %d, want 4", got)
	}

	if got := binary.LittleEndian.Uint32(rest[4:8]); got != 9 {
		t.Errorf("new_id = %d, want 9", got)
	}
}

// waylandMessage builds a single wire message: object id, opcode, size, body.
func waylandMessage(objectID uint32, opcode uint16, body []byte) []byte {
	size := 8 + len(body)
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], objectID)
	binary.LittleEndian.PutUint16(buf[4:6], opcode)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(size))
	copy(buf[8:], body)

	return buf
}

func TestScanGlobalEventsFindsMatchingInterface(t *testing.T) {
	t.Parallel()

	const registryID = 2

	body := make([]byte, 0)
	body = append(body, encodeUint32(5)...)
	ifaceBytes := encodeString("wp_security_context_manager_v1")
	body = append(body, ifaceBytes...)
	body = append(body, encodeUint32(1)...)

	msg := waylandMessage(registryID, waylandRegistryGlobalEv, body)

	name, version, sawDone, matched := scanGlobalEvents(msg, registryID, "wp_security_context_manager_v1")

	if !matched {
		t.Fatal("scanGlobalEvents() matched = false, want true")
	}

	if name != 5 {
		t.Errorf("name = %d, want 5", name)
	}

	if version != 1 {
		t.Errorf("version = %d, want 1", version)
	}

	if sawDone {
		t.Error("sawDone = true, want false")
	}
}

func TestScanGlobalEventsIgnoresOtherInterfaces(t *testing.T) {
	t.Parallel()

	const registryID = 2

	body := make([]byte, 0)
	body = append(body, encodeUint32(1)...)
	body = append(body, encodeString("wl_compositor")...)
	body = append(body, encodeUint32(4)...)

	msg := waylandMessage(registryID, waylandRegistryGlobalEv, body)

	_, _, _, matched := scanGlobalEvents(msg, registryID, "wp_security_context_manager_v1")
	if matched {
		t.Error("scanGlobalEvents() matched = true for an unrelated interface, want false")
	}
}

func TestScanGlobalEventsDetectsDone(t *testing.T) {
	t.Parallel()

	const registryID, callbackID = 2, 3

	msg := waylandMessage(callbackID, waylandDisplayDoneEv, nil)

	_, _, sawDone, matched := scanGlobalEvents(msg, registryID, "wp_security_context_manager_v1")
	if matched {
		t.Error("scanGlobalEvents() matched = true for a done event, want false")
	}

	if !sawDone {
		t.Error("sawDone = false, want true")
	}
}

func TestNewLocalListenerSocket(t *testing.T) {
	t.Parallel()

	dir, err := openDir(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer dir.Close()

	builder := newDirBuilder(dir)

	l, cleanup, err := newLocalListenerSocket(builder, "wayland-0")
	if err != nil {
		t.Fatal(err)
	}

	defer cleanup()

	if l.Addr().Network() != "unix" {
		t.Errorf("Addr().Network() = %q, want %q", l.Addr().Network(), "unix")
	}

	if _, err := os.Stat(dir.Name() + "/wayland-0"); err != nil {
		t.Errorf("listener socket not bound at a real path: %v", err)
	}
}
