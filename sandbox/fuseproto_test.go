//go:build linux

package sandbox

import (
	"encoding/binary"
	"testing"
)

func TestDecodeInHeader(t *testing.T) {
	t.Parallel()

	buf := make([]byte, fuseInHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], 64)
	binary.LittleEndian.PutUint32(buf[4:8], fuseOpLookup)
	binary.LittleEndian.PutUint64(buf[8:16], 7)
	binary.LittleEndian.PutUint64(buf[16:24], fuseRootID)
	binary.LittleEndian.PutUint32(buf[24:28], 1000)
	binary.LittleEndian.PutUint32(buf[28:32], 1000)
	binary.LittleEndian.PutUint32(buf[32:36], 4242)

	hdr := decodeInHeader(buf)

	want := fuseInHeader{Len: 64, Opcode: fuseOpLookup, Unique: 7, NodeID: fuseRootID, UID: 1000, GID: 1000, PID: 4242}
	if hdr != want {
		t.Errorf("decodeInHeader() = %+v, want %+v", hdr, want)
	}
}

func TestEncodeOutHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	buf := encodeOutHeader(fuseOutHeader{Len: fuseOutHeaderSize, Error: -2, Unique: 99})

	if len(buf) != fuseOutHeaderSize {
		t.Fatalf("encodeOutHeader() len = %d, want %d", len(buf), fuseOutHeaderSize)
	}

	if got := binary.LittleEndian.Uint32(buf[0:4]); got != fuseOutHeaderSize {
		t.Errorf("Len field = %d, want %d", got, fuseOutHeaderSize)
	}

	if got := int32(binary.LittleEndian.Uint32(buf[4:8])); got != -2 {
		t.Errorf("Error field = %d, want -2", got)
	}

	if got := binary.LittleEndian.Uint64(buf[8:16]); got != 99 {
		t.Errorf("Unique field = %d, want 99", got)
	}
}

func TestEncodeAttrLayout(t *testing.T) {
	t.Parallel()

	buf := encodeAttr(fuseAttr{Ino: 5, Size: 1024, Mode: fuseSModeReg | 0o644, Nlink: 1, UID: 1000, GID: 1000})

	if len(buf) != fuseAttrSize {
		t.Fatalf("encodeAttr() len = %d, want %d", len(buf), fuseAttrSize)
	}

	if got := binary.LittleEndian.Uint64(buf[0:8]); got != 5 {
		t.Errorf("Ino = %d, want 5", got)
	}

	if got := binary.LittleEndian.Uint64(buf[8:16]); got != 1024 {
		t.Errorf("Size = %d, want 1024", got)
	}

	if got := binary.LittleEndian.Uint32(buf[60:64]); got != fuseSModeReg|0o644 {
		t.Errorf("Mode = %o, want %o", got, fuseSModeReg|0o644)
	}

	if got := binary.LittleEndian.Uint32(buf[64:68]); got != 1 {
		t.Errorf("Nlink = %d, want 1", got)
	}

	if got := binary.LittleEndian.Uint32(buf[68:72]); got != 1000 {
		t.Errorf("UID = %d, want 1000", got)
	}
}

func TestEncodeEntryOutLength(t *testing.T) {
	t.Parallel()

	buf := encodeEntryOut(3, fuseAttr{Ino: 3, Mode: fuseSModeDir | 0o755}, 1, 1)

	wantLen := 16 + 8 + 8 + 4 + 4 + fuseAttrSize
	if len(buf) != wantLen {
		t.Fatalf("encodeEntryOut() len = %d, want %d", len(buf), wantLen)
	}

	if got := binary.LittleEndian.Uint64(buf[0:8]); got != 3 {
		t.Errorf("nodeid = %d, want 3", got)
	}
}

func TestEncodeAttrOutLength(t *testing.T) {
	t.Parallel()

	buf := encodeAttrOut(fuseAttr{Ino: 1}, 1)

	wantLen := 16 + fuseAttrSize
	if len(buf) != wantLen {
		t.Fatalf("encodeAttrOut() len = %d, want %d", len(buf), wantLen)
	}
}

func TestEncodeInitOutAdvertisesVersion(t *testing.T) {
	t.Parallel()

	buf := encodeInitOut()

	if got := binary.LittleEndian.Uint32(buf[0:4]); got != fuseKernelVersion {
		t.Errorf("major version = %d, want %d", got, fuseKernelVersion)
	}

	if got := binary.LittleEndian.Uint32(buf[4:8]); got != fuseKernelMinorVersion {
		t.Errorf("minor version = %d, want %d", got, fuseKernelMinorVersion)
	}
}

func TestEncodeOpenOutLength(t *testing.T) {
	t.Parallel()

	buf := encodeOpenOut(77)

	if len(buf) != 16 {
		t.Fatalf("encodeOpenOut() len = %d, want 16", len(buf))
	}

	if got := binary.LittleEndian.Uint64(buf[0:8]); got != 77 {
		t.Errorf("fh = %d, want 77", got)
	}
}

func TestEncodeDirentPadsToEightByteBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		wantLen  int
	}{
		{name: "a", wantLen: 24 + 8},    // 25 rounds up to 32
		{name: "ab", wantLen: 24 + 8},   // 26 rounds up to 32
		{name: "abcdefgh", wantLen: 24 + 8}, // 32 already aligned
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			buf := encodeDirent(1, 0, tc.name, fuseSModeReg)

			if len(buf)%8 != 0 {
				t.Fatalf("encodeDirent(%q) len = %d, not 8-byte aligned", tc.name, len(buf))
			}

			if len(buf) != tc.wantLen {
				t.Errorf("encodeDirent(%q) len = %d, want %d", tc.name, len(buf), tc.wantLen)
			}

			if got := binary.LittleEndian.Uint32(buf[16:20]); got != uint32(len(tc.name)) {
				t.Errorf("namelen = %d, want %d", got, len(tc.name))
			}

			if got := string(buf[24 : 24+len(tc.name)]); got != tc.name {
				t.Errorf("name = %q, want %q", got, tc.name)
			}

			if got := binary.LittleEndian.Uint32(buf[20:24]); got != fuseSModeReg>>12 {
				t.Errorf("d_type = %d, want %d", got, fuseSModeReg>>12)
			}
		})
	}
}
