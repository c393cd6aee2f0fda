//go:build linux

package sandbox

import "encoding/binary"

// This file defines the slice of the FUSE kernel ABI (include/uapi/linux/fuse.h)
// this package's hand-rolled server needs. No vendored FUSE library in reach
// supports serving over an fd obtained from this package's own
// fsopen("fuse")/fsmount sequence (every such library performs its own mount
// internally), so the wire protocol is implemented directly against the
// stable opcode/struct layout instead of adopting a library's in-memory
// object model.

const (
	fuseOpLookup      = 1
	fuseOpForget      = 2
	fuseOpGetattr     = 3
	fuseOpReadlink    = 5
	fuseOpOpen        = 14
	fuseOpRead        = 15
	fuseOpRelease     = 18
	fuseOpStatfs      = 17
	fuseOpInit        = 26
	fuseOpOpendir     = 27
	fuseOpReaddir     = 28
	fuseOpReleasedir  = 29
	fuseOpReaddirplus = 44
)

const (
	fuseKernelVersion      = 7
	fuseKernelMinorVersion = 31

	fuseRootID = 1

	// fuseSModeDir/Reg/Lnk are the S_IFMT bits the kernel expects in Attr.Mode.
	fuseSModeDir = 0o040000
	fuseSModeReg = 0o100000
	fuseSModeLnk = 0o120000
)

// fuseInHeader is the fixed-size header prefixing every request.
type fuseInHeader struct {
	Len     uint32
	Opcode  uint32
	Unique  uint64
	NodeID  uint64
	UID     uint32
	GID     uint32
	PID     uint32
	Padding uint32
}

const fuseInHeaderSize = 40

func decodeInHeader(buf []byte) fuseInHeader {
	return fuseInHeader{
		Len:    binary.LittleEndian.Uint32(buf[0:4]),
		Opcode: binary.LittleEndian.Uint32(buf[4:8]),
		Unique: binary.LittleEndian.Uint64(buf[8:16]),
		NodeID: binary.LittleEndian.Uint64(buf[16:24]),
		UID:    binary.LittleEndian.Uint32(buf[24:28]),
		GID:    binary.LittleEndian.Uint32(buf[28:32]),
		PID:    binary.LittleEndian.Uint32(buf[32:36]),
	}
}

// fuseOutHeader is the fixed-size header prefixing every reply.
type fuseOutHeader struct {
	Len    uint32
	Error  int32
	Unique uint64
}

const fuseOutHeaderSize = 16

func encodeOutHeader(h fuseOutHeader) []byte {
	buf := make([]byte, fuseOutHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Len)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Error))
	binary.LittleEndian.PutUint64(buf[8:16], h.Unique)

	return buf
}

// fuseAttr mirrors struct fuse_attr.
type fuseAttr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	Mode      uint32
	Nlink     uint32
	UID       uint32
	GID       uint32
	Rdev      uint32
	BlkSize   uint32
}

const fuseAttrSize = 88

func encodeAttr(a fuseAttr) []byte {
	buf := make([]byte, fuseAttrSize)
	binary.LittleEndian.PutUint64(buf[0:8], a.Ino)
	binary.LittleEndian.PutUint64(buf[8:16], a.Size)
	binary.LittleEndian.PutUint64(buf[16:24], a.Blocks)
	binary.LittleEndian.PutUint64(buf[24:32], a.Atime)
	binary.LittleEndian.PutUint64(buf[32:40], a.Mtime)
	binary.LittleEndian.PutUint64(buf[40:48], a.Ctime)
	// buf[48:60] is atimensec/mtimensec/ctimensec, left zero.
	binary.LittleEndian.PutUint32(buf[60:64], a.Mode)
	binary.LittleEndian.PutUint32(buf[64:68], a.Nlink)
	binary.LittleEndian.PutUint32(buf[68:72], a.UID)
	binary.LittleEndian.PutUint32(buf[72:76], a.GID)
	binary.LittleEndian.PutUint32(buf[76:80], a.Rdev)
	binary.LittleEndian.PutUint32(buf[80:84], a.BlkSize)
	// buf[84:88] is padding, left zero.

	return buf
}

// encodeEntryOut builds the body of a LOOKUP (and MKNOD/MKDIR, unused here)
// reply: struct fuse_entry_out followed implicitly by nothing.
func encodeEntryOut(nodeID uint64, attr fuseAttr, entryValid, attrValid uint64) []byte {
	buf := make([]byte, 0, 16+8+8+4+4+fuseAttrSize)
	tmp := make([]byte, 8)

	binary.LittleEndian.PutUint64(tmp, nodeID)
	buf = append(buf, tmp...)
	binary.LittleEndian.PutUint64(tmp, 1) // generation
	buf = append(buf, tmp...)
	binary.LittleEndian.PutUint64(tmp, entryValid)
	buf = append(buf, tmp...)
	binary.LittleEndian.PutUint64(tmp, attrValid)
	buf = append(buf, tmp...)

	tmp4 := make([]byte, 4)
	binary.LittleEndian.PutUint32(tmp4, 0)
	buf = append(buf, tmp4...) // entry_valid_nsec
	buf = append(buf, tmp4...) // attr_valid_nsec

	buf = append(buf, encodeAttr(attr)...)

	return buf
}

// encodeAttrOut builds the body of a GETATTR reply.
func encodeAttrOut(attr fuseAttr, attrValid uint64) []byte {
	buf := make([]byte, 0, 16+fuseAttrSize)
	tmp := make([]byte, 8)

	binary.LittleEndian.PutUint64(tmp, attrValid)
	buf = append(buf, tmp...)

	tmp4 := make([]byte, 4)
	buf = append(buf, tmp4...) // attr_valid_nsec
	buf = append(buf, tmp4...) // dummy padding

	buf = append(buf, encodeAttr(attr)...)

	return buf
}

// encodeInitOut builds the body of an INIT reply, matching the protocol
// version presented by this server.
func encodeInitOut() []byte {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint32(buf[0:4], fuseKernelVersion)
	binary.LittleEndian.PutUint32(buf[4:8], fuseKernelMinorVersion)
	binary.LittleEndian.PutUint32(buf[8:12], 4096) // max_readahead
	binary.LittleEndian.PutUint32(buf[12:16], 0)    // flags: no extensions offered
	binary.LittleEndian.PutUint16(buf[16:18], 0)    // max_background
	binary.LittleEndian.PutUint16(buf[18:20], 0)    // congestion_threshold
	binary.LittleEndian.PutUint32(buf[20:24], 128*1024)

	return buf
}

// encodeOpenOut builds the body of an OPEN/OPENDIR reply.
func encodeOpenOut(fh uint64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], fh)
	binary.LittleEndian.PutUint32(buf[8:12], 0) // open_flags: cache normally

	return buf
}

// encodeDirent encodes one struct fuse_dirent (READDIR) entry, padded to an
// 8-byte boundary as the protocol requires.
func encodeDirent(ino uint64, offset uint64, name string, mode uint32) []byte {
	nameBytes := []byte(name)
	entryLen := 24 + len(nameBytes)
	padded := (entryLen + 7) &^ 7

	buf := make([]byte, padded)
	binary.LittleEndian.PutUint64(buf[0:8], ino)
	binary.LittleEndian.PutUint64(buf[8:16], offset)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(len(nameBytes)))
	binary.LittleEndian.PutUint32(buf[20:24], mode>>12) // d_type derived from S_IFMT bits
	copy(buf[24:], nameBytes)

	return buf
}
