//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// ImageIno identifies a node within an ImageTree. The root is always 1,
// matching fuseRootID.
type ImageIno uint64

// ImageKind discriminates the node kinds an ImageTree can serve.
type ImageKind int

const (
	ImageKindDir ImageKind = iota
	ImageKindFile
	ImageKindSymlink
)

// ImageAttr is the subset of file metadata the FUSE server needs to answer
// GETATTR/LOOKUP.
type ImageAttr struct {
	Kind ImageKind
	Mode uint32
	Size uint64
}

// ImageDirEntry is one child reported by ImageTree.ReadDir.
type ImageDirEntry struct {
	Name string
	Ino  ImageIno
	Kind ImageKind
}

// ImageTree is the read-only content this package's FUSE server exposes,
// backed by a content-addressed store's "files" subtree for one installed
// image (component F serves exactly this, per image, for the lifetime of one
// sandbox run).
type ImageTree interface {
	Root() ImageIno
	Lookup(parent ImageIno, name string) (ImageIno, bool, error)
	Attr(ino ImageIno) (ImageAttr, error)
	ReadDir(ino ImageIno) ([]ImageDirEntry, error)
	ReadLink(ino ImageIno) (string, error)
	ReadFile(ino ImageIno, offset int64, size int) ([]byte, error)
}

// fuseImageServer serves one ImageTree over an already fsopen'd /dev/fuse
// connection fd.
type fuseImageServer struct {
	conn *os.File
	tree ImageTree
	uid  uint32
	gid  uint32

	mu      sync.Mutex
	handles map[uint64]ImageIno
	nextFH  uint64
}

// mountFuseImage opens /dev/fuse, builds the fsopen("fuse") context with the
// options the kernel requires to hand this process ownership of the mount
// (ro, allow_other, rootmode, user_id/group_id, and the connection fd
// itself), and returns both the detached MountHandle (to be moved into place
// by the caller, mirroring how the filesystem handle this package is modeled
// on is built before being attached) and a server that must be run in its own
// goroutine via Serve.
func mountFuseImage(tree ImageTree, uid, gid uint32) (*MountHandle, *fuseImageServer, error) {
	devFuse, err := os.OpenFile("/dev/fuse", os.O_RDWR, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open /dev/fuse: %w", err)
	}

	fs, err := newFsHandle("fuse")
	if err != nil {
		_ = devFuse.Close()

		return nil, nil, err
	}

	steps := []func() error{
		func() error { return fs.SetFlag("ro") },
		func() error { return fs.SetFlag("allow_other") },
		func() error { return fs.SetString("source", "flatpak-go-fuse") },
		func() error { return fs.SetUint("rootmode", fuseSModeDir|0o555) },
		func() error { return fs.SetUint("user_id", uid) },
		func() error { return fs.SetUint("group_id", gid) },
		func() error { return fs.SetFd("fd", int(devFuse.Fd())) },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			_ = devFuse.Close()
			_ = unix.Close(fs.fd)

			return nil, nil, err
		}
	}

	mount, err := fs.Mount()
	if err != nil {
		_ = devFuse.Close()

		return nil, nil, err
	}

	server := &fuseImageServer{
		conn:    devFuse,
		tree:    tree,
		uid:     uid,
		gid:     gid,
		handles: make(map[uint64]ImageIno),
	}

	return mount, server, nil
}

// Serve runs the request loop until the connection is closed (typically
// because the mount was unmounted or the sandbox process exits). It is meant
// to run in its own goroutine, started right after the mount has been moved
// into place.
func (s *fuseImageServer) Serve() error {
	buf := make([]byte, 128*1024)

	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("read /dev/fuse: %w", err)
		}

		if n < fuseInHeaderSize {
			continue
		}

		req := buf[:n]
		hdr := decodeInHeader(req)
		body := req[fuseInHeaderSize:]

		reply, replyErr := s.dispatch(hdr, body)
		if err := s.writeReply(hdr.Unique, reply, replyErr); err != nil {
			return err
		}
	}
}

func (s *fuseImageServer) writeReply(unique uint64, body []byte, errno error) error {
	errCode := int32(0)
	if errno != nil {
		errCode = -int32(errnoOf(errno))
		body = nil
	}

	out := encodeOutHeader(fuseOutHeader{Len: uint32(fuseOutHeaderSize + len(body)), Error: errCode, Unique: unique})
	out = append(out, body...)

	_, err := s.conn.Write(out)

	return err
}

func errnoOf(err error) unix.Errno {
	var errno unix.Errno
	if e, ok := err.(unix.Errno); ok {
		errno = e
	} else {
		errno = unix.EIO
	}

	return errno
}

func (s *fuseImageServer) dispatch(hdr fuseInHeader, body []byte) ([]byte, error) {
	switch hdr.Opcode {
	case fuseOpInit:
		return encodeInitOut(), nil
	case fuseOpLookup:
		return s.lookup(ImageIno(hdr.NodeID), nullTerminatedString(body))
	case fuseOpGetattr:
		return s.getattr(ImageIno(hdr.NodeID))
	case fuseOpOpen, fuseOpOpendir:
		return s.open(ImageIno(hdr.NodeID))
	case fuseOpRead:
		return s.read(body)
	case fuseOpReaddir, fuseOpReaddirplus:
		return s.readdir(ImageIno(hdr.NodeID), body, hdr.Opcode == fuseOpReaddirplus)
	case fuseOpReadlink:
		return s.readlink(ImageIno(hdr.NodeID))
	case fuseOpRelease, fuseOpReleasedir:
		s.release(body)

		return nil, nil
	case fuseOpForget:
		return nil, nil
	case fuseOpStatfs:
		return s.statfs()
	default:
		return nil, unix.ENOSYS
	}
}

func (s *fuseImageServer) lookup(parent ImageIno, name string) ([]byte, error) {
	ino, ok, err := s.tree.Lookup(parent, name)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, unix.ENOENT
	}

	attr, err := s.tree.Attr(ino)
	if err != nil {
		return nil, err
	}

	return encodeEntryOut(uint64(ino), s.toFuseAttr(ino, attr), 1, 1), nil
}

func (s *fuseImageServer) getattr(ino ImageIno) ([]byte, error) {
	attr, err := s.tree.Attr(ino)
	if err != nil {
		return nil, err
	}

	return encodeAttrOut(s.toFuseAttr(ino, attr), 1), nil
}

func (s *fuseImageServer) open(ino ImageIno) ([]byte, error) {
	s.mu.Lock()
	s.nextFH++
	fh := s.nextFH
	s.handles[fh] = ino
	s.mu.Unlock()

	return encodeOpenOut(fh), nil
}

func (s *fuseImageServer) release(body []byte) {
	if len(body) < 8 {
		return
	}

	fh := leUint64(body[0:8])

	s.mu.Lock()
	delete(s.handles, fh)
	s.mu.Unlock()
}

func (s *fuseImageServer) read(body []byte) ([]byte, error) {
	if len(body) < 16 {
		return nil, unix.EINVAL
	}

	fh := leUint64(body[0:8])
	offset := leUint64(body[8:16])

	size := 4096
	if len(body) >= 20 {
		size = int(leUint32(body[16:20]))
	}

	s.mu.Lock()
	ino, ok := s.handles[fh]
	s.mu.Unlock()

	if !ok {
		return nil, unix.EBADF
	}

	return s.tree.ReadFile(ino, int64(offset), size)
}

func (s *fuseImageServer) readdir(ino ImageIno, body []byte, plus bool) ([]byte, error) {
	entries, err := s.tree.ReadDir(ino)
	if err != nil {
		return nil, err
	}

	offset := uint64(0)
	if len(body) >= 16 {
		offset = leUint64(body[8:16])
	}

	var out []byte

	for i, entry := range entries {
		entryOffset := uint64(i) + 1
		if entryOffset <= offset {
			continue
		}

		attr, _ := s.tree.Attr(entry.Ino)
		mode := s.toFuseAttr(entry.Ino, attr).Mode

		if plus {
			out = append(out, encodeEntryOut(uint64(entry.Ino), s.toFuseAttr(entry.Ino, attr), 1, 1)...)
		}

		out = append(out, encodeDirent(uint64(entry.Ino), entryOffset, entry.Name, mode)...)
	}

	return out, nil
}

func (s *fuseImageServer) readlink(ino ImageIno) ([]byte, error) {
	target, err := s.tree.ReadLink(ino)
	if err != nil {
		return nil, err
	}

	return []byte(target), nil
}

func (s *fuseImageServer) statfs() ([]byte, error) {
	buf := make([]byte, 80)

	return buf, nil
}

func (s *fuseImageServer) toFuseAttr(ino ImageIno, attr ImageAttr) fuseAttr {
	mode := attr.Mode

	switch attr.Kind {
	case ImageKindDir:
		mode |= fuseSModeDir
	case ImageKindSymlink:
		mode |= fuseSModeLnk
	default:
		mode |= fuseSModeReg
	}

	return fuseAttr{
		Ino:     uint64(ino),
		Size:    attr.Size,
		Mode:    mode,
		Nlink:   1,
		UID:     s.uid,
		GID:     s.gid,
		BlkSize: 4096,
		Blocks:  (attr.Size + 511) / 512,
	}
}

func nullTerminatedString(body []byte) string {
	for i, b := range body {
		if b == 0 {
			return string(body[:i])
		}
	}

	return string(body)
}

func leUint64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
