// Package fuseio adapts kernel-dispatched FUSE callbacks onto
// vfs.SessionManager's nine operations. It owns no coherence logic of its
// own: every callback below is a thin translation from bazil.org/fuse's
// request/response shapes to Session Manager calls and back. Directory
// creation, removal, and renaming are not implemented — this mount
// exposes a flat path namespace whose only structure is what the server
// already persists.
package fuseio

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/coherentfs/coherentfs/internal/rpcapi"
	"github.com/coherentfs/coherentfs/vfs"
)

// FS is the mounted filesystem root, holding the one Session Manager
// shared by every node and handle.
type FS struct {
	Sessions *vfs.SessionManager
}

var _ fs.FS = (*FS)(nil)

// Root returns the filesystem's root node at the empty mount-relative
// path.
func (f *FS) Root() (fs.Node, error) {
	return &Node{fs: f, path: ""}, nil
}

// Node represents one mount-relative path. The same type serves both as
// an intermediate path component (via Lookup) and as a file leaf; there
// is no separate directory type because directory operations are not
// supported.
type Node struct {
	fs   *FS
	path string
}

var _ fs.Node = (*Node)(nil)
var _ fs.NodeStringLookuper = (*Node)(nil)
var _ fs.NodeCreater = (*Node)(nil)
var _ fs.NodeOpener = (*Node)(nil)
var _ fs.NodeSetattrer = (*Node)(nil)
var _ fs.HandleReadDirAller = (*Node)(nil)

func (n *Node) child(name string) *Node {
	return &Node{fs: n.fs, path: n.path + "/" + name}
}

// toFuseErr converts a local error into bazil.org/fuse's error currency:
// fuse.Errno when the error carries a syscall.Errno, EIO otherwise.
func toFuseErr(err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fuse.Errno(errno)
	}
	return fuse.Errno(syscall.EIO)
}

func fillAttr(a *fuse.Attr, st rpcapi.FileStat) {
	a.Valid = 0
	a.Size = uint64(st.Size)
	a.Mode = os.FileMode(st.Mode & 0777)
	if st.Mode&syscall.S_IFDIR != 0 {
		a.Mode |= os.ModeDir
	}
	a.Mtime = time.Unix(st.Mtim.Sec, st.Mtim.Nsec)
	a.Atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
	a.Uid = uint32(os.Getuid())
	a.Gid = uint32(os.Getgid())
}

// Attr fills a via a remote-confirmed getattr.
func (n *Node) Attr(ctx context.Context, a *fuse.Attr) error {
	if n.path == "" {
		a.Mode = os.ModeDir | 0755
		a.Uid = uint32(os.Getuid())
		a.Gid = uint32(os.Getgid())
		return nil
	}
	st, err := n.fs.Sessions.Getattr(n.path)
	if err != nil {
		return toFuseErr(err)
	}
	fillAttr(a, st)
	return nil
}

// Lookup resolves name under n, confirming existence against the server.
func (n *Node) Lookup(ctx context.Context, name string) (fs.Node, error) {
	child := n.child(name)
	if _, err := n.fs.Sessions.Getattr(child.path); err != nil {
		return nil, toFuseErr(err)
	}
	return child, nil
}

// ReadDirAll is unimplemented: directory listing is out of scope.
func (n *Node) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	return nil, fuse.Errno(syscall.ENOSYS)
}

// Create opens name under n with O_CREAT set, materializing it on the
// server if needed.
func (n *Node) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	child := n.child(req.Name)
	flags := uint32(req.Flags) | uint32(os.O_CREAT)
	if err := n.fs.Sessions.Open(child.path, flags); err != nil {
		return nil, nil, toFuseErr(err)
	}
	h := &Handle{sessions: n.fs.Sessions, path: child.path, flags: flags}
	return child, h, nil
}

// Open opens the node's path through the Session Manager.
func (n *Node) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	flags := uint32(req.Flags)
	if err := n.fs.Sessions.Open(n.path, flags); err != nil {
		return nil, toFuseErr(err)
	}
	return &Handle{sessions: n.fs.Sessions, path: n.path, flags: flags}, nil
}

// Setattr handles the two mutations the Session Manager exposes outside
// a live handle: truncate (SetattrSize) and utimensat (SetattrMtime /
// SetattrAtime).
func (n *Node) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	if req.Valid.Size() {
		if err := n.fs.Sessions.Truncate(n.path, int64(req.Size)); err != nil {
			return toFuseErr(err)
		}
	}
	if req.Valid.Mtime() || req.Valid.Atime() {
		ts := func(t time.Time) rpcapi.Timespec {
			return rpcapi.Timespec{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
		}
		if err := n.fs.Sessions.Utimensat(n.path, ts(req.Atime), ts(req.Mtime)); err != nil {
			return toFuseErr(err)
		}
	}
	return n.Attr(ctx, &resp.Attr)
}

// Handle is the live file handle returned by Open/Create, forwarding
// read/write/release/fsync to the Session Manager.
type Handle struct {
	sessions *vfs.SessionManager
	path     string
	flags    uint32
}

var _ fs.HandleReader = (*Handle)(nil)
var _ fs.HandleWriter = (*Handle)(nil)
var _ fs.HandleReleaser = (*Handle)(nil)
var _ fs.HandleFlusher = (*Handle)(nil)

// Read serves req.Size bytes at req.Offset.
func (h *Handle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf := make([]byte, req.Size)
	n, err := h.sessions.Read(h.path, buf, req.Offset)
	if err != nil {
		return toFuseErr(err)
	}
	resp.Data = buf[:n]
	return nil
}

// Write pushes req.Data at req.Offset.
func (h *Handle) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := h.sessions.Write(h.path, req.Data, req.Offset)
	if err != nil {
		return toFuseErr(err)
	}
	resp.Size = n
	return nil
}

// Flush maps to fsync for a writable handle: every write already uploads
// synchronously, and Fsync uploads once more. On a read-only handle Flush
// is a no-op returning success, since the Session Manager's Fsync would
// reject it with EMFILE.
func (h *Handle) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	if h.flags&uint32(syscall.O_ACCMODE) == uint32(syscall.O_RDONLY) {
		return nil
	}
	return toFuseErr(h.sessions.Fsync(h.path))
}

// Release closes the session, uploading first if it was writable.
func (h *Handle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	return toFuseErr(h.sessions.Release(h.path, rpcapi.FileHandle{Flags: h.flags}))
}
