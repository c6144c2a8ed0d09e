package arbiter

import (
	"errors"
	"io"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/coherentfs/coherentfs/internal/pathjoin"
	"github.com/coherentfs/coherentfs/internal/rpcapi"
	"github.com/coherentfs/coherentfs/internal/wlog"
)

// Service implements the nine server operation handlers as net/rpc
// methods, registered under rpcapi.ServiceName. Each handler translates
// unmarshaled arguments into local POSIX calls against root, the
// configured persistence directory.
type Service struct {
	root  string
	somt  *SOMT
	stats *Metrics

	mu         sync.Mutex
	handles    map[uint64]*os.File
	nextHandle uint64
}

// NewService builds a Service rooted at root, backed by somt for write
// arbitration and stats for Prometheus observability.
func NewService(root string, somt *SOMT, stats *Metrics) *Service {
	return &Service{
		root:    root,
		somt:    somt,
		stats:   stats,
		handles: make(map[uint64]*os.File),
	}
}

func (s *Service) fullPath(rel string) string {
	return pathjoin.Join(s.root, rel)
}

func (s *Service) trackHandle(f *os.File) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandle++
	h := s.nextHandle
	s.handles[h] = f
	return h
}

func (s *Service) lookupHandle(h uint64) (*os.File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.handles[h]
	return f, ok
}

func (s *Service) forgetHandle(h uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, h)
}

// errnoOf converts a local error into the wire currency of every reply: a
// negative errno int, or -EIO if the error carries no syscall.Errno.
func errnoOf(err error) int32 {
	if err == nil {
		return 0
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return -int32(errno)
	}
	return -int32(syscall.EIO)
}

func statFromUnix(st *unix.Stat_t) rpcapi.FileStat {
	return rpcapi.FileStat{
		Size: st.Size,
		Mode: st.Mode,
		Dev:  uint64(st.Dev),
		Atim: rpcapi.Timespec{Sec: int64(st.Atim.Sec), Nsec: int64(st.Atim.Nsec)},
		Mtim: rpcapi.Timespec{Sec: int64(st.Mtim.Sec), Nsec: int64(st.Mtim.Nsec)},
	}
}

// observe records the outcome in Prometheus and logs one correlation-id
// tagged debug line per dispatched call, so a request can be traced
// across server logs even though net/rpc gives no call-id of its own.
func (s *Service) observe(procedure, path string, start time.Time, ok bool) {
	reqID := uuid.NewString()
	wlog.Debugf("arbiter", "[%s] %s %s ok=%v (%s)", reqID, procedure, path, ok, time.Since(start))
	if s.stats != nil {
		s.stats.Observe(procedure, ok, time.Since(start).Seconds())
	}
}

// Getattr stats the full path and fills in reply.Stat on success.
func (s *Service) Getattr(args *rpcapi.GetattrArgs, reply *rpcapi.GetattrReply) error {
	start := time.Now()
	var st unix.Stat_t
	err := unix.Stat(s.fullPath(args.Path), &st)
	reply.Ret = errnoOf(err)
	if err == nil {
		reply.Stat = statFromUnix(&st)
	}
	s.observe("getattr", args.Path, start, err == nil)
	return nil
}

// Mknod creates the file at the full path with the given mode/dev.
func (s *Service) Mknod(args *rpcapi.MknodArgs, reply *rpcapi.MknodReply) error {
	start := time.Now()
	err := unix.Mknod(s.fullPath(args.Path), args.Mode, int(args.Dev))
	reply.Ret = errnoOf(err)
	s.observe("mknod", args.Path, start, err == nil)
	return nil
}

// Open runs the write arbitration then opens the file locally, handing
// back a server-assigned handle for subsequent read/write/fsync.
func (s *Service) Open(args *rpcapi.OpenArgs, reply *rpcapi.OpenReply) error {
	start := time.Now()
	if err := s.somt.Acquire(args.Path, args.FI.Flags); err != nil {
		reply.Ret = errnoOf(err)
		s.observe("open", args.Path, start, false)
		return nil
	}

	f, err := os.OpenFile(s.fullPath(args.Path), int(args.FI.Flags), 0644)
	if err != nil {
		reply.Ret = errnoOf(err)
		s.observe("open", args.Path, start, false)
		return nil
	}
	h := s.trackHandle(f)
	reply.FI = rpcapi.FileHandle{Flags: args.FI.Flags, Fh: h}
	reply.Ret = 0
	wlog.Debugf("arbiter", "open %s flags=%#o -> fh=%d", args.Path, args.FI.Flags, h)
	s.observe("open", args.Path, start, true)
	return nil
}

// Release closes the handle and demotes the SOMT record if it was held
// writable.
func (s *Service) Release(args *rpcapi.ReleaseArgs, reply *rpcapi.ReleaseReply) error {
	start := time.Now()
	f, ok := s.lookupHandle(args.FI.Fh)
	if !ok {
		reply.Ret = errnoOf(syscall.EBADF)
		s.observe("release", args.Path, start, false)
		return nil
	}
	err := f.Close()
	s.forgetHandle(args.FI.Fh)
	reply.Ret = errnoOf(err)
	if err == nil {
		s.somt.Release(args.Path, args.FI.Flags)
	}
	s.observe("release", args.Path, start, err == nil)
	return nil
}

// Read performs a positional read against fi.Fh.
func (s *Service) Read(args *rpcapi.ReadArgs, reply *rpcapi.ReadReply) error {
	start := time.Now()
	f, ok := s.lookupHandle(args.FI.Fh)
	if !ok {
		reply.Ret = errnoOf(syscall.EBADF)
		s.observe("read", args.Path, start, false)
		return nil
	}
	buf := make([]byte, args.Size)
	n, err := f.ReadAt(buf, args.Offset)
	if err != nil && !errors.Is(err, io.EOF) {
		reply.Ret = errnoOf(err)
		s.observe("read", args.Path, start, false)
		return nil
	}
	reply.Buf = buf[:n]
	reply.Ret = int32(n)
	s.observe("read", args.Path, start, true)
	return nil
}

// Write performs a positional write against fi.Fh.
func (s *Service) Write(args *rpcapi.WriteArgs, reply *rpcapi.WriteReply) error {
	start := time.Now()
	f, ok := s.lookupHandle(args.FI.Fh)
	if !ok {
		reply.Ret = errnoOf(syscall.EBADF)
		s.observe("write", args.Path, start, false)
		return nil
	}
	n, err := f.WriteAt(args.Buf, args.Offset)
	if err != nil {
		reply.Ret = errnoOf(err)
		s.observe("write", args.Path, start, false)
		return nil
	}
	reply.Ret = int32(n)
	s.observe("write", args.Path, start, true)
	return nil
}

// Truncate operates on the full path directly (not via a handle).
func (s *Service) Truncate(args *rpcapi.TruncateArgs, reply *rpcapi.TruncateReply) error {
	start := time.Now()
	err := os.Truncate(s.fullPath(args.Path), args.NewSize)
	reply.Ret = errnoOf(err)
	s.observe("truncate", args.Path, start, err == nil)
	return nil
}

// Fsync flushes the handle's dirty pages to stable storage.
func (s *Service) Fsync(args *rpcapi.FsyncArgs, reply *rpcapi.FsyncReply) error {
	start := time.Now()
	f, ok := s.lookupHandle(args.FI.Fh)
	if !ok {
		reply.Ret = errnoOf(syscall.EBADF)
		s.observe("fsync", args.Path, start, false)
		return nil
	}
	err := f.Sync()
	reply.Ret = errnoOf(err)
	s.observe("fsync", args.Path, start, err == nil)
	return nil
}

// Utimensat sets access/modification time on the full path directly, not
// following a trailing symlink (AT_SYMLINK_NOFOLLOW).
func (s *Service) Utimensat(args *rpcapi.UtimensatArgs, reply *rpcapi.UtimensatReply) error {
	start := time.Now()
	ts := []unix.Timespec{
		{Sec: args.Atim.Sec, Nsec: args.Atim.Nsec},
		{Sec: args.Mtim.Sec, Nsec: args.Mtim.Nsec},
	}
	err := unix.UtimesNanoAt(unix.AT_FDCWD, s.fullPath(args.Path), ts, unix.AT_SYMLINK_NOFOLLOW)
	reply.Ret = errnoOf(err)
	s.observe("utimensat", args.Path, start, err == nil)
	return nil
}
