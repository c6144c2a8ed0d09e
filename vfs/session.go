package vfs

import (
	"errors"
	"io"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/coherentfs/coherentfs/internal/pathjoin"
	"github.com/coherentfs/coherentfs/internal/rpcapi"
	"github.com/coherentfs/coherentfs/internal/wlog"
)

// SessionManager is the Client Session Manager: it owns the CST, the
// Transfer and Freshness engines, and the remote connection, and exposes
// the nine kernel-facing operations.
type SessionManager struct {
	root      string
	cst       *CST
	remote    *Remote
	transfer  *Transfer
	freshness *Freshness
	t         time.Duration
	stats     *Metrics
	now       func() time.Time
}

// NewSessionManager builds a Session Manager caching under root, talking
// to remote, with a freshness interval of t. cst may be a fresh NewCST()
// or one already wired into a Metrics gauge. stats may be nil.
func NewSessionManager(root string, cst *CST, remote *Remote, t time.Duration, stats *Metrics) *SessionManager {
	return &SessionManager{
		root:      root,
		cst:       cst,
		remote:    remote,
		transfer:  NewTransfer(remote),
		freshness: NewFreshness(remote),
		t:         t,
		stats:     stats,
		now:       time.Now,
	}
}

func (m *SessionManager) fullPath(path string) string {
	return pathjoin.Join(m.root, path)
}

func (m *SessionManager) observe(op string, start time.Time, ok bool) {
	if m.stats != nil {
		m.stats.Observe(op, ok, time.Since(start).Seconds())
	}
}

// Open rejects a second session on the same path, then issues the remote
// open itself (creating the server copy first if flags carry O_CREAT):
// this is what registers the session's access mode with the server's
// write arbiter for the session's whole lifetime, not just during a
// transfer. It then downloads a coherent local copy, opens it locally,
// and registers the CST entry against the handle the remote open
// returned.
func (m *SessionManager) Open(path string, flags uint32) error {
	start := m.now()
	if _, ok := m.cst.Lookup(path); ok {
		m.observe("open", start, false)
		return syscall.EMFILE
	}

	fi, err := m.remote.Open(path, flags)
	if err != nil {
		m.observe("open", start, false)
		return err
	}

	full := m.fullPath(path)
	if err := m.transfer.Download(path, full); err != nil {
		_ = m.remote.Release(path, fi)
		m.observe("open", start, false)
		return err
	}

	f, err := os.OpenFile(full, int(flags), 0644)
	if err != nil {
		_ = m.remote.Release(path, fi)
		m.observe("open", start, false)
		return err
	}
	if _, err := m.cst.Insert(path, flags, f, fi, m.now()); err != nil {
		_ = f.Close()
		_ = m.remote.Release(path, fi)
		m.observe("open", start, false)
		return err
	}
	wlog.Debugf("session", "open %s flags=%#o -> remote fh=%d", path, flags, fi.Fh)
	m.observe("open", start, true)
	return nil
}

// Release uploads through the session's own remote handle if it was
// writable, closes the local descriptor regardless, releases the remote
// handle (demoting its SOMT record if the handle was writable), and erases the CST entry
// unconditionally once closed.
func (m *SessionManager) Release(path string, fi rpcapi.FileHandle) error {
	start := m.now()
	e, ok := m.cst.Lookup(path)
	if !ok {
		m.observe("release", start, false)
		return syscall.EBADF
	}

	e.mu.Lock()
	var uploadErr error
	if !e.readOnly() {
		uploadErr = m.transfer.UploadUsing(path, m.fullPath(path), e.remoteFI)
	}
	closeErr := e.localFd.Close()
	releaseErr := m.remote.Release(path, e.remoteFI)
	e.mu.Unlock()

	m.cst.Erase(path)

	if uploadErr != nil {
		m.observe("release", start, false)
		return uploadErr
	}
	if releaseErr != nil {
		m.observe("release", start, false)
		return releaseErr
	}
	m.observe("release", start, closeErr == nil)
	return closeErr
}

// Getattr always validates against the server first, then decides
// whether to trust a live session's local copy or materialize a
// transient one.
func (m *SessionManager) Getattr(path string) (rpcapi.FileStat, error) {
	start := m.now()
	if _, err := m.remote.Getattr(path); err != nil {
		m.observe("getattr", start, false)
		return rpcapi.FileStat{}, err
	}

	full := m.fullPath(path)
	e, ok := m.cst.Lookup(path)
	if !ok {
		if err := m.Open(path, uint32(os.O_RDONLY)); err != nil {
			m.observe("getattr", start, false)
			return rpcapi.FileStat{}, err
		}
		st, statErr := localStat(full)
		relErr := m.Release(path, rpcapi.FileHandle{Flags: uint32(os.O_RDONLY)})
		if statErr != nil {
			m.observe("getattr", start, false)
			return rpcapi.FileStat{}, statErr
		}
		m.observe("getattr", start, relErr == nil)
		return st, relErr
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readOnly() {
		fresh, tc, err := m.freshness.Check(path, full, e.tc, m.t)
		if err != nil {
			m.observe("getattr", start, false)
			return rpcapi.FileStat{}, err
		}
		if fresh {
			e.tc = tc
		} else if err := m.transfer.Download(path, full); err != nil {
			m.observe("getattr", start, false)
			return rpcapi.FileStat{}, err
		}
	}
	st, err := localStat(full)
	m.observe("getattr", start, err == nil)
	return st, err
}

// readAtTolerant wraps ReadAt so that reaching EOF while partially (or
// fully) filling buf is reported as a normal short read, matching pread's
// behavior rather than Go's io.Reader convention.
func readAtTolerant(f *os.File, buf []byte, offset int64) (int, error) {
	n, err := f.ReadAt(buf, offset)
	if err != nil && errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

// Read serves a writer straight from its own cache with no freshness
// check; a reader revalidates first.
func (m *SessionManager) Read(path string, buf []byte, offset int64) (int, error) {
	start := m.now()
	e, ok := m.cst.Lookup(path)
	if !ok {
		m.observe("read", start, false)
		return 0, syscall.EBADF
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.readOnly() {
		n, err := readAtTolerant(e.localFd, buf, offset)
		m.observe("read", start, err == nil)
		return n, err
	}

	full := m.fullPath(path)
	fresh, tc, err := m.freshness.Check(path, full, e.tc, m.t)
	if err != nil {
		m.observe("read", start, false)
		return 0, err
	}
	if fresh {
		e.tc = tc
	} else {
		if err := m.transfer.Download(path, full); err != nil {
			m.observe("read", start, false)
			return 0, err
		}
		e.tc = m.now()
	}
	n, err := readAtTolerant(e.localFd, buf, offset)
	m.observe("read", start, err == nil)
	return n, err
}

// Write writes locally then pushes the whole file up immediately,
// refreshing the session's freshness timestamp.
func (m *SessionManager) Write(path string, buf []byte, offset int64) (int, error) {
	start := m.now()
	e, ok := m.cst.Lookup(path)
	if !ok {
		m.observe("write", start, false)
		return 0, syscall.EBADF
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.localFd.WriteAt(buf, offset)
	if err != nil {
		m.observe("write", start, false)
		return 0, err
	}
	if err := m.transfer.UploadUsing(path, m.fullPath(path), e.remoteFI); err != nil {
		m.observe("write", start, false)
		return 0, err
	}
	e.tc = m.now()
	m.observe("write", start, true)
	return n, nil
}

// Truncate includes the no-CST-entry path that downloads, truncates, and
// closes without an upload.
func (m *SessionManager) Truncate(path string, newSize int64) error {
	start := m.now()
	full := m.fullPath(path)

	e, ok := m.cst.Lookup(path)
	if !ok {
		if err := m.transfer.Download(path, full); err != nil {
			m.observe("truncate", start, false)
			return err
		}
		f, err := os.OpenFile(full, os.O_RDWR, 0644)
		if err != nil {
			m.observe("truncate", start, false)
			return err
		}
		err = f.Truncate(newSize)
		_ = f.Close()
		m.observe("truncate", start, err == nil)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readOnly() {
		m.observe("truncate", start, false)
		return syscall.EMFILE
	}
	if err := e.localFd.Truncate(newSize); err != nil {
		m.observe("truncate", start, false)
		return err
	}
	if err := m.transfer.UploadUsing(path, full, e.remoteFI); err != nil {
		m.observe("truncate", start, false)
		return err
	}
	e.tc = m.now()
	m.observe("truncate", start, true)
	return nil
}

// Fsync fails on a read-only session; a writable one uploads and
// refreshes its freshness timestamp.
func (m *SessionManager) Fsync(path string) error {
	start := m.now()
	e, ok := m.cst.Lookup(path)
	if !ok {
		m.observe("fsync", start, false)
		return syscall.EBADF
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readOnly() {
		m.observe("fsync", start, false)
		return syscall.EMFILE
	}
	if err := m.transfer.UploadUsing(path, m.fullPath(path), e.remoteFI); err != nil {
		m.observe("fsync", start, false)
		return err
	}
	e.tc = m.now()
	m.observe("fsync", start, true)
	return nil
}

// Utimensat is symmetric to Truncate.
func (m *SessionManager) Utimensat(path string, atim, mtim rpcapi.Timespec) error {
	start := m.now()
	full := m.fullPath(path)
	ts := []unix.Timespec{
		{Sec: atim.Sec, Nsec: atim.Nsec},
		{Sec: mtim.Sec, Nsec: mtim.Nsec},
	}

	e, ok := m.cst.Lookup(path)
	if !ok {
		if err := m.transfer.Download(path, full); err != nil {
			m.observe("utimensat", start, false)
			return err
		}
		err := unix.UtimesNanoAt(unix.AT_FDCWD, full, ts, 0)
		m.observe("utimensat", start, err == nil)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readOnly() {
		m.observe("utimensat", start, false)
		return syscall.EMFILE
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, full, ts, 0); err != nil {
		m.observe("utimensat", start, false)
		return err
	}
	if err := m.transfer.UploadUsing(path, full, e.remoteFI); err != nil {
		m.observe("utimensat", start, false)
		return err
	}
	e.tc = m.now()
	m.observe("utimensat", start, true)
	return nil
}

// Mknod materializes the file server-side if it doesn't exist there yet,
// and locally if this client hasn't already
// downloaded a copy under an open session.
func (m *SessionManager) Mknod(path string, mode uint32, dev uint64) error {
	start := m.now()
	full := m.fullPath(path)

	if _, err := m.remote.Getattr(path); err != nil {
		if err := m.remote.Mknod(path, mode, dev); err != nil {
			m.observe("mknod", start, false)
			return err
		}
		err := unix.Mknod(full, mode, int(dev))
		m.observe("mknod", start, err == nil)
		return err
	}

	if _, ok := m.cst.Lookup(path); !ok {
		err := unix.Mknod(full, mode, int(dev))
		m.observe("mknod", start, err == nil)
		return err
	}
	m.observe("mknod", start, true)
	return nil
}
