package vfs

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/coherentfs/coherentfs/internal/rpcapi"
)

// Transfer implements the whole-file download/upload operations that keep
// a local cache copy coherent with the server's copy of record.
type Transfer struct {
	remote *Remote
}

// NewTransfer builds a Transfer engine around remote.
func NewTransfer(remote *Remote) *Transfer {
	return &Transfer{remote: remote}
}

// Download produces a coherent local copy of path at fullLocalPath and
// stamps its atime/mtime to the server's, so a later freshness comparison
// is meaningful.
func (t *Transfer) Download(path, fullLocalPath string) error {
	st, err := t.remote.Getattr(path)
	if err != nil {
		return err
	}

	fi, err := t.remote.Open(path, uint32(os.O_RDONLY))
	if err != nil {
		return err
	}
	buf := make([]byte, st.Size)
	if _, err := t.remote.Read(path, fi, buf, 0); err != nil {
		_ = t.remote.Release(path, fi)
		return err
	}
	if err := t.remote.Release(path, fi); err != nil {
		return err
	}

	f, err := os.OpenFile(fullLocalPath, os.O_RDWR, 0644)
	if err != nil {
		if err := unix.Mknod(fullLocalPath, st.Mode, int(st.Dev)); err != nil {
			return err
		}
		f, err = os.OpenFile(fullLocalPath, os.O_RDWR, 0644)
		if err != nil {
			return err
		}
	}
	defer f.Close()

	if err := f.Truncate(st.Size); err != nil {
		return err
	}
	if _, err := f.WriteAt(buf, 0); err != nil {
		return err
	}

	ts := []unix.Timespec{
		{Sec: st.Atim.Sec, Nsec: st.Atim.Nsec},
		{Sec: st.Mtim.Sec, Nsec: st.Mtim.Nsec},
	}
	return unix.UtimesNanoAt(unix.AT_FDCWD, fullLocalPath, ts, 0)
}

// uploadBody pushes fullLocalPath's current contents to path through the
// already-open remote handle fi: truncate to the local size, write the
// whole buffer, propagate the local timestamps.
func (t *Transfer) uploadBody(path, fullLocalPath string, fi rpcapi.FileHandle) error {
	var local unix.Stat_t
	if err := unix.Stat(fullLocalPath, &local); err != nil {
		return err
	}

	f, err := os.Open(fullLocalPath)
	if err != nil {
		return err
	}
	buf := make([]byte, local.Size)
	if _, err := f.ReadAt(buf, 0); err != nil && !errors.Is(err, io.EOF) {
		_ = f.Close()
		return err
	}
	_ = f.Close()

	if err := t.remote.Truncate(path, local.Size); err != nil {
		return err
	}
	if _, err := t.remote.Write(path, fi, buf, 0); err != nil {
		return err
	}
	atim := rpcapi.Timespec{Sec: int64(local.Atim.Sec), Nsec: int64(local.Atim.Nsec)}
	mtim := rpcapi.Timespec{Sec: int64(local.Mtim.Sec), Nsec: int64(local.Mtim.Nsec)}
	return t.remote.Utimensat(path, atim, mtim)
}

// UploadUsing propagates the local cache copy at fullLocalPath to the
// server copy of path through fi, a handle a live write session already
// holds open; it neither opens nor releases fi, since the session owns
// that handle's lifetime for as long as it stays open.
func (t *Transfer) UploadUsing(path, fullLocalPath string, fi rpcapi.FileHandle) error {
	return t.uploadBody(path, fullLocalPath, fi)
}
