package vfs

import (
	"syscall"

	"github.com/coherentfs/coherentfs/internal/rpcapi"
	"github.com/coherentfs/coherentfs/internal/wireargs"
	"github.com/coherentfs/coherentfs/internal/wlog"
)

// caller is the subset of *rpc.Client the Session Manager depends on,
// accepted as an interface so tests can substitute an in-process fake
// without a real listener.
type caller interface {
	Call(serviceMethod string, args, reply interface{}) error
}

// Remote wraps the transport connection and translates its two failure
// currencies into one: a Go error. A transport-level failure (the Call
// itself erroring, meaning the RPC never completed) becomes EINVAL; a
// completed call that carries a negative Ret becomes that errno.
type Remote struct {
	c caller
}

// NewRemote builds a Remote around any caller, typically a *rpc.Client
// from rpcapi.ClientInit.
func NewRemote(c caller) *Remote {
	return &Remote{c: c}
}

func errnoFromRet(ret int32) error {
	if ret == 0 {
		return nil
	}
	return syscall.Errno(-ret)
}

// transferErr interprets a read/write reply's Ret, which carries a byte
// count (including 0 for EOF) on success and only goes negative on
// failure — unlike every other procedure's Ret, which is exactly 0 or a
// negative errno.
func transferErr(ret int32) error {
	if ret < 0 {
		return syscall.Errno(-ret)
	}
	return nil
}

// call issues method, logging the packed argument-type schema that
// accompanies it on the wire (§6's vocabulary, built fresh per call since
// path/chunk lengths vary) before handing args/reply to the transport.
func (r *Remote) call(method string, schema wireargs.Schema, args, reply interface{}) error {
	wlog.Debugf("remote", "%s schema=%v", method, schema)
	if err := r.c.Call(rpcapi.ServiceName+"."+method, args, reply); err != nil {
		return syscall.EINVAL
	}
	return nil
}

// Getattr issues the remote getattr procedure.
func (r *Remote) Getattr(path string) (rpcapi.FileStat, error) {
	reply := &rpcapi.GetattrReply{}
	schema := wireargs.GetattrSchema(len(path), wireargs.StatLen)
	if err := r.call("Getattr", schema, &rpcapi.GetattrArgs{Path: path}, reply); err != nil {
		return rpcapi.FileStat{}, err
	}
	if err := errnoFromRet(reply.Ret); err != nil {
		return rpcapi.FileStat{}, err
	}
	return reply.Stat, nil
}

// Mknod issues the remote mknod procedure.
func (r *Remote) Mknod(path string, mode uint32, dev uint64) error {
	reply := &rpcapi.MknodReply{}
	schema := wireargs.MknodSchema(len(path))
	if err := r.call("Mknod", schema, &rpcapi.MknodArgs{Path: path, Mode: mode, Dev: dev}, reply); err != nil {
		return err
	}
	return errnoFromRet(reply.Ret)
}

// Open issues the remote open procedure and returns the server-assigned
// handle.
func (r *Remote) Open(path string, flags uint32) (rpcapi.FileHandle, error) {
	reply := &rpcapi.OpenReply{}
	args := &rpcapi.OpenArgs{Path: path, FI: rpcapi.FileHandle{Flags: flags}}
	schema := wireargs.OpenSchema(len(path), wireargs.FileHandleLen)
	if err := r.call("Open", schema, args, reply); err != nil {
		return rpcapi.FileHandle{}, err
	}
	if err := errnoFromRet(reply.Ret); err != nil {
		return rpcapi.FileHandle{}, err
	}
	return reply.FI, nil
}

// Release issues the remote release procedure.
func (r *Remote) Release(path string, fi rpcapi.FileHandle) error {
	reply := &rpcapi.ReleaseReply{}
	schema := wireargs.ReleaseSchema(len(path), wireargs.FileHandleLen)
	if err := r.call("Release", schema, &rpcapi.ReleaseArgs{Path: path, FI: fi}, reply); err != nil {
		return err
	}
	return errnoFromRet(reply.Ret)
}

// Read performs a chunked remote read of len(buf) bytes starting at
// offset, splitting into calls no larger than wireargs.MaxArrayLen and
// applying the chunked-transfer termination precedence.
func (r *Remote) Read(path string, fi rpcapi.FileHandle, buf []byte, offset int64) (int, error) {
	return wireargs.ChunkTransfer(len(buf), func(off int64, chunkLen int) (int, error) {
		reply := &rpcapi.ReadReply{}
		args := &rpcapi.ReadArgs{Path: path, Size: int64(chunkLen), Offset: offset + off, FI: fi}
		schema := wireargs.ReadSchema(len(path), chunkLen, wireargs.FileHandleLen)
		if err := r.call("Read", schema, args, reply); err != nil {
			return 0, err
		}
		if err := transferErr(reply.Ret); err != nil {
			return 0, err
		}
		n := copy(buf[off:int(off)+chunkLen], reply.Buf)
		return n, nil
	})
}

// Write performs a chunked remote write of len(buf) bytes starting at
// offset, with the same chunking rule as Read.
func (r *Remote) Write(path string, fi rpcapi.FileHandle, buf []byte, offset int64) (int, error) {
	return wireargs.ChunkTransfer(len(buf), func(off int64, chunkLen int) (int, error) {
		reply := &rpcapi.WriteReply{}
		args := &rpcapi.WriteArgs{Path: path, Buf: buf[off : int(off)+chunkLen], Offset: offset + off, FI: fi}
		schema := wireargs.WriteSchema(len(path), chunkLen, wireargs.FileHandleLen)
		if err := r.call("Write", schema, args, reply); err != nil {
			return 0, err
		}
		if err := transferErr(reply.Ret); err != nil {
			return 0, err
		}
		return int(reply.Ret), nil
	})
}

// Truncate issues the remote truncate procedure.
func (r *Remote) Truncate(path string, size int64) error {
	reply := &rpcapi.TruncateReply{}
	schema := wireargs.TruncateSchema(len(path))
	if err := r.call("Truncate", schema, &rpcapi.TruncateArgs{Path: path, NewSize: size}, reply); err != nil {
		return err
	}
	return errnoFromRet(reply.Ret)
}

// Fsync issues the remote fsync procedure.
func (r *Remote) Fsync(path string, fi rpcapi.FileHandle) error {
	reply := &rpcapi.FsyncReply{}
	schema := wireargs.FsyncSchema(len(path), wireargs.FileHandleLen)
	if err := r.call("Fsync", schema, &rpcapi.FsyncArgs{Path: path, FI: fi}, reply); err != nil {
		return err
	}
	return errnoFromRet(reply.Ret)
}

// Utimensat issues the remote utimensat procedure.
func (r *Remote) Utimensat(path string, atim, mtim rpcapi.Timespec) error {
	reply := &rpcapi.UtimensatReply{}
	args := &rpcapi.UtimensatArgs{Path: path, Atim: atim, Mtim: mtim}
	schema := wireargs.UtimensatSchema(len(path), 2*wireargs.TimespecLen)
	if err := r.call("Utimensat", schema, args, reply); err != nil {
		return err
	}
	return errnoFromRet(reply.Ret)
}
