// Package rpcapi defines the argument/reply structs exchanged between the
// client's Session Manager and the server's Open-Mode Arbiter: nine
// registered procedures (getattr, mknod, open, release, read, write,
// truncate, fsync, utimensat). See internal/wireargs for the bit-packed
// schema metadata that accompanies every call.
package rpcapi

// Timespec mirrors struct timespec: seconds and nanoseconds.
type Timespec struct {
	Sec  int64
	Nsec int64
}

// FileStat mirrors the subset of struct stat actually exercised: size,
// mode, dev, and the two timestamps used for freshness comparisons and
// propagation.
type FileStat struct {
	Size int64
	Mode uint32
	Dev  uint64
	Atim Timespec
	Mtim Timespec
}

// FileHandle mirrors struct fuse_file_info: the flags the caller opened
// with, and the handle id the server assigns on open (a key into its table
// of open files, not an OS descriptor) and expects back on
// release/read/write/fsync.
type FileHandle struct {
	Flags uint32
	Fh    uint64
}

// ServiceName is the net/rpc service name the arbiter registers under.
const ServiceName = "Arbiter"

type GetattrArgs struct {
	Path string
}

type GetattrReply struct {
	Stat FileStat
	Ret  int32
}

type MknodArgs struct {
	Path string
	Mode uint32
	Dev  uint64
}

type MknodReply struct {
	Ret int32
}

type OpenArgs struct {
	Path string
	FI   FileHandle
}

type OpenReply struct {
	FI  FileHandle
	Ret int32
}

type ReleaseArgs struct {
	Path string
	FI   FileHandle
}

type ReleaseReply struct {
	Ret int32
}

type ReadArgs struct {
	Path   string
	Size   int64
	Offset int64
	FI     FileHandle
}

type ReadReply struct {
	Buf []byte
	Ret int32
}

type WriteArgs struct {
	Path   string
	Buf    []byte
	Offset int64
	FI     FileHandle
}

type WriteReply struct {
	Ret int32
}

type TruncateArgs struct {
	Path    string
	NewSize int64
}

type TruncateReply struct {
	Ret int32
}

type FsyncArgs struct {
	Path string
	FI   FileHandle
}

type FsyncReply struct {
	Ret int32
}

type UtimensatArgs struct {
	Path string
	Atim Timespec
	Mtim Timespec
}

type UtimensatReply struct {
	Ret int32
}
