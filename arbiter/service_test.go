package arbiter

import (
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coherentfs/coherentfs/internal/rpcapi"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	root := t.TempDir()
	return NewService(root, NewSOMT(), nil)
}

func TestServiceMknodThenGetattr(t *testing.T) {
	s := newTestService(t)

	var mr rpcapi.MknodReply
	require.NoError(t, s.Mknod(&rpcapi.MknodArgs{Path: "/a", Mode: 0644}, &mr))
	assert.EqualValues(t, 0, mr.Ret)

	var gr rpcapi.GetattrReply
	require.NoError(t, s.Getattr(&rpcapi.GetattrArgs{Path: "/a"}, &gr))
	assert.EqualValues(t, 0, gr.Ret)
	assert.EqualValues(t, 0, gr.Stat.Size)
}

func TestServiceGetattrOfMissingFileReturnsENOENT(t *testing.T) {
	s := newTestService(t)

	var gr rpcapi.GetattrReply
	require.NoError(t, s.Getattr(&rpcapi.GetattrArgs{Path: "/missing"}, &gr))
	assert.EqualValues(t, -int32(syscall.ENOENT), gr.Ret)
}

func TestServiceOpenReadWriteRelease(t *testing.T) {
	s := newTestService(t)

	var mr rpcapi.MknodReply
	require.NoError(t, s.Mknod(&rpcapi.MknodArgs{Path: "/b", Mode: 0644}, &mr))

	var or rpcapi.OpenReply
	require.NoError(t, s.Open(&rpcapi.OpenArgs{Path: "/b", FI: rpcapi.FileHandle{Flags: syscall.O_RDWR}}, &or))
	require.GreaterOrEqual(t, or.Ret, int32(0))
	fh := or.FI.Fh

	var wr rpcapi.WriteReply
	payload := []byte("hello world")
	require.NoError(t, s.Write(&rpcapi.WriteArgs{Path: "/b", Buf: payload, Offset: 0, FI: rpcapi.FileHandle{Fh: fh}}, &wr))
	assert.EqualValues(t, len(payload), wr.Ret)

	var rr rpcapi.ReadReply
	require.NoError(t, s.Read(&rpcapi.ReadArgs{Path: "/b", Size: int64(len(payload)), Offset: 0, FI: rpcapi.FileHandle{Fh: fh}}, &rr))
	assert.EqualValues(t, len(payload), rr.Ret)
	assert.Equal(t, payload, rr.Buf)

	var relr rpcapi.ReleaseReply
	require.NoError(t, s.Release(&rpcapi.ReleaseArgs{Path: "/b", FI: rpcapi.FileHandle{Fh: fh, Flags: syscall.O_RDWR}}, &relr))
	assert.EqualValues(t, 0, relr.Ret)
}

func TestServiceReadPastEOFReturnsZeroNotError(t *testing.T) {
	s := newTestService(t)

	var mr rpcapi.MknodReply
	require.NoError(t, s.Mknod(&rpcapi.MknodArgs{Path: "/c", Mode: 0644}, &mr))
	var or rpcapi.OpenReply
	require.NoError(t, s.Open(&rpcapi.OpenArgs{Path: "/c", FI: rpcapi.FileHandle{Flags: syscall.O_RDWR}}, &or))

	var rr rpcapi.ReadReply
	require.NoError(t, s.Read(&rpcapi.ReadArgs{Path: "/c", Size: 16, Offset: 0, FI: rpcapi.FileHandle{Fh: or.FI.Fh}}, &rr))
	assert.EqualValues(t, 0, rr.Ret)
	assert.Empty(t, rr.Buf)
}

func TestServiceOpenSecondWriterConflicts(t *testing.T) {
	s := newTestService(t)
	var mr rpcapi.MknodReply
	require.NoError(t, s.Mknod(&rpcapi.MknodArgs{Path: "/d", Mode: 0644}, &mr))

	var or1 rpcapi.OpenReply
	require.NoError(t, s.Open(&rpcapi.OpenArgs{Path: "/d", FI: rpcapi.FileHandle{Flags: syscall.O_RDWR}}, &or1))

	var or2 rpcapi.OpenReply
	require.NoError(t, s.Open(&rpcapi.OpenArgs{Path: "/d", FI: rpcapi.FileHandle{Flags: syscall.O_RDWR}}, &or2))
	assert.EqualValues(t, -int32(syscall.EACCES), or2.Ret)
}

func TestServiceTruncateAndFsync(t *testing.T) {
	s := newTestService(t)
	var mr rpcapi.MknodReply
	require.NoError(t, s.Mknod(&rpcapi.MknodArgs{Path: "/e", Mode: 0644}, &mr))

	var tr rpcapi.TruncateReply
	require.NoError(t, s.Truncate(&rpcapi.TruncateArgs{Path: "/e", NewSize: 4096}, &tr))
	assert.EqualValues(t, 0, tr.Ret)

	var or rpcapi.OpenReply
	require.NoError(t, s.Open(&rpcapi.OpenArgs{Path: "/e", FI: rpcapi.FileHandle{Flags: syscall.O_RDWR}}, &or))
	var fr rpcapi.FsyncReply
	require.NoError(t, s.Fsync(&rpcapi.FsyncArgs{Path: "/e", FI: rpcapi.FileHandle{Fh: or.FI.Fh}}, &fr))
	assert.EqualValues(t, 0, fr.Ret)
}

func TestServiceUtimensat(t *testing.T) {
	s := newTestService(t)
	var mr rpcapi.MknodReply
	require.NoError(t, s.Mknod(&rpcapi.MknodArgs{Path: "/f", Mode: 0644}, &mr))

	var ur rpcapi.UtimensatReply
	require.NoError(t, s.Utimensat(&rpcapi.UtimensatArgs{
		Path: "/f",
		Atim: rpcapi.Timespec{Sec: 1000, Nsec: 0},
		Mtim: rpcapi.Timespec{Sec: 1000, Nsec: 0},
	}, &ur))
	assert.EqualValues(t, 0, ur.Ret)

	var gr rpcapi.GetattrReply
	require.NoError(t, s.Getattr(&rpcapi.GetattrArgs{Path: "/f"}, &gr))
	assert.EqualValues(t, 1000, gr.Stat.Mtim.Sec)
}

func TestServiceFullPathStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	s := NewService(root, NewSOMT(), nil)
	assert.Equal(t, filepath.Join(root, "a/b"), s.fullPath("/a/b"))
}

func TestServiceReleaseOfUnknownHandleReturnsEBADF(t *testing.T) {
	s := newTestService(t)
	var relr rpcapi.ReleaseReply
	require.NoError(t, s.Release(&rpcapi.ReleaseArgs{Path: "/none", FI: rpcapi.FileHandle{Fh: 999}}, &relr))
	assert.EqualValues(t, -int32(syscall.EBADF), relr.Ret)
}
