package wdtest

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coherentfs/coherentfs/internal/rpcapi"
	"github.com/coherentfs/coherentfs/vfs"
)

func newClientSessions(t *testing.T, client interface {
	Call(string, interface{}, interface{}) error
}, cacheDir string, freshness time.Duration) *vfs.SessionManager {
	t.Helper()
	remote := vfs.NewRemote(client)
	return vfs.NewSessionManager(cacheDir, vfs.NewCST(), remote, freshness, nil)
}

func TestScenarioCreateWriteCloseRoundTrip(t *testing.T) {
	h, err := New(t.TempDir())
	require.NoError(t, err)
	defer h.Close()

	sessions := newClientSessions(t, h.Client, t.TempDir(), 3*time.Second)

	require.NoError(t, sessions.Open("/f", uint32(os.O_RDWR|os.O_CREAT)))
	payload := []byte("scenario one payload")
	n, err := sessions.Write("/f", payload, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, sessions.Release("/f", rpcapi.FileHandle{Flags: uint32(os.O_RDWR)}))

	st, err := sessions.Getattr("/f")
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), st.Size)
}

func TestScenarioSingleWriterExclusion(t *testing.T) {
	h, err := New(t.TempDir())
	require.NoError(t, err)
	defer h.Close()

	clientA := newClientSessions(t, h.Client, t.TempDir(), 3*time.Second)
	require.NoError(t, clientA.Open("/g", uint32(os.O_RDWR|os.O_CREAT)))

	secondConn, err := h.NewClient()
	require.NoError(t, err)
	defer secondConn.Close()
	clientB := newClientSessions(t, secondConn, t.TempDir(), 3*time.Second)

	err = clientB.Open("/g", uint32(os.O_RDWR))
	require.Error(t, err)
	assert.Equal(t, syscall.EACCES, err)
}

func TestScenarioReadOnlyFreshnessWindow(t *testing.T) {
	h, err := New(t.TempDir())
	require.NoError(t, err)
	defer h.Close()

	writer := newClientSessions(t, h.Client, t.TempDir(), 3*time.Second)
	require.NoError(t, writer.Open("/r", uint32(os.O_RDWR|os.O_CREAT)))
	_, err = writer.Write("/r", []byte("v1"), 0)
	require.NoError(t, err)
	require.NoError(t, writer.Release("/r", rpcapi.FileHandle{Flags: uint32(os.O_RDWR)}))

	readerConn, err := h.NewClient()
	require.NoError(t, err)
	defer readerConn.Close()
	reader := newClientSessions(t, readerConn, t.TempDir(), 3*time.Second)

	require.NoError(t, reader.Open("/r", uint32(os.O_RDONLY)))
	buf := make([]byte, 2)
	n, err := reader.Read("/r", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(buf[:n]))
}

func TestScenarioWriteOnReadOnlySessionFails(t *testing.T) {
	h, err := New(t.TempDir())
	require.NoError(t, err)
	defer h.Close()

	sessions := newClientSessions(t, h.Client, t.TempDir(), 3*time.Second)
	require.NoError(t, sessions.Mknod("/w", 0644, 0))
	require.NoError(t, sessions.Open("/w", uint32(os.O_RDONLY)))

	_, err = sessions.Write("/w", []byte("nope"), 0)
	require.Error(t, err)
}

func TestScenarioOpenWithoutCreateOnMissingPathFails(t *testing.T) {
	h, err := New(t.TempDir())
	require.NoError(t, err)
	defer h.Close()

	sessions := newClientSessions(t, h.Client, t.TempDir(), 3*time.Second)
	err = sessions.Open("/missing", uint32(os.O_RDONLY))
	require.Error(t, err)
}

func TestScenarioChunkedTransferSpansMultipleCalls(t *testing.T) {
	h, err := New(t.TempDir())
	require.NoError(t, err)
	defer h.Close()

	sessions := newClientSessions(t, h.Client, t.TempDir(), 3*time.Second)
	require.NoError(t, sessions.Open("/big", uint32(os.O_RDWR|os.O_CREAT)))

	const maxArrayLen = 64*1024 - 1
	payload := make([]byte, maxArrayLen*2+100)
	for i := range payload {
		payload[i] = byte(i)
	}
	n, err := sessions.Write("/big", payload, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = sessions.Read("/big", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}
