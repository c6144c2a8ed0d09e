package vfs

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coherentfs/coherentfs/internal/rpcapi"
)

func TestCSTInsertThenLookup(t *testing.T) {
	c := NewCST()
	now := time.Now()
	_, err := c.Insert("/a", syscall.O_RDWR, nil, rpcapi.FileHandle{}, now)
	require.NoError(t, err)

	e, ok := c.Lookup("/a")
	require.True(t, ok)
	assert.Equal(t, uint32(syscall.O_RDWR), e.flags)
	assert.Equal(t, 1, c.Len())
}

func TestCSTInsertOfExistingPathReturnsEMFILE(t *testing.T) {
	c := NewCST()
	_, err := c.Insert("/a", syscall.O_RDONLY, nil, rpcapi.FileHandle{}, time.Now())
	require.NoError(t, err)
	_, err = c.Insert("/a", syscall.O_RDONLY, nil, rpcapi.FileHandle{}, time.Now())
	require.Error(t, err)
	assert.Equal(t, syscall.EMFILE, err)
}

func TestCSTEraseRemovesEntry(t *testing.T) {
	c := NewCST()
	_, err := c.Insert("/a", syscall.O_RDONLY, nil, rpcapi.FileHandle{}, time.Now())
	require.NoError(t, err)
	c.Erase("/a")
	_, ok := c.Lookup("/a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestEntryReadOnly(t *testing.T) {
	ro := &entry{flags: syscall.O_RDONLY}
	assert.True(t, ro.readOnly())

	rw := &entry{flags: syscall.O_RDWR}
	assert.False(t, rw.readOnly())
}
