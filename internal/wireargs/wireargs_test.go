package wireargs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotPackUnpackRoundTrip(t *testing.T) {
	for _, s := range []Slot{
		InChar(13),
		OutChar(144),
		InOutChar(48),
		InInt(),
		InLong(),
		OutInt(),
	} {
		word := s.Pack()
		got := Unpack(word)
		assert.Equal(t, s, got)
	}
}

func TestSlotPackBitLayout(t *testing.T) {
	s := InChar(10)
	word := s.Pack()
	assert.NotZero(t, word&ArgInput)
	assert.Zero(t, word&ArgOutput)
	assert.NotZero(t, word&ArgArray)
	assert.Equal(t, uint32(ElemChar), (word>>16)&0xff)
	assert.Equal(t, uint32(10), word&0xffff)
}

func TestGetattrSchemaHasZeroTerminator(t *testing.T) {
	schema := GetattrSchema(5, 144)
	require.Len(t, schema, 4)
	assert.Equal(t, uint32(0), schema[len(schema)-1])
}

func TestChunkTransferExactMultiple(t *testing.T) {
	const total = 3 * MaxArrayLen
	var calls int
	n, err := ChunkTransfer(total, func(offset int64, chunkLen int) (int, error) {
		calls++
		return chunkLen, nil
	})
	require.NoError(t, err)
	assert.Equal(t, total, n)
	assert.Equal(t, 3, calls)
}

func TestChunkTransferRemainder(t *testing.T) {
	const total = 3*MaxArrayLen + 7
	var calls int
	n, err := ChunkTransfer(total, func(offset int64, chunkLen int) (int, error) {
		calls++
		return chunkLen, nil
	})
	require.NoError(t, err)
	assert.Equal(t, total, n)
	assert.Equal(t, 4, calls)
}

func TestChunkTransferStopsOnZero(t *testing.T) {
	var calls int
	n, err := ChunkTransfer(3*MaxArrayLen, func(offset int64, chunkLen int) (int, error) {
		calls++
		if calls == 2 {
			return 0, nil
		}
		return chunkLen, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	_ = n
}

func TestChunkTransferStopsOnShortCount(t *testing.T) {
	n, err := ChunkTransfer(100, func(offset int64, chunkLen int) (int, error) {
		return chunkLen - 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 99, n)
}

func TestChunkTransferSurfacesError(t *testing.T) {
	wantErr := assert.AnError
	n, err := ChunkTransfer(100, func(offset int64, chunkLen int) (int, error) {
		return -1, wantErr
	})
	require.Error(t, err)
	assert.Equal(t, 0, n)
}
