// Package wireargs implements the documented wire contract for the RPC
// transport: the 32-bit argument-type words that describe each call's
// argument schema, and the chunking rules that bound a single transfer to
// MaxArrayLen bytes.
//
// The transport's framing and dispatch loop are out of scope for this
// package (see internal/rpcapi); wireargs only builds and validates the
// schema metadata that travels alongside a call.
package wireargs

import "fmt"

// Direction/array bits, bits 31..29 of the argument-type word.
const (
	ArgInput  uint32 = 1 << 31
	ArgOutput uint32 = 1 << 30
	ArgArray  uint32 = 1 << 29
)

// ElemType occupies bits 23..16 of the argument-type word.
type ElemType uint32

const (
	ElemChar  ElemType = 1
	ElemShort ElemType = 2
	ElemInt   ElemType = 3
	ElemLong  ElemType = 4
)

func (e ElemType) String() string {
	switch e {
	case ElemChar:
		return "char"
	case ElemShort:
		return "short"
	case ElemInt:
		return "int"
	case ElemLong:
		return "long"
	default:
		return fmt.Sprintf("elem(%d)", uint32(e))
	}
}

// MaxArrayLen is M, the maximum single-call payload the transport accepts
// for an array argument. Chunked read/write split logical transfers into
// calls no larger than this. It is the largest length the 16-bit length
// field (bits 15..0) of an argument-type word can carry.
const MaxArrayLen = 64*1024 - 1

// Fixed wire widths for the scalar struct arguments (rpcapi.FileHandle,
// rpcapi.FileStat, rpcapi.Timespec), used by callers to size the
// corresponding Schema slot even though net/rpc's own struct encoding
// doesn't pack these fields byte-for-byte.
const (
	FileHandleLen = 12 // uint32 Flags + uint64 Fh
	StatLen       = 52 // int64 Size + uint32 Mode + uint64 Dev + 2*Timespec
	TimespecLen   = 16 // int64 Sec + int64 Nsec
)

// Slot describes one argument-type word.
type Slot struct {
	Input  bool
	Output bool
	Array  bool
	Elem   ElemType
	Length uint32 // array length, 0 for scalars
}

// Pack encodes the slot into the documented 32-bit word.
func (s Slot) Pack() uint32 {
	var w uint32
	if s.Input {
		w |= ArgInput
	}
	if s.Output {
		w |= ArgOutput
	}
	if s.Array {
		w |= ArgArray
	}
	w |= (uint32(s.Elem) & 0xff) << 16
	w |= s.Length & 0xffff
	return w
}

// Unpack decodes a 32-bit argument-type word back into a Slot.
func Unpack(word uint32) Slot {
	return Slot{
		Input:  word&ArgInput != 0,
		Output: word&ArgOutput != 0,
		Array:  word&ArgArray != 0,
		Elem:   ElemType((word >> 16) & 0xff),
		Length: word & 0xffff,
	}
}

// InChar builds an input char-array slot of the given length, used for
// paths and input buffers.
func InChar(length int) Slot {
	return Slot{Input: true, Array: true, Elem: ElemChar, Length: uint32(length)}
}

// OutChar builds an output char-array slot of the given length, used for
// stat buffers and read targets.
func OutChar(length int) Slot {
	return Slot{Output: true, Array: true, Elem: ElemChar, Length: uint32(length)}
}

// InOutChar builds a slot that is both input and output, used for the
// open() fi argument which the server both reads (flags) and fills in
// (file handle).
func InOutChar(length int) Slot {
	return Slot{Input: true, Output: true, Array: true, Elem: ElemChar, Length: uint32(length)}
}

// InInt/InLong/OutInt build scalar slots.
func InInt() Slot  { return Slot{Input: true, Elem: ElemInt} }
func InLong() Slot { return Slot{Input: true, Elem: ElemLong} }
func OutInt() Slot { return Slot{Output: true, Elem: ElemInt} }

// Schema is the zero-terminated list of packed argument-type words for one
// registered procedure, matching the bit-packed wire contract exactly.
type Schema []uint32

// BuildSchema packs a list of slots and appends the zero terminator.
func BuildSchema(slots ...Slot) Schema {
	s := make(Schema, 0, len(slots)+1)
	for _, slot := range slots {
		s = append(s, slot.Pack())
	}
	return append(s, 0)
}

// Procedure schemas. Path length and buffer length are supplied by the
// caller because they vary per call (path length) or per chunk (buffer
// length for read/write).
func GetattrSchema(pathLen, statbufLen int) Schema {
	return BuildSchema(InChar(pathLen), OutChar(statbufLen), OutInt())
}

func MknodSchema(pathLen int) Schema {
	return BuildSchema(InChar(pathLen), InInt(), InLong(), OutInt())
}

func OpenSchema(pathLen, fiLen int) Schema {
	return BuildSchema(InChar(pathLen), InOutChar(fiLen), OutInt())
}

func ReleaseSchema(pathLen, fiLen int) Schema {
	return BuildSchema(InChar(pathLen), InChar(fiLen), OutInt())
}

func ReadSchema(pathLen, chunkLen, fiLen int) Schema {
	return BuildSchema(InChar(pathLen), OutChar(chunkLen), InLong(), InLong(), InChar(fiLen), OutInt())
}

func WriteSchema(pathLen, chunkLen, fiLen int) Schema {
	return BuildSchema(InChar(pathLen), InChar(chunkLen), InLong(), InLong(), InChar(fiLen), OutInt())
}

func TruncateSchema(pathLen int) Schema {
	return BuildSchema(InChar(pathLen), InLong(), OutInt())
}

func FsyncSchema(pathLen, fiLen int) Schema {
	return BuildSchema(InChar(pathLen), InChar(fiLen), OutInt())
}

func UtimensatSchema(pathLen, tsLen int) Schema {
	return BuildSchema(InChar(pathLen), InChar(tsLen), OutInt())
}
