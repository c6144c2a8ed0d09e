package wireargs

// ChunkCall performs one chunk of a logical transfer: call(offset, chunkLen)
// must return the number of bytes actually transferred, or a non-nil error
// on failure.
type ChunkCall func(offset int64, chunkLen int) (int, error)

// ChunkTransfer splits a logical transfer of totalLen bytes into calls no
// larger than MaxArrayLen, applying the chunked-transfer termination precedence:
//
//  1. call returns an error -> surfaced immediately.
//  2. call returns 0 -> stop, return bytes transferred so far (EOF).
//  3. call returns a short count (< requested chunk) -> stop, return bytes
//     transferred so far.
//  4. requested total reached -> return the total.
//
// Both download and upload use this helper for their chunked read/write
// loops so the precedence can't silently diverge between the two paths.
func ChunkTransfer(totalLen int, call ChunkCall) (int, error) {
	var transferred int
	for transferred < totalLen {
		chunkLen := totalLen - transferred
		if chunkLen > MaxArrayLen {
			chunkLen = MaxArrayLen
		}
		n, err := call(int64(transferred), chunkLen)
		if err != nil {
			return transferred, err
		}
		if n == 0 {
			return transferred, nil
		}
		transferred += n
		if n < chunkLen {
			return transferred, nil
		}
	}
	return transferred, nil
}
