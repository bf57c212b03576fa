// Continuation chunking for oversized values.
//
// A value larger than MaxValueLen is split into ceil(n/MaxValueLen) chunks;
// every chunk except the last is exactly MaxValueLen bytes. All chunks of a
// group share one path and every chunk except the last carries the
// continuation flag, so a reader knows from the entry it just read whether
// the value is complete. Reassembly is plain concatenation in stream order,
// guarded by the expected-offset bookkeeping in assembly.
package flatwire

import "fmt"

// Split cuts value into chunks of at most MaxValueLen bytes. An empty or
// small value yields a single chunk. The chunks alias value.
func Split(value []byte) [][]byte {
	if len(value) <= MaxValueLen {
		return [][]byte{value}
	}
	chunks := make([][]byte, 0, (len(value)+MaxValueLen-1)/MaxValueLen)
	for off := 0; off < len(value); off += MaxValueLen {
		end := min(off+MaxValueLen, len(value))
		chunks = append(chunks, value[off:end])
	}
	return chunks
}

// assembly accumulates the chunks of one continuation group during
// reconstruction. The buffer length is the expected offset of the next
// chunk; a chunk for a different path while the group is open means the
// stream lost or reordered entries.
type assembly struct {
	path Path
	buf  []byte
	open bool
}

// begin starts a group from its first chunk.
func (a *assembly) begin(e Entry) {
	a.path = e.Path.Clone()
	a.buf = append([]byte(nil), e.Value...)
	a.open = true
}

// add appends a continuation chunk. It closes the group when the chunk's
// continuation flag is clear, returning the complete value.
func (a *assembly) add(e Entry) ([]byte, error) {
	if !e.Path.Equal(a.path) {
		return nil, fmt.Errorf("%w: expected %s at offset %d, got %s",
			ErrOutOfOrderContinuation, a.path, len(a.buf), e.Path)
	}
	a.buf = append(a.buf, e.Value...)
	if e.Cont {
		return nil, nil
	}
	value := a.buf
	a.path = nil
	a.buf = nil
	a.open = false
	return value, nil
}
