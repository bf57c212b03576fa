// Common-prefix diffing of canonical path bytes.
//
// Each entry stores only the suffix of its path beyond the longest byte
// prefix shared with the previous entry's path. The prefix length is
// computed over raw canonical bytes; because those bytes are a sequence of
// tagged segments, a cut at any byte offset is safe — the suffix is only
// ever interpreted after concatenation with the retained prefix, never on
// its own.
package flatwire

import (
	"encoding/binary"
	"fmt"
)

// commonPrefix returns the length of the longest shared byte prefix of a
// and b, comparing eight bytes at a time before finishing byte-wise.
func commonPrefix(a, b []byte) int {
	n := min(len(a), len(b))
	i := 0
	for ; i+8 <= n; i += 8 {
		if binary.BigEndian.Uint64(a[i:]) != binary.BigEndian.Uint64(b[i:]) {
			break
		}
	}
	for ; i < n; i++ {
		if a[i] != b[i] {
			break
		}
	}
	return i
}

// diffKey splits curr against prev, returning the shared prefix length and
// the remaining suffix of curr.
func diffKey(prev, curr []byte) (int, []byte) {
	n := commonPrefix(prev, curr)
	return n, curr[n:]
}

// undiffKey reconstructs a full path from the previous path, a prefix
// length, and the suffix bytes.
func undiffKey(prev []byte, prefixLen int, suffix []byte) ([]byte, error) {
	if prefixLen > len(prev) {
		return nil, fmt.Errorf("%w: prefix %d, previous path %d bytes", ErrInvalidPrefixLength, prefixLen, len(prev))
	}
	key := make([]byte, 0, prefixLen+len(suffix))
	key = append(key, prev[:prefixLen]...)
	return append(key, suffix...), nil
}
