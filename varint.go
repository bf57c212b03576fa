// Length-prefixed varints for array indices.
//
// An index is encoded as one length byte (1–8) followed by that many
// big-endian bytes, using the smallest length that fits. Placing the length
// first keeps canonical path bytes ordered: a numerically larger index never
// sorts before a smaller one, because a longer encoding always starts with a
// larger length byte and equal-length encodings compare big-endian.
package flatwire

import "fmt"

// appendIndexVarint appends the length-prefixed encoding of v.
func appendIndexVarint(dst []byte, v uint64) []byte {
	n := 1
	for n < maxIndexBytes && v >= uint64(1)<<(8*n) {
		n++
	}
	dst = append(dst, byte(n))
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, byte(v>>(8*i)))
	}
	return dst
}

// readIndexVarint decodes a length-prefixed varint from the start of buf,
// returning the value and the number of bytes consumed.
func readIndexVarint(buf []byte) (uint64, int, error) {
	if len(buf) == 0 {
		return 0, 0, fmt.Errorf("%w: empty input", ErrMalformedVarint)
	}
	n := int(buf[0])
	if n < 1 || n > maxIndexBytes {
		return 0, 0, fmt.Errorf("%w: length byte %d", ErrMalformedVarint, n)
	}
	if len(buf) < 1+n {
		return 0, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrMalformedVarint, n, len(buf)-1)
	}
	var v uint64
	for _, b := range buf[1 : 1+n] {
		v = v<<8 | uint64(b)
	}
	return v, 1 + n, nil
}

// zigzag maps signed integers to unsigned so that small magnitudes of either
// sign encode into few bytes.
func zigzag(n int64) uint64 {
	return uint64(n<<1) ^ uint64(n>>63)
}

func unzigzag(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}
