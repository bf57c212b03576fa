// Wire entry layout.
//
// Every entry is a fixed-shape record, all integers big-endian:
//
//	value_len          u16
//	key_len            u16   top bit: extension entry
//	common_prefix_len  u16   top bit: more chunks of this value follow
//	key_diff           key_len − common_prefix_len bytes
//	                   (one marker byte 0x09 on non-initial chunks)
//	value              value_len bytes
//
// The extension bit reserves format headroom: an extension entry whose
// prefix-length field also has its top bit set is optional and skipped by
// decoders; one without it is mandatory and fails decoding. Reserving the
// top bit caps paths at 32 KiB − 1, which also frees the top bit of the
// prefix-length field for the continuation flag.
//
// A non-initial continuation chunk repeats its group's path in full
// (common_prefix_len equal to key_len, suffix empty) and carries a single
// continuation marker byte as its whole key diff, so the record shape stays
// fixed while the chunk remains distinguishable from a new path.
package flatwire

import "encoding/binary"

// Wire limits and flag bits.
const (
	entryHeaderSize = 6

	// MaxValueLen is the largest value payload one entry can carry.
	// Values beyond it are split across a continuation group.
	MaxValueLen = 0xFFFF

	extEntryBit = 0x8000 // on key_len: extension entry
	contFlagBit = 0x8000 // on common_prefix_len: more chunks follow
)

// MaxEntrySize is the largest number of bytes a single entry can span.
// A reader holding this many bytes is guaranteed to decode at least one
// full entry if one is present.
const MaxEntrySize = entryHeaderSize + MaxPathLen + MaxValueLen

// Entry is one decoded record: the full canonical path (expanded from the
// wire diff), the value bytes or chunk, the prefix length shared with the
// previous entry, and whether further chunks of the same value follow.
type Entry struct {
	Path      Path
	Value     []byte
	PrefixLen int
	Cont      bool
}

// appendEntry appends one wire record to dst. diff must already be the
// correct suffix (or the continuation marker), and len(value) must not
// exceed MaxValueLen.
func appendEntry(dst []byte, keyLen, prefixLen int, diff, value []byte, cont bool) []byte {
	pl := uint16(prefixLen)
	if cont {
		pl |= contFlagBit
	}
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(value)))
	dst = binary.BigEndian.AppendUint16(dst, uint16(keyLen))
	dst = binary.BigEndian.AppendUint16(dst, pl)
	dst = append(dst, diff...)
	return append(dst, value...)
}

type entryHeader struct {
	valueLen  int
	keyLen    int
	prefixLen int
	ext       bool // extension entry
	optional  bool // extension entry may be skipped
	cont      bool // more chunks of this value follow
}

func parseEntryHeader(b []byte) entryHeader {
	valueLen := binary.BigEndian.Uint16(b[0:2])
	rawKey := binary.BigEndian.Uint16(b[2:4])
	rawPrefix := binary.BigEndian.Uint16(b[4:6])
	return entryHeader{
		valueLen:  int(valueLen),
		keyLen:    int(rawKey &^ extEntryBit),
		prefixLen: int(rawPrefix &^ contFlagBit),
		ext:       rawKey&extEntryBit != 0,
		optional:  rawPrefix&contFlagBit != 0,
		cont:      rawPrefix&contFlagBit != 0,
	}
}
