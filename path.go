// Canonical path encoding.
//
// A path is a sequence of tagged segments rendered into one byte string:
//
//	0x00 <utf-8 bytes>      object key (bytes must be > 0x09)
//	0x01–0x08 <be bytes>    array index, length-prefixed big-endian
//	0x09                    reserved: continuation marker on the wire,
//	                        never part of a canonical path
//
// The rendering is injective and prefix-ordered: every descendant's canonical
// bytes extend its ancestor's, sibling keys sort before sibling indices (key
// tag 0x00 is below every index length byte), and key segments terminate at
// the next tag byte because key bytes stay above the tag range. These byte
// strings are the domain over which common-prefix lengths are computed and
// the keys used for range scans.
package flatwire

import (
	"bytes"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Path segment tags and limits.
const (
	tagKey        = 0x00 // object key segment
	tagCont       = 0x09 // wire-level continuation marker
	maxIndexBytes = 8    // largest index length byte
)

// MaxPathLen is the maximum length of a canonical path in bytes. The top bit
// of the wire key-length field is reserved for extension entries, so path
// lengths must fit in 15 bits.
const MaxPathLen = 0x7FFF

// Path is the canonical byte rendering of a document path.
type Path []byte

// Segment kinds.
const (
	SegKey   = 1 // object key
	SegIndex = 2 // array index
)

// Segment is one step of a path: an object key or an array index.
type Segment struct {
	Kind  int
	Key   string
	Index uint64
}

// Key returns an object-key segment.
func Key(name string) Segment {
	return Segment{Kind: SegKey, Key: name}
}

// Index returns an array-index segment.
func Index(i uint64) Segment {
	return Segment{Kind: SegIndex, Index: i}
}

// NewPath renders segments into a canonical path. Object keys must not
// contain bytes in the tag range 0x00–0x09.
func NewPath(segs ...Segment) (Path, error) {
	var p []byte
	for _, seg := range segs {
		switch seg.Kind {
		case SegKey:
			if !validKey(seg.Key) {
				return nil, fmt.Errorf("%w: %q", ErrInvalidKey, seg.Key)
			}
			p = appendKeySegment(p, seg.Key)
		case SegIndex:
			p = appendIndexSegment(p, seg.Index)
		default:
			return nil, fmt.Errorf("%w: segment kind %d", ErrCorruptPath, seg.Kind)
		}
	}
	if len(p) > MaxPathLen {
		return nil, fmt.Errorf("%w: path is %d bytes", ErrOversizeField, len(p))
	}
	return p, nil
}

// validKey reports whether an object key is encodable: every byte must be
// above the tag range so the key terminates at the next segment tag.
func validKey(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] <= tagCont {
			return false
		}
	}
	return true
}

func appendKeySegment(p []byte, key string) []byte {
	p = append(p, tagKey)
	return append(p, key...)
}

func appendIndexSegment(p []byte, i uint64) []byte {
	return appendIndexVarint(p, i)
}

// Segments iterates the path's segments in order. Iteration stops at the
// first malformed segment, yielding the error.
func (p Path) Segments() iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) {
		pos := 0
		for pos < len(p) {
			tag := p[pos]
			switch {
			case tag == tagKey:
				pos++
				start := pos
				for pos < len(p) && p[pos] > tagCont {
					pos++
				}
				if !yield(Segment{Kind: SegKey, Key: string(p[start:pos])}, nil) {
					return
				}
			case tag >= 1 && tag <= maxIndexBytes:
				v, n, err := readIndexVarint(p[pos:])
				if err != nil {
					yield(Segment{}, err)
					return
				}
				pos += n
				if !yield(Segment{Kind: SegIndex, Index: v}, nil) {
					return
				}
			default:
				yield(Segment{}, fmt.Errorf("%w: tag 0x%02x at byte %d", ErrCorruptPath, tag, pos))
				return
			}
		}
	}
}

// validate checks that the path parses cleanly and fits the wire limit.
func (p Path) validate() error {
	if len(p) > MaxPathLen {
		return fmt.Errorf("%w: path is %d bytes", ErrOversizeField, len(p))
	}
	for _, err := range p.Segments() {
		if err != nil {
			return err
		}
	}
	return nil
}

// String renders the path for debugging: $ for the root, .key for object
// keys, [i] for array indices. Malformed segments render as !.
func (p Path) String() string {
	var sb strings.Builder
	sb.WriteByte('$')
	for seg, err := range p.Segments() {
		if err != nil {
			sb.WriteByte('!')
			break
		}
		switch seg.Kind {
		case SegKey:
			sb.WriteByte('.')
			sb.WriteString(seg.Key)
		case SegIndex:
			sb.WriteByte('[')
			sb.WriteString(strconv.FormatUint(seg.Index, 10))
			sb.WriteByte(']')
		}
	}
	return sb.String()
}

// Equal reports whether two paths have identical canonical bytes.
func (p Path) Equal(q Path) bool {
	return bytes.Equal(p, q)
}

// Compare orders paths by canonical bytes, which is traversal order.
func (p Path) Compare(q Path) int {
	return bytes.Compare(p, q)
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	return Path(bytes.Clone(p))
}

// extendsPath reports whether key lies inside the subtree rooted at prefix:
// it must start with prefix's bytes and, if longer, continue with a segment
// tag. The tag check stops a prefix ending in key "a" from matching a
// sibling key "ab", whose next byte is ordinary key text.
func extendsPath(key, prefix []byte) bool {
	if !bytes.HasPrefix(key, prefix) {
		return false
	}
	return len(key) == len(prefix) || key[len(prefix)] <= maxIndexBytes
}
