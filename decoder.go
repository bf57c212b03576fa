// Streaming entry decoder and document reconstruction.
//
// A Decoder pulls one entry at a time from a byte source, expanding each
// wire diff against the previous path. Decoding is sequential by nature —
// every entry depends on its predecessor's path — but independent ranges of
// a stream can be decoded concurrently when each range is re-based: seed a
// Decoder with the full path preceding the range (NewDecoderAt), which is
// exactly what a range-scan boundary knows.
//
// Reconstruction folds entries back into a Document, accumulating
// continuation groups before inserting each finished leaf. Structural
// errors abort the stream and carry the byte offset of the failure; they
// are never skipped, because a skipped entry would desynchronise the
// prefix-diff state for everything after it.
package flatwire

import (
	"fmt"
	"io"
	"iter"
)

// Decoder reads an ordered entry stream from a source.
type Decoder struct {
	r       io.Reader
	lastKey []byte
	inGroup bool
	off     int64
	err     error
}

// NewDecoder returns a Decoder reading a stream from its start.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// NewDecoderAt returns a Decoder for a sub-range of a stream. prev is the
// full canonical path of the entry immediately before the range; the first
// entry's prefix length is resolved against it. This is the re-basing
// adapter for decoding range scans, including in parallel.
func NewDecoderAt(r io.Reader, prev Path) *Decoder {
	return &Decoder{r: r, lastKey: prev.Clone()}
}

// Offset returns the number of stream bytes consumed so far.
func (d *Decoder) Offset() int64 {
	return d.off
}

// Next returns the next entry. It returns io.EOF at a clean end of stream;
// an end of input inside an entry is ErrTruncatedEntry, which is retryable
// only if the source is still growing. The first error is sticky.
func (d *Decoder) Next() (Entry, error) {
	if d.err != nil {
		return Entry{}, d.err
	}
	e, err := d.next()
	if err != nil {
		d.err = err
	}
	return e, err
}

func (d *Decoder) next() (Entry, error) {
	var hdr [entryHeaderSize]byte
	for {
		if _, err := io.ReadFull(d.r, hdr[:]); err != nil {
			if err == io.EOF {
				return Entry{}, io.EOF
			}
			return Entry{}, d.corrupt(ErrTruncatedEntry, "header")
		}
		h := parseEntryHeader(hdr[:])
		if !h.ext {
			return d.readEntry(h)
		}
		// Extension entry: reserved for future format revisions. Optional
		// ones are skipped; mandatory ones cannot be decoded.
		if !h.optional {
			return Entry{}, d.corrupt(ErrUnsupportedEntry, "")
		}
		skip := int64(h.keyLen) + int64(h.valueLen)
		if _, err := io.CopyN(io.Discard, d.r, skip); err != nil {
			return Entry{}, d.corrupt(ErrTruncatedEntry, "extension body")
		}
		d.off += entryHeaderSize + skip
	}
}

func (d *Decoder) readEntry(h entryHeader) (Entry, error) {
	if h.prefixLen > h.keyLen {
		return Entry{}, d.corrupt(ErrInvalidPrefixLength, fmt.Sprintf("prefix %d, key %d", h.prefixLen, h.keyLen))
	}
	if h.prefixLen > len(d.lastKey) {
		return Entry{}, d.corrupt(ErrInvalidPrefixLength, fmt.Sprintf("prefix %d, previous path %d bytes", h.prefixLen, len(d.lastKey)))
	}

	var key []byte
	diffLen := h.keyLen - h.prefixLen
	if d.inGroup {
		// Continuation chunk: the path repeats in full and the diff is a
		// single marker byte.
		if h.prefixLen != h.keyLen || h.keyLen != len(d.lastKey) {
			return Entry{}, d.corrupt(ErrOutOfOrderContinuation, "chunk does not repeat group path")
		}
		var marker [1]byte
		if _, err := io.ReadFull(d.r, marker[:]); err != nil {
			return Entry{}, d.corrupt(ErrTruncatedEntry, "continuation marker")
		}
		if marker[0] != tagCont {
			return Entry{}, d.corrupt(ErrCorruptEntry, fmt.Sprintf("marker byte 0x%02x", marker[0]))
		}
		diffLen = 1
		key = d.lastKey
	} else {
		diff := make([]byte, diffLen)
		if _, err := io.ReadFull(d.r, diff); err != nil {
			return Entry{}, d.corrupt(ErrTruncatedEntry, "key diff")
		}
		var err error
		key, err = undiffKey(d.lastKey, h.prefixLen, diff)
		if err != nil {
			return Entry{}, d.corrupt(err, "")
		}
	}

	value := make([]byte, h.valueLen)
	if _, err := io.ReadFull(d.r, value); err != nil {
		return Entry{}, d.corrupt(ErrTruncatedEntry, "value")
	}

	d.lastKey = key
	d.inGroup = h.cont
	d.off += int64(entryHeaderSize + diffLen + h.valueLen)
	return Entry{
		Path:      Path(key),
		Value:     value,
		PrefixLen: h.prefixLen,
		Cont:      h.cont,
	}, nil
}

// corrupt wraps a structural error with the stream offset of the failed
// entry.
func (d *Decoder) corrupt(err error, detail string) error {
	if detail != "" {
		return fmt.Errorf("%w (%s) at offset %d", err, detail, d.off)
	}
	return fmt.Errorf("%w at offset %d", err, d.off)
}

// Entries yields entries until the stream ends or fails. The sequence is
// finite and single-use; it is not restartable unless the source rewinds.
func (d *Decoder) Entries() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for {
			e, err := d.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Entry{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

// Document decodes the remaining stream and reconstructs the full document.
func (d *Decoder) Document() (*Document, error) {
	return Reconstruct(d.Entries())
}

// Reconstruct rebuilds a document from an ordered entry sequence.
func Reconstruct(entries iter.Seq2[Entry, error]) (*Document, error) {
	return Subtree(nil, entries)
}

// Subtree rebuilds the document rooted at prefix from a contiguous run of
// entries whose paths all lie inside that subtree — typically the output of
// a re-based range scan. The prefix itself is stripped: scanning under
// $.users[0] yields the document that sat at that path. A truncated final
// continuation group yields the chunks received so far as the leaf value.
func Subtree(prefix Path, entries iter.Seq2[Entry, error]) (*Document, error) {
	root := &Document{}
	var asm assembly
	for e, err := range entries {
		if err != nil {
			return nil, err
		}
		if asm.open {
			groupPath := asm.path
			value, err := asm.add(e)
			if err != nil {
				return nil, err
			}
			if value != nil {
				if err := root.insert(groupPath[len(prefix):], value); err != nil {
					return nil, err
				}
			}
			continue
		}
		if !extendsPath(e.Path, prefix) {
			return nil, fmt.Errorf("%w: %s outside %s", ErrOutsidePrefix, e.Path, prefix)
		}
		if e.Cont {
			asm.begin(e)
			continue
		}
		if err := root.insert(e.Path[len(prefix):], append([]byte(nil), e.Value...)); err != nil {
			return nil, err
		}
	}
	if asm.open {
		// Stream ended mid-group: keep the partial leaf, matching the
		// contract that an aborted encode still decodes to every entry
		// written.
		if err := root.insert(asm.path[len(prefix):], asm.buf); err != nil {
			return nil, err
		}
	}
	return root, nil
}
