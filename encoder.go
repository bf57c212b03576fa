// Streaming entry encoder.
//
// An Encoder is one encoding session: it remembers only the previous path's
// canonical bytes, so memory stays constant regardless of document size.
// Paths must arrive in strictly increasing canonical order — prefix diffing
// and range scans both depend on it — and a violation is rejected before any
// byte reaches the sink. Each entry is assembled in a scratch buffer and
// written whole, so an aborted session leaves only complete entries behind
// (the final value may end mid-group; see Decoder).
//
// Sessions are independent: concurrent encodes need one Encoder each, not
// shared state.
package flatwire

import (
	"fmt"
	"io"
)

// Encoder writes an ordered entry stream to a sink.
type Encoder struct {
	w       io.Writer
	lastKey []byte
	buf     []byte
	n       int64
	wrote   bool
	err     error
}

// NewEncoder begins an encoding session writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Write appends one logical value at path, splitting it into a continuation
// group when it exceeds MaxValueLen. Paths must be strictly increasing in
// canonical order across the session; equal or smaller paths fail with
// ErrOutOfOrderWrite. The first write error is sticky.
func (e *Encoder) Write(p Path, value []byte) error {
	if e.err != nil {
		return e.err
	}
	if err := p.validate(); err != nil {
		return err
	}
	if e.wrote && p.Compare(e.lastKey) <= 0 {
		return fmt.Errorf("%w: %s after %s", ErrOutOfOrderWrite, p, Path(e.lastKey))
	}

	prefixLen, diff := diffKey(e.lastKey, p)
	chunks := Split(value)
	for i, chunk := range chunks {
		cont := i < len(chunks)-1
		if i == 0 {
			e.buf = appendEntry(e.buf[:0], len(p), prefixLen, diff, chunk, cont)
		} else {
			e.buf = appendEntry(e.buf[:0], len(p), len(p), []byte{tagCont}, chunk, cont)
		}
		if _, err := e.w.Write(e.buf); err != nil {
			e.err = err
			return err
		}
		e.n += int64(len(e.buf))
	}

	e.lastKey = append(e.lastKey[:0], p...)
	e.wrote = true
	return nil
}

// WriteDocument flattens d and writes every leaf. The document's traversal
// order must be canonical; call SortKeys first if object fields are not
// already sorted.
func (e *Encoder) WriteDocument(d *Document) error {
	for p, v := range d.Flatten() {
		if err := e.Write(p, v); err != nil {
			return err
		}
	}
	return nil
}

// Written returns the number of bytes emitted so far. Entries are
// self-contained, so there is nothing to flush at session end.
func (e *Encoder) Written() int64 {
	return e.n
}
