// Package flatwire implements a streaming, prefix-compressed binary encoding
// for hierarchical key-value data. A nested document (objects, arrays, binary
// leaves) is flattened into an ordered sequence of fixed-shape entries, each
// describing a canonical path and a value. Consecutive entries share a
// common-prefix diff of their path bytes instead of repeating full paths, and
// values larger than a single entry allows (64 KiB − 1) are split across a
// continuation group of entries, so partial reads and range access never
// materialise the whole document.
//
// Canonical path bytes sort in traversal order, so they double as range keys:
// a prefix scan over an ordered byte store returns exactly one subtree. The
// Store type provides such a store over bbolt, and the container functions
// wrap an entry stream in a checksummed (optionally compressed) file.
package flatwire

import "errors"

// Sentinel errors for programmatic handling. Callers use errors.Is to
// distinguish recoverable conditions (ErrTruncatedEntry on a live stream,
// ErrNotFound) from stream corruption, which aborts decoding: skipping a
// corrupt entry would desynchronise the prefix-diff state for every entry
// that follows.
var (
	ErrMalformedVarint        = errors.New("malformed varint")
	ErrTruncatedEntry         = errors.New("truncated entry")
	ErrInvalidPrefixLength    = errors.New("prefix length exceeds previous path")
	ErrOutOfOrderContinuation = errors.New("out-of-order continuation chunk")
	ErrOutOfOrderWrite        = errors.New("paths must be written in increasing canonical order")
	ErrOversizeField          = errors.New("field exceeds size limit")
	ErrInvalidKey             = errors.New("object key contains reserved bytes")
	ErrCorruptPath            = errors.New("corrupt path encoding")
	ErrCorruptEntry           = errors.New("corrupt entry")
	ErrCorruptValue           = errors.New("corrupt leaf value")
	ErrUnsupportedEntry       = errors.New("mandatory entry of unsupported type")
	ErrOutsidePrefix          = errors.New("path outside requested prefix")
	ErrCorruptHeader          = errors.New("corrupt container header")
	ErrChecksum               = errors.New("container checksum mismatch")
	ErrDecompress             = errors.New("decompression failed")
	ErrNotFound               = errors.New("path not found")
)
