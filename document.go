// In-memory document tree.
//
// A Document is an insertion-ordered object, an array, or a binary leaf.
// Only leaves carry values; objects and arrays exist to define paths.
// Flatten walks the tree depth-first in pre-order — object fields in
// insertion order, array elements by ascending index — yielding one
// (Path, value) pair per leaf. Insert is the inverse: it walks a path,
// growing objects and arrays as needed, and places a leaf at the end.
// Inserting over an existing node replaces it, so when streams are merged
// the latest value for a path wins.
package flatwire

import (
	"bytes"
	"fmt"
	"iter"
	"sort"
)

// Document node kinds.
const (
	KindObject = 1
	KindArray  = 2
	KindLeaf   = 3
)

// Document is one node of a document tree. The zero value is an empty node
// that takes on a kind at first use.
type Document struct {
	kind   int
	fields []docField  // KindObject, insertion order
	elems  []*Document // KindArray; nil elements render as JSON null
	value  []byte      // KindLeaf
}

type docField struct {
	name  string
	child *Document
}

// NewObject returns an empty object node.
func NewObject() *Document {
	return &Document{kind: KindObject}
}

// NewArray returns an empty array node.
func NewArray() *Document {
	return &Document{kind: KindArray}
}

// NewLeaf returns a leaf node holding value. The bytes are not copied.
func NewLeaf(value []byte) *Document {
	return &Document{kind: KindLeaf, value: value}
}

// Kind returns the node kind, or 0 for an unset node.
func (d *Document) Kind() int {
	if d == nil {
		return 0
	}
	return d.kind
}

// Set adds or replaces a field on an object node, preserving the position of
// a replaced field. An unset node becomes an object. Keys must not contain
// bytes in the tag range 0x00–0x09.
func (d *Document) Set(name string, child *Document) error {
	if !validKey(name) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, name)
	}
	if d.kind != KindObject {
		d.reset(KindObject)
	}
	for i := range d.fields {
		if d.fields[i].name == name {
			d.fields[i].child = child
			return nil
		}
	}
	d.fields = append(d.fields, docField{name, child})
	return nil
}

// Push appends an element to an array node. An unset node becomes an array.
func (d *Document) Push(child *Document) {
	if d.kind != KindArray {
		d.reset(KindArray)
	}
	d.elems = append(d.elems, child)
}

// Get returns the named field of an object node, or nil.
func (d *Document) Get(name string) *Document {
	if d == nil || d.kind != KindObject {
		return nil
	}
	for _, f := range d.fields {
		if f.name == name {
			return f.child
		}
	}
	return nil
}

// At returns the i'th element of an array node, or nil.
func (d *Document) At(i int) *Document {
	if d == nil || d.kind != KindArray || i < 0 || i >= len(d.elems) {
		return nil
	}
	return d.elems[i]
}

// Len returns the number of fields or elements of a container node.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	switch d.kind {
	case KindObject:
		return len(d.fields)
	case KindArray:
		return len(d.elems)
	}
	return 0
}

// Value returns a leaf node's bytes, or nil for container nodes.
func (d *Document) Value() []byte {
	if d == nil || d.kind != KindLeaf {
		return nil
	}
	return d.value
}

// Equal reports structural equality: same kinds, same field names in the
// same order, same element order, byte-equal leaves. Nil and unset nodes
// are equal to each other.
func (d *Document) Equal(o *Document) bool {
	if d.Kind() != o.Kind() {
		return false
	}
	switch d.Kind() {
	case 0:
		return true
	case KindLeaf:
		return bytes.Equal(d.value, o.value)
	case KindArray:
		if len(d.elems) != len(o.elems) {
			return false
		}
		for i := range d.elems {
			if !d.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(d.fields) != len(o.fields) {
			return false
		}
		for i := range d.fields {
			if d.fields[i].name != o.fields[i].name {
				return false
			}
			if !d.fields[i].child.Equal(o.fields[i].child) {
				return false
			}
		}
		return true
	}
	return false
}

// SortKeys recursively sorts object fields into canonical byte order.
// Flattening a sorted document yields strictly increasing paths, which is
// what an encoding session requires; arrays are already in order.
func (d *Document) SortKeys() {
	if d == nil {
		return
	}
	switch d.kind {
	case KindObject:
		sort.SliceStable(d.fields, func(i, j int) bool {
			return d.fields[i].name < d.fields[j].name
		})
		for _, f := range d.fields {
			f.child.SortKeys()
		}
	case KindArray:
		for _, e := range d.elems {
			e.SortKeys()
		}
	}
}

// Flatten yields one (path, value) pair per leaf, depth-first in pre-order.
// Nil array elements are skipped, mirroring null elision on encode. The
// yielded paths are freshly allocated and safe to retain.
func (d *Document) Flatten() iter.Seq2[Path, []byte] {
	return func(yield func(Path, []byte) bool) {
		d.flatten(nil, yield)
	}
}

func (d *Document) flatten(prefix []byte, yield func(Path, []byte) bool) bool {
	if d == nil {
		return true
	}
	switch d.kind {
	case KindLeaf:
		return yield(Path(prefix), d.value)
	case KindObject:
		for _, f := range d.fields {
			if f.child == nil {
				continue
			}
			p := appendKeySegment(bytes.Clone(prefix), f.name)
			if !f.child.flatten(p, yield) {
				return false
			}
		}
	case KindArray:
		for i, e := range d.elems {
			if e == nil {
				continue
			}
			p := appendIndexSegment(bytes.Clone(prefix), uint64(i))
			if !e.flatten(p, yield) {
				return false
			}
		}
	}
	return true
}

// insert places a leaf at path, creating intermediate objects and arrays and
// padding arrays with nil elements for sparse indices. A node whose kind
// conflicts with the path is replaced, so the latest entry for a path wins.
func (d *Document) insert(p Path, value []byte) error {
	cur := d
	for seg, err := range p.Segments() {
		if err != nil {
			return err
		}
		switch seg.Kind {
		case SegKey:
			if cur.kind != KindObject {
				cur.reset(KindObject)
			}
			var child *Document
			for i := range cur.fields {
				if cur.fields[i].name == seg.Key {
					if cur.fields[i].child == nil {
						cur.fields[i].child = &Document{}
					}
					child = cur.fields[i].child
					break
				}
			}
			if child == nil {
				child = &Document{}
				cur.fields = append(cur.fields, docField{seg.Key, child})
			}
			cur = child
		case SegIndex:
			if cur.kind != KindArray {
				cur.reset(KindArray)
			}
			i := int(seg.Index)
			for len(cur.elems) <= i {
				cur.elems = append(cur.elems, nil)
			}
			if cur.elems[i] == nil {
				cur.elems[i] = &Document{}
			}
			cur = cur.elems[i]
		}
	}
	cur.reset(KindLeaf)
	cur.value = value
	return nil
}

func (d *Document) reset(kind int) {
	d.kind = kind
	d.fields = nil
	d.elems = nil
	d.value = nil
}
