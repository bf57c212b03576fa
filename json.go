// JSON boundary: parsing JSON into documents and rendering them back.
//
// Parsing walks the decoder's token stream rather than unmarshalling into a
// map, so object field order survives. Scalars become tagged leaf bytes:
//
//	0x80 false   0x81 true   0x82 <utf-8> string
//	0x83 <8 be bytes> float64   0x84 null
//	0x00–0x08    integer: low nibble is the byte count of the
//	             zigzag-encoded value, stored little-endian
//
// The tag namespace is independent of path segment tags; leaf bytes are
// opaque to the entry codec and only this adapter interprets them.
package flatwire

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	json "github.com/goccy/go-json"
)

// Leaf value tags.
const (
	tagBoolFalse = 0x80
	tagBoolTrue  = 0x81
	tagString    = 0x82
	tagFloat     = 0x83
	tagNull      = 0x84
)

// LeafString returns a leaf holding a tagged UTF-8 string.
func LeafString(s string) *Document {
	b := make([]byte, 0, 1+len(s))
	b = append(b, tagString)
	return NewLeaf(append(b, s...))
}

// LeafInt returns a leaf holding a tagged integer.
func LeafInt(v int64) *Document {
	zz := zigzag(v)
	n := 0
	for zz>>(8*n) != 0 {
		n++
	}
	b := make([]byte, 1+n)
	b[0] = byte(n)
	for i := 0; i < n; i++ {
		b[1+i] = byte(zz >> (8 * i))
	}
	return NewLeaf(b)
}

// LeafFloat returns a leaf holding a tagged float64.
func LeafFloat(v float64) *Document {
	b := make([]byte, 9)
	b[0] = tagFloat
	bits := math.Float64bits(v)
	for i := 0; i < 8; i++ {
		b[1+i] = byte(bits >> (8 * (7 - i)))
	}
	return NewLeaf(b)
}

// LeafBool returns a leaf holding a tagged boolean.
func LeafBool(v bool) *Document {
	if v {
		return NewLeaf([]byte{tagBoolTrue})
	}
	return NewLeaf([]byte{tagBoolFalse})
}

// LeafNull returns a leaf holding a tagged null.
func LeafNull() *Document {
	return NewLeaf([]byte{tagNull})
}

// ParseJSON builds a document from JSON source, preserving object field
// order. Duplicate keys keep the last value.
func ParseJSON(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	d, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", ErrCorruptValue)
	}
	return d, nil
}

func parseValue(dec *json.Decoder) (*Document, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("%w: object key %v", ErrCorruptValue, keyTok)
				}
				child, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				if err := obj.Set(key, child); err != nil {
					return nil, err
				}
			}
			if _, err := dec.Token(); err != nil { // closing brace
				return nil, err
			}
			return obj, nil
		case '[':
			arr := NewArray()
			for dec.More() {
				child, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				arr.Push(child)
			}
			if _, err := dec.Token(); err != nil { // closing bracket
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("%w: delimiter %v", ErrCorruptValue, t)
	case string:
		return LeafString(t), nil
	case json.Number:
		if v, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return LeafInt(v), nil
		}
		v, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: number %q", ErrCorruptValue, t.String())
		}
		return LeafFloat(v), nil
	case bool:
		return LeafBool(t), nil
	case nil:
		return LeafNull(), nil
	}
	return nil, fmt.Errorf("%w: token %v", ErrCorruptValue, tok)
}

// MarshalJSON renders the document as JSON. Nil array elements and unset
// nodes render as null; leaf bytes must carry a valid scalar tag.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, d *Document) error {
	if d == nil || d.kind == 0 {
		buf.WriteString("null")
		return nil
	}
	switch d.kind {
	case KindObject:
		buf.WriteByte('{')
		for i, f := range d.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(f.name)
			if err != nil {
				return err
			}
			buf.Write(name)
			buf.WriteByte(':')
			if err := writeJSON(buf, f.child); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case KindArray:
		buf.WriteByte('[')
		for i, e := range d.elems {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case KindLeaf:
		return writeLeafJSON(buf, d.value)
	}
	return fmt.Errorf("%w: node kind %d", ErrCorruptValue, d.kind)
}

func writeLeafJSON(buf *bytes.Buffer, value []byte) error {
	if len(value) == 0 {
		return fmt.Errorf("%w: empty leaf", ErrCorruptValue)
	}
	tag := value[0]
	switch {
	case tag == tagNull:
		buf.WriteString("null")
	case tag == tagBoolTrue:
		buf.WriteString("true")
	case tag == tagBoolFalse:
		buf.WriteString("false")
	case tag == tagString:
		s, err := json.Marshal(string(value[1:]))
		if err != nil {
			return err
		}
		buf.Write(s)
	case tag == tagFloat:
		if len(value) != 9 {
			return fmt.Errorf("%w: float leaf is %d bytes", ErrCorruptValue, len(value))
		}
		var bits uint64
		for _, b := range value[1:] {
			bits = bits<<8 | uint64(b)
		}
		f, err := json.Marshal(math.Float64frombits(bits))
		if err != nil {
			return err
		}
		buf.Write(f)
	case tag <= maxIndexBytes:
		n := int(tag)
		if len(value) != 1+n {
			return fmt.Errorf("%w: integer leaf is %d bytes, tag wants %d", ErrCorruptValue, len(value), 1+n)
		}
		var zz uint64
		for i := n - 1; i >= 0; i-- {
			zz = zz<<8 | uint64(value[1+i])
		}
		buf.WriteString(strconv.FormatInt(unzigzag(zz), 10))
	default:
		return fmt.Errorf("%w: tag 0x%02x", ErrCorruptValue, tag)
	}
	return nil
}
