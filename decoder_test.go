package flatwire

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeRoundTrip(t *testing.T) {
	d, err := ParseJSON([]byte(profileJSON))
	if err != nil {
		t.Fatal(err)
	}
	stream := encodeJSON(t, profileJSON)

	got, err := NewDecoder(bytes.NewReader(stream)).Document()
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(d) {
		t.Fatal("decoded document differs from input")
	}
	out, err := got.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != profileJSON {
		t.Errorf("marshal = %s", out)
	}
}

func TestReEncodeIsByteIdentical(t *testing.T) {
	stream := encodeJSON(t, profileJSON)

	d, err := NewDecoder(bytes.NewReader(stream)).Document()
	if err != nil {
		t.Fatal(err)
	}
	var again bytes.Buffer
	if err := NewEncoder(&again).WriteDocument(d); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(again.Bytes(), stream) {
		t.Error("re-encoded stream differs from original")
	}
}

func TestLargeValueRoundTrip(t *testing.T) {
	d := NewObject()
	d.Set("blob", LeafString(string(bytes.Repeat([]byte{'z'}, 150_000))))

	var buf bytes.Buffer
	if err := NewEncoder(&buf).WriteDocument(d); err != nil {
		t.Fatal(err)
	}
	got, err := NewDecoder(bytes.NewReader(buf.Bytes())).Document()
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(d) {
		t.Error("large value did not survive the round trip")
	}
}

func TestDecoderTruncated(t *testing.T) {
	stream := encodeJSON(t, profileJSON)

	tests := []struct {
		name string
		cut  int
	}{
		{"mid header", 3},
		{"mid key diff", entryHeaderSize + 4},
		{"mid value", len(stream) - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(bytes.NewReader(stream[:tt.cut]))
			var err error
			for _, e := range dec.Entries() {
				err = e
			}
			if !errors.Is(err, ErrTruncatedEntry) {
				t.Errorf("expected ErrTruncatedEntry, got %v", err)
			}
		})
	}
}

func TestDecoderFirstEntryNonzeroPrefix(t *testing.T) {
	// A stream cannot open with a prefix reference: there is no previous path.
	stream := appendEntry(nil, 3, 2, []byte("c"), []byte{tagNull}, false)
	_, err := NewDecoder(bytes.NewReader(stream)).Next()
	if !errors.Is(err, ErrInvalidPrefixLength) {
		t.Errorf("expected ErrInvalidPrefixLength, got %v", err)
	}
}

func TestDecoderSkipsOptionalExtension(t *testing.T) {
	pa, _ := NewPath(Key("a"))
	pb, _ := NewPath(Key("b"))

	stream := appendEntry(nil, len(pa), 0, pa, []byte{tagNull}, false)
	// Optional extension entry: key_len top bit and prefix-length top bit
	// set, body is key_len + value_len opaque bytes.
	stream = append(stream, 0x00, 0x03, 0x80, 0x02, 0x80, 0x00)
	stream = append(stream, 1, 2, 3, 4, 5)
	// The following entry diffs against the path before the extension.
	stream = appendEntry(stream, len(pb), 1, []byte("b"), []byte{tagBoolTrue}, false)

	dec := NewDecoder(bytes.NewReader(stream))
	var paths []string
	for e, err := range dec.Entries() {
		if err != nil {
			t.Fatal(err)
		}
		paths = append(paths, e.Path.String())
	}
	if len(paths) != 2 || paths[0] != "$.a" || paths[1] != "$.b" {
		t.Errorf("decoded paths %v, want [$.a $.b]", paths)
	}
}

func TestDecoderRejectsMandatoryExtension(t *testing.T) {
	pa, _ := NewPath(Key("a"))

	stream := appendEntry(nil, len(pa), 0, pa, []byte{tagNull}, false)
	stream = append(stream, 0x00, 0x03, 0x80, 0x02, 0x00, 0x00)
	stream = append(stream, 1, 2, 3, 4, 5)

	dec := NewDecoder(bytes.NewReader(stream))
	if _, err := dec.Next(); err != nil {
		t.Fatal(err)
	}
	if _, err := dec.Next(); !errors.Is(err, ErrUnsupportedEntry) {
		t.Errorf("expected ErrUnsupportedEntry, got %v", err)
	}
}

func TestDecoderAtSubtree(t *testing.T) {
	stream := encodeJSON(t, profileJSON)

	// Walk to the range boundary: the offset and previous path after the
	// second entry are what a range index would record.
	dec := NewDecoder(bytes.NewReader(stream))
	var prev Path
	for i := 0; i < 2; i++ {
		e, err := dec.Next()
		if err != nil {
			t.Fatal(err)
		}
		prev = e.Path
	}
	off := dec.Offset()

	prefix, _ := NewPath(Key("users"), Index(1))
	sub := NewDecoderAt(bytes.NewReader(stream[off:]), prev)
	got, err := Subtree(prefix, sub.Entries())
	if err != nil {
		t.Fatal(err)
	}
	out, err := got.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	want := `{"bob":{"age":25,"city":"Builderland"}}`
	if string(out) != want {
		t.Errorf("subtree = %s, want %s", out, want)
	}
}

func TestSubtreeOutsidePrefix(t *testing.T) {
	stream := encodeJSON(t, profileJSON)
	prefix, _ := NewPath(Key("users"), Index(1))

	dec := NewDecoder(bytes.NewReader(stream))
	if _, err := Subtree(prefix, dec.Entries()); !errors.Is(err, ErrOutsidePrefix) {
		t.Errorf("expected ErrOutsidePrefix, got %v", err)
	}
}

func TestMergedStreamsLatestWins(t *testing.T) {
	first := encodeJSON(t, `{"a":1,"b":2}`)

	var second bytes.Buffer
	pa, _ := NewPath(Key("a"))
	if err := NewEncoder(&second).Write(pa, LeafInt(9).Value()); err != nil {
		t.Fatal(err)
	}

	merged := append(append([]byte(nil), first...), second.Bytes()...)
	got, err := NewDecoder(bytes.NewReader(merged)).Document()
	if err != nil {
		t.Fatal(err)
	}
	out, err := got.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"a":9,"b":2}` {
		t.Errorf("merged document = %s", out)
	}
}

func TestTruncatedGroupKeepsPartialValue(t *testing.T) {
	p, _ := NewPath(Key("blob"))
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Write(p, make([]byte, 70_000)); err != nil {
		t.Fatal(err)
	}

	// Cut the stream at the first chunk boundary. The session ended
	// mid-group, but every entry actually written must still decode.
	dec := NewDecoder(bytes.NewReader(buf.Bytes()))
	if _, err := dec.Next(); err != nil {
		t.Fatal(err)
	}
	cut := buf.Bytes()[:dec.Offset()]

	got, err := NewDecoder(bytes.NewReader(cut)).Document()
	if err != nil {
		t.Fatal(err)
	}
	if n := len(got.Get("blob").Value()); n != MaxValueLen {
		t.Errorf("partial leaf holds %d bytes, want %d", n, MaxValueLen)
	}
}
