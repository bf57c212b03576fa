package flatwire

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

const profileJSON = `{"users":[{"alice":{"age":30,"city":"Wonderland"}},{"bob":{"age":25,"city":"Builderland"}}]}`

func encodeJSON(t *testing.T, src string) []byte {
	t.Helper()
	d, err := ParseJSON([]byte(src))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	var buf bytes.Buffer
	if err := NewEncoder(&buf).WriteDocument(d); err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	return buf.Bytes()
}

func TestEncoderPrefixElision(t *testing.T) {
	stream := encodeJSON(t, profileJSON)

	want := []struct {
		path      string
		prefixLen int
		value     []byte
	}{
		{"$.users[0].alice.age", 0, []byte{0x01, 0x3C}},
		{"$.users[0].alice.city", 15, append([]byte{tagString}, "Wonderland"...)},
		{"$.users[1].bob.age", 7, []byte{0x01, 0x32}},
		{"$.users[1].bob.city", 13, append([]byte{tagString}, "Builderland"...)},
	}

	dec := NewDecoder(bytes.NewReader(stream))
	for i, w := range want {
		e, err := dec.Next()
		if err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		if got := e.Path.String(); got != w.path {
			t.Errorf("entry %d path = %s, want %s", i, got, w.path)
		}
		if e.PrefixLen != w.prefixLen {
			t.Errorf("entry %d prefix length = %d, want %d", i, e.PrefixLen, w.prefixLen)
		}
		if !bytes.Equal(e.Value, w.value) {
			t.Errorf("entry %d value = % x, want % x", i, e.Value, w.value)
		}
		if e.Cont {
			t.Errorf("entry %d has continuation flag", i)
		}
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after last entry, got %v", err)
	}
}

func TestEncoderOutOfOrderWrite(t *testing.T) {
	pa, _ := NewPath(Key("a"))
	pb, _ := NewPath(Key("b"))

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Write(pb, []byte{tagNull}); err != nil {
		t.Fatal(err)
	}
	mark := buf.Len()

	if err := enc.Write(pa, []byte{tagNull}); !errors.Is(err, ErrOutOfOrderWrite) {
		t.Errorf("smaller path: expected ErrOutOfOrderWrite, got %v", err)
	}
	if err := enc.Write(pb, []byte{tagNull}); !errors.Is(err, ErrOutOfOrderWrite) {
		t.Errorf("repeated path: expected ErrOutOfOrderWrite, got %v", err)
	}
	// The violation is detected before anything reaches the sink.
	if buf.Len() != mark {
		t.Errorf("rejected write emitted %d bytes", buf.Len()-mark)
	}
}

func TestEncoderContinuationGroup(t *testing.T) {
	value := bytes.Repeat([]byte{0xC3}, 150_000)
	p, _ := NewPath(Key("blob"))

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Write(p, value); err != nil {
		t.Fatal(err)
	}
	if enc.Written() != int64(buf.Len()) {
		t.Errorf("Written() = %d, buffer holds %d", enc.Written(), buf.Len())
	}

	var sizes []int
	var flags []bool
	var got []byte
	dec := NewDecoder(bytes.NewReader(buf.Bytes()))
	for e, err := range dec.Entries() {
		if err != nil {
			t.Fatal(err)
		}
		if !e.Path.Equal(p) {
			t.Errorf("chunk path %s", e.Path)
		}
		sizes = append(sizes, len(e.Value))
		flags = append(flags, e.Cont)
		got = append(got, e.Value...)
	}

	wantSizes := []int{MaxValueLen, MaxValueLen, 150_000 - 2*MaxValueLen}
	wantFlags := []bool{true, true, false}
	if len(sizes) != 3 {
		t.Fatalf("got %d chunks, want 3", len(sizes))
	}
	for i := range wantSizes {
		if sizes[i] != wantSizes[i] || flags[i] != wantFlags[i] {
			t.Errorf("chunk %d: %d bytes cont=%v, want %d bytes cont=%v",
				i, sizes[i], flags[i], wantSizes[i], wantFlags[i])
		}
	}
	if !bytes.Equal(got, value) {
		t.Error("reassembled value differs")
	}
}

func TestEncoderValueBoundary(t *testing.T) {
	tests := []struct {
		size    int
		entries int
	}{
		{MaxValueLen, 1},
		{MaxValueLen + 1, 2},
	}

	for _, tt := range tests {
		p, _ := NewPath(Key("v"))
		var buf bytes.Buffer
		if err := NewEncoder(&buf).Write(p, make([]byte, tt.size)); err != nil {
			t.Fatal(err)
		}
		n := 0
		for _, err := range NewDecoder(bytes.NewReader(buf.Bytes())).Entries() {
			if err != nil {
				t.Fatal(err)
			}
			n++
		}
		if n != tt.entries {
			t.Errorf("%d-byte value encoded as %d entries, want %d", tt.size, n, tt.entries)
		}
	}
}

func TestWriteDocumentNeedsSortedKeys(t *testing.T) {
	d := NewObject()
	d.Set("b", LeafInt(1))
	d.Set("a", LeafInt(2))

	if err := NewEncoder(io.Discard).WriteDocument(d); !errors.Is(err, ErrOutOfOrderWrite) {
		t.Fatalf("unsorted document: expected ErrOutOfOrderWrite, got %v", err)
	}

	d.SortKeys()
	if err := NewEncoder(io.Discard).WriteDocument(d); err != nil {
		t.Fatalf("sorted document: %v", err)
	}
}
