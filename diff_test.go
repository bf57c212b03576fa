package flatwire

import (
	"bytes"
	"errors"
	"testing"
)

func TestCommonPrefix(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"hello world", "hello rust", 6},
		{"", "", 0},
		{"", "abc", 0},
		{"abc", "abc", 3},
		{"abc", "abcdef", 3},
		// Longer than one 8-byte chunk to cover the vectorised path.
		{"users.0.alice.age", "users.0.alice.city", 14},
	}

	for _, tt := range tests {
		if got := commonPrefix([]byte(tt.a), []byte(tt.b)); got != tt.want {
			t.Errorf("commonPrefix(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDiffUndiffRoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"", "users"},
		{"users", "users.0"},
		{"users.0.alice.age", "users.0.alice.city"},
		{"users.0.alice.city", "users.1.bob.age"},
		{"same", "same2"},
	}

	for _, pair := range pairs {
		prev, curr := []byte(pair[0]), []byte(pair[1])
		n, suffix := diffKey(prev, curr)
		got, err := undiffKey(prev, n, suffix)
		if err != nil {
			t.Fatalf("undiffKey(%q, %d): %v", pair[0], n, err)
		}
		if !bytes.Equal(got, curr) {
			t.Errorf("undiff(diff(%q, %q)) = %q", pair[0], pair[1], got)
		}
	}
}

func TestUndiffInvalidPrefix(t *testing.T) {
	_, err := undiffKey([]byte("ab"), 3, []byte("x"))
	if !errors.Is(err, ErrInvalidPrefixLength) {
		t.Errorf("expected ErrInvalidPrefixLength, got %v", err)
	}
}
