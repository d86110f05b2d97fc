package model

import (
	"bytes"
	"testing"
)

func TestHash_Equal(t *testing.T) {
	a := NewHash([]byte{1, 2, 3})
	b := NewHash([]byte{1, 2, 3})
	c := NewHash([]byte{1, 2, 4})

	if !a.Equal(b) {
		t.Error("identical hashes compare unequal")
	}
	if a.Equal(c) {
		t.Error("different hashes compare equal")
	}
}

func TestNewHash_Copies(t *testing.T) {
	buf := []byte{1, 2, 3}
	h := NewHash(buf)
	buf[0] = 9

	if h.Bytes[0] != 1 {
		t.Error("NewHash() aliased the caller's buffer")
	}
}

func TestHash_Compare(t *testing.T) {
	low := NewHash([]byte{1})
	high := NewHash([]byte{2})

	if low.Compare(high) >= 0 {
		t.Error("Compare() ordering is not byte-wise")
	}
	if low.Compare(low) != 0 {
		t.Error("Compare() of equal hashes != 0")
	}
}

func TestHash_Short(t *testing.T) {
	h := NewHash(bytes.Repeat([]byte{0xAB}, 32))
	if got := h.Short(); got != "abababababab" {
		t.Errorf("Short() = %q, want %q", got, "abababababab")
	}
	if h.IsZero() {
		t.Error("non-empty hash reported as zero")
	}

	empty := Hash{}
	if !empty.IsZero() {
		t.Error("empty hash not reported as zero")
	}
	if empty.Short() != "" {
		t.Errorf("Short() of empty hash = %q", empty.Short())
	}
}
