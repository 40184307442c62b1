// Package field provides the binary payload buffer that flows through a
// pipeline.
//
// A Field is mutated in place by successive stages. No operation changes its
// length. Ownership moves from stage to stage; a Field is never shared between
// concurrent runs.
package field

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
)

// Field is a mutable, fixed-length byte buffer.
type Field struct {
	data []byte
}

// Wrap creates a Field holding a copy of b.
// The caller's slice is never aliased.
func Wrap(b []byte) *Field {
	data := make([]byte, len(b))
	copy(data, b)
	return &Field{data: data}
}

// Copy returns an independent duplicate sharing no storage with f.
func (f *Field) Copy() *Field {
	return Wrap(f.data)
}

// XORMix XORs every byte with the pattern, repeating the pattern cyclically
// across the full length: data[i] ^= pattern[i % len(pattern)].
// An empty pattern is a no-op.
func (f *Field) XORMix(pattern []byte) {
	if len(pattern) == 0 {
		return
	}
	for i := range f.data {
		f.data[i] ^= pattern[i%len(pattern)]
	}
}

// Invert replaces every byte with its bitwise complement.
func (f *Field) Invert() {
	for i, b := range f.data {
		f.data[i] = ^b
	}
}

// Len returns the number of bytes in the field.
func (f *Field) Len() int {
	return len(f.data)
}

// Bytes returns a copy of the field contents.
func (f *Field) Bytes() []byte {
	out := make([]byte, len(f.data))
	copy(out, f.data)
	return out
}

// Equal reports whether both fields hold the same bytes.
func (f *Field) Equal(other *Field) bool {
	if f == nil || other == nil {
		return f == other
	}
	return bytes.Equal(f.data, other.data)
}

// Digest returns the SHA-256 hex digest of the contents.
func (f *Field) Digest() string {
	sum := sha256.Sum256(f.data)
	return hex.EncodeToString(sum[:])
}

// String shows a digest prefix instead of the raw bytes so a Field can be
// logged without leaking its contents.
func (f *Field) String() string {
	return "<Field Hash: " + f.Digest()[:8] + ">"
}
