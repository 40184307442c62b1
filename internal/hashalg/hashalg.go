// Package hashalg provides the one-way hash strategies used to synthesize
// decoy patterns. The algorithm is configuration, not engine behavior.
package hashalg

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"sort"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Func hashes data into a fixed-length digest.
type Func func(data []byte) []byte

// Default is the algorithm name used when none is configured.
const Default = "sha256"

// SHA256 returns the 32 byte SHA-256 digest.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// SHA512 returns the 64 byte SHA-512 digest.
func SHA512(data []byte) []byte {
	sum := sha512.Sum512(data)
	return sum[:]
}

// SHA3_256 returns the 32 byte SHA3-256 digest.
func SHA3_256(data []byte) []byte {
	sum := sha3.Sum256(data)
	return sum[:]
}

// BLAKE2b256 returns the 32 byte BLAKE2b-256 digest.
func BLAKE2b256(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

var registry = map[string]Func{
	"sha256":      SHA256,
	"sha512":      SHA512,
	"sha3-256":    SHA3_256,
	"blake2b-256": BLAKE2b256,
}

// Lookup returns the hash function registered under name.
// An empty name selects Default.
func Lookup(name string) (Func, error) {
	if name == "" {
		name = Default
	}
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown hash algorithm %q: must be one of %v", name, Names())
	}
	return fn, nil
}

// Names returns the registered algorithm names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
