package hashalg

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDefault(t *testing.T) {
	fn, err := Lookup("")
	require.NoError(t, err)

	// SHA-256("abc")
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		hex.EncodeToString(fn([]byte("abc"))))
}

func TestLookupAll(t *testing.T) {
	sizes := map[string]int{
		"sha256":      32,
		"sha512":      64,
		"sha3-256":    32,
		"blake2b-256": 32,
	}

	require.Equal(t, []string{"blake2b-256", "sha256", "sha3-256", "sha512"}, Names())

	seen := make(map[string]string)
	for _, name := range Names() {
		fn, err := Lookup(name)
		require.NoError(t, err, name)

		sum := fn([]byte("HONEY_PATTERN_0_Op_0"))
		assert.Len(t, sum, sizes[name], name)
		assert.Equal(t, sum, fn([]byte("HONEY_PATTERN_0_Op_0")), "%s must be deterministic", name)

		digest := hex.EncodeToString(sum)
		for other, d := range seen {
			assert.NotEqual(t, d, digest, "%s and %s collide", name, other)
		}
		seen[name] = digest
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("md5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "md5")
}
