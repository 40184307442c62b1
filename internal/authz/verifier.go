package authz

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// PlaceholderReference is the fixed reference credential accepted by the
// placeholder verifier. It exists for local use and tests only.
const PlaceholderReference = "SECURE_ROOT_KEY_99X"

// Verifier answers whether a well-formed credential is valid.
// Implementations wrap a real secret-management service.
type Verifier interface {
	Verify(credential string) (bool, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(credential string) (bool, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(credential string) (bool, error) {
	return f(credential)
}

// StaticVerifier compares the credential against a fixed reference value.
type StaticVerifier struct {
	reference []byte
}

// NewStaticVerifier creates a verifier for the given reference credential.
func NewStaticVerifier(reference string) *StaticVerifier {
	return &StaticVerifier{reference: []byte(reference)}
}

// Placeholder returns the StaticVerifier for PlaceholderReference.
func Placeholder() *StaticVerifier {
	return NewStaticVerifier(PlaceholderReference)
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(credential string) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(credential), v.reference) == 1, nil
}

// DigestVerifier compares the SHA-256 digest of the credential against a
// reference digest, so configuration never holds the secret itself.
type DigestVerifier struct {
	reference []byte
}

// NewDigestVerifier parses a 64 character hex SHA-256 digest.
func NewDigestVerifier(hexDigest string) (*DigestVerifier, error) {
	ref, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(hexDigest)))
	if err != nil {
		return nil, fmt.Errorf("reference digest: %w", err)
	}
	if len(ref) != sha256.Size {
		return nil, fmt.Errorf("reference digest: want %d bytes, got %d", sha256.Size, len(ref))
	}
	return &DigestVerifier{reference: ref}, nil
}

// Verify implements Verifier.
func (v *DigestVerifier) Verify(credential string) (bool, error) {
	sum := sha256.Sum256([]byte(credential))
	return subtle.ConstantTimeCompare(sum[:], v.reference) == 1, nil
}
