package authz

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxCredentialLength bounds the size of a credential in bytes.
const MaxCredentialLength = 256

// Authorizer is the capability a pipeline run is gated on.
type Authorizer interface {
	Authorized() bool
}

// Context pairs a role label with a validity flag computed once at
// construction. It is immutable and never re-validates.
type Context struct {
	role       string
	credential string
	valid      bool
}

// New checks the credential format, asks v whether the credential is valid
// and returns the resulting Context.
//
// The credential is NFC-normalised before the format check, so the length
// limit applies to what the verifier sees. A nil v selects Placeholder().
//
// Returns *ValidationError for malformed credentials or verifier failures.
// An invalid but well-formed credential is NOT an error; it yields a Context
// whose Authorized() is false.
func New(role, credential string, v Verifier) (*Context, error) {
	if v == nil {
		v = Placeholder()
	}
	if !utf8.ValidString(credential) {
		return nil, malformed("credential is not valid UTF-8")
	}
	credential = norm.NFC.String(credential)
	if err := CheckFormat(credential); err != nil {
		return nil, err
	}

	ok, err := v.Verify(credential)
	if err != nil {
		return nil, &ValidationError{
			Code:    ErrCodeVerifierFailed,
			Message: "credential verification failed",
			Err:     err,
		}
	}

	return &Context{role: role, credential: credential, valid: ok}, nil
}

// Granted returns an authorized Context for callers that verified the
// credential elsewhere.
func Granted(role string) *Context {
	return &Context{role: role, valid: true}
}

// Denied returns an unauthorized Context.
func Denied(role string) *Context {
	return &Context{role: role}
}

// Role returns the role label.
func (c *Context) Role() string {
	return c.role
}

// Authorized implements Authorizer.
func (c *Context) Authorized() bool {
	return c.valid
}

// String never includes the credential.
func (c *Context) String() string {
	return fmt.Sprintf("Context{role=%q, authorized=%t}", c.role, c.valid)
}

// CheckFormat rejects credentials that are empty, longer than
// MaxCredentialLength, not valid UTF-8 or that contain control characters.
func CheckFormat(credential string) error {
	if credential == "" {
		return malformed("credential is empty")
	}
	if len(credential) > MaxCredentialLength {
		return malformed("credential exceeds %d bytes", MaxCredentialLength)
	}
	if !utf8.ValidString(credential) {
		return malformed("credential is not valid UTF-8")
	}
	for i, r := range credential {
		if unicode.IsControl(r) {
			return malformed("credential contains control character at byte %d", i)
		}
	}
	return nil
}
