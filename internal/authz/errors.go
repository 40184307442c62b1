package authz

import (
	"errors"
	"fmt"
)

// ValidationErrorCode categorizes credential validation errors.
type ValidationErrorCode string

const (
	// ErrCodeMalformedCredential indicates the credential failed format checks.
	ErrCodeMalformedCredential ValidationErrorCode = "MALFORMED_CREDENTIAL"

	// ErrCodeVerifierFailed indicates the verifier itself could not answer.
	ErrCodeVerifierFailed ValidationErrorCode = "VERIFIER_FAILED"
)

// ValidationError is returned when a credential cannot be turned into a
// Context. It never contains the credential itself.
type ValidationError struct {
	Code    ValidationErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError returns true if err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func malformed(format string, args ...any) *ValidationError {
	return &ValidationError{
		Code:    ErrCodeMalformedCredential,
		Message: fmt.Sprintf(format, args...),
	}
}
