package compiler

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/hashalg"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrPipelineNameEmpty   = "E101" // pipeline name is required
	ErrPipelineNoStages    = "E102" // at least one stage required
	ErrStageNameEmpty      = "E103" // stage name is required
	ErrDuplicateStageName  = "E104" // stage names must be unique
	ErrNegativeMaxDepth    = "E105" // max_depth must be >= 0
	ErrUnknownHash         = "E106" // unknown decoy hash algorithm
	ErrInvalidReferenceKey = "E107" // reference digest is not 64 hex chars
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidatePipeline validates a compiled pipeline against schema rules.
// Returns all errors found (does not fail-fast).
func ValidatePipeline(spec *ir.PipelineSpec) []ValidationError {
	var errs []ValidationError

	// E101
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "pipeline name is required and must be non-empty",
			Code:    ErrPipelineNameEmpty,
		})
	}

	// E102
	if len(spec.Stages) == 0 {
		errs = append(errs, ValidationError{
			Field:   "stages",
			Message: "at least one stage is required",
			Code:    ErrPipelineNoStages,
		})
	}

	names := make(map[string]bool)
	for i, st := range spec.Stages {
		field := fmt.Sprintf("stages[%d]", i)

		if strings.TrimSpace(st.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "stage name is required and must be non-empty",
				Code:    ErrStageNameEmpty,
			})
		} else if names[st.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate stage name: %q", st.Name),
				Code:    ErrDuplicateStageName,
			})
		}
		names[st.Name] = true

		if st.MaxDepth < 0 {
			errs = append(errs, ValidationError{
				Field:   field + ".max_depth",
				Message: fmt.Sprintf("max_depth must be >= 0, got %d", st.MaxDepth),
				Code:    ErrNegativeMaxDepth,
			})
		}
	}

	if _, err := hashalg.Lookup(spec.Hash); err != nil {
		errs = append(errs, ValidationError{
			Field:   "hash",
			Message: fmt.Sprintf("unknown hash %q, must be one of %s", spec.Hash, strings.Join(hashalg.Names(), ", ")),
			Code:    ErrUnknownHash,
		})
	}

	if d := spec.Auth.ReferenceDigest; d != "" && !isSHA256Hex(d) {
		errs = append(errs, ValidationError{
			Field:   "auth.reference_digest",
			Message: "reference digest must be 64 lowercase hex characters",
			Code:    ErrInvalidReferenceKey,
		})
	}

	return errs
}

func isSHA256Hex(s string) bool {
	if len(s) != 64 || strings.ToLower(s) != s {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
