package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/compiler"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// LoadResult contains a pipeline loaded from a directory.
type LoadResult struct {
	Spec      *ir.PipelineSpec
	SpecHash  string
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred while loading a pipeline.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPipeline loads and compiles the CUE pipeline in dir.
// Errors are *LoadError. Schema validation is left to the caller.
func LoadPipeline(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("pipeline directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing pipeline directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	spec, err := compiler.LoadDir(dir)
	if err != nil {
		return nil, convertCompileError(err)
	}

	specHash, err := ir.SpecHash(*spec)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	return &LoadResult{
		Spec:      spec,
		SpecHash:  specHash,
		FileCount: len(cueFiles),
	}, nil
}

// FindCUEFiles returns the .cue files directly inside dir.
// Subdirectories are separate CUE packages and are not loaded.
func FindCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: err.Error(),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	ErrCodeNoPipeline   = "E010" // No pipeline struct
	ErrCodeStageShape   = "E011" // Malformed stage entry
	ErrCodeCredential   = "E020" // Missing or malformed credential
	ErrCodeRunNotFound  = "E030" // No run with that token
	ErrCodeReplayFailed = "E031" // Replay diverged from the record
	ErrCodeTestFailed   = "E040" // One or more scenarios failed
	ErrCodeInbox        = "E050" // Inbox or outbox unusable
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "pipeline":
		return ErrCodeNoPipeline
	case field == "stages" || strings.HasPrefix(field, "stages["):
		return ErrCodeStageShape
	case field == "cue":
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}
