package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// CompilePipeline parses a CUE value into a PipelineSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the pipeline struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`pipeline: hdx: { stages: [...] }`)
//	spec, err := CompilePipeline(v.LookupPath(cue.ParsePath("pipeline.hdx")))
//
// CompilePipeline only checks shape. Call ValidatePipeline for the
// semantic rules.
func CompilePipeline(v cue.Value) (*ir.PipelineSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.PipelineSpec{}

	// Pipeline name comes from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	hashVal := v.LookupPath(cue.ParsePath("hash"))
	if hashVal.Exists() {
		hash, err := hashVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Hash = hash
	}

	digestVal := v.LookupPath(cue.ParsePath("auth.reference_digest"))
	if digestVal.Exists() {
		digest, err := digestVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		spec.Auth.ReferenceDigest = digest
	}

	stages, err := parseStages(v)
	if err != nil {
		return nil, err
	}
	spec.Stages = stages

	return spec, nil
}

// parseStages extracts the ordered stage list.
func parseStages(v cue.Value) ([]ir.StageSpec, error) {
	stagesVal := v.LookupPath(cue.ParsePath("stages"))
	if !stagesVal.Exists() {
		return nil, &CompileError{
			Field:   "stages",
			Message: "stages are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := stagesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var stages []ir.StageSpec
	for i := 0; iter.Next(); i++ {
		stageVal := iter.Value()

		nameVal := stageVal.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("stages[%d].name", i),
				Message: "stage name is required",
				Pos:     stageVal.Pos(),
			}
		}
		name, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}

		depthVal := stageVal.LookupPath(cue.ParsePath("max_depth"))
		if !depthVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("stages[%d].max_depth", i),
				Message: "stage max_depth is required",
				Pos:     stageVal.Pos(),
			}
		}
		if k := depthVal.IncompleteKind(); k != cue.IntKind {
			return nil, &CompileError{
				Field:   fmt.Sprintf("stages[%d].max_depth", i),
				Message: fmt.Sprintf("max_depth must be an int, got %v", k),
				Pos:     depthVal.Pos(),
			}
		}
		depth, err := depthVal.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}

		stages = append(stages, ir.StageSpec{Name: name, MaxDepth: depth})
	}

	return stages, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
