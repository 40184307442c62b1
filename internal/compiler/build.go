package compiler

import (
	"errors"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/engine"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/hashalg"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// Build validates spec and constructs the engine pipeline it describes.
// Every stage shares the pipeline's decoy hash.
func Build(spec *ir.PipelineSpec, opts ...engine.Option) (*engine.Pipeline, error) {
	if verrs := ValidatePipeline(spec); len(verrs) > 0 {
		errs := make([]error, len(verrs))
		for i, e := range verrs {
			errs[i] = e
		}
		return nil, errors.Join(errs...)
	}

	hash, err := hashalg.Lookup(spec.Hash)
	if err != nil {
		return nil, err
	}

	stages := make([]engine.Stage, len(spec.Stages))
	for i, st := range spec.Stages {
		stages[i] = engine.NewStage(st.Name, int(st.MaxDepth), engine.WithHash(hash))
	}
	return engine.New(stages, opts...), nil
}

// NewVerifier returns the credential verifier configured by spec: a digest
// verifier when a reference digest is set, otherwise the placeholder.
func NewVerifier(spec *ir.PipelineSpec) (authz.Verifier, error) {
	if spec.Auth.ReferenceDigest == "" {
		return authz.Placeholder(), nil
	}
	return authz.NewDigestVerifier(spec.Auth.ReferenceDigest)
}
