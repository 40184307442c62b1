package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// LoadDir loads the CUE package in dir and compiles the single pipeline it
// defines under the top-level "pipeline" struct.
func LoadDir(dir string) (*ir.PipelineSpec, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	return CompileValue(value)
}

// CompileValue compiles the single pipeline defined under value's
// top-level "pipeline" struct.
func CompileValue(value cue.Value) (*ir.PipelineSpec, error) {
	pipelinesVal := value.LookupPath(cue.ParsePath("pipeline"))
	if !pipelinesVal.Exists() {
		return nil, &CompileError{
			Field:   "pipeline",
			Message: "no pipeline defined",
			Pos:     value.Pos(),
		}
	}

	iter, err := pipelinesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var pipelines []cue.Value
	for iter.Next() {
		pipelines = append(pipelines, iter.Value())
	}

	switch len(pipelines) {
	case 0:
		return nil, &CompileError{
			Field:   "pipeline",
			Message: "no pipeline defined",
			Pos:     pipelinesVal.Pos(),
		}
	case 1:
		return CompilePipeline(pipelines[0])
	default:
		return nil, &CompileError{
			Field:   "pipeline",
			Message: fmt.Sprintf("exactly one pipeline per directory, found %d", len(pipelines)),
			Pos:     pipelines[1].Pos(),
		}
	}
}
