package engine

import (
	"strconv"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/authz"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/field"
	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/hashalg"
)

// twistPattern is XOR-mixed into the field after inversion on the
// transform path.
var twistPattern = []byte{0xAA, 0x55}

// decoyLabel prefixes the seed of every decoy pattern.
const decoyLabel = "HONEY_PATTERN_"

// Stage is one operator in the pipeline.
//
// A Stage is stateless: Execute's result is a pure function of the field,
// depth and authorization plus the stage's name, max depth and hash.
type Stage struct {
	name     string
	maxDepth int
	hash     hashalg.Func
}

// StageOption configures a Stage.
type StageOption func(*Stage)

// WithHash sets the one-way hash used for decoy synthesis.
// Default: hashalg.SHA256.
func WithHash(fn hashalg.Func) StageOption {
	return func(s *Stage) {
		if fn != nil {
			s.hash = fn
		}
	}
}

// NewStage creates a stage. name seeds decoy generation; depths above
// maxDepth are treated as unauthorized.
func NewStage(name string, maxDepth int, opts ...StageOption) Stage {
	s := Stage{
		name:     name,
		maxDepth: maxDepth,
		hash:     hashalg.SHA256,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Name returns the stage name.
func (s Stage) Name() string {
	return s.name
}

// MaxDepth returns the depth budget of the stage.
func (s Stage) MaxDepth() int {
	return s.maxDepth
}

// Execute mutates f in place and reports whether the decay path was taken.
//
// Decision rule, first match wins:
//  1. unauthorized OR depth > max depth: decay
//  2. otherwise: transform
func (s Stage) Execute(f *field.Field, depth int, auth authz.Authorizer) (*field.Field, bool) {
	if !auth.Authorized() || depth > s.maxDepth {
		return s.decay(f, depth), true
	}
	return s.transform(f), false
}

// transform inverts every byte then mixes in the fixed twist pattern.
func (s Stage) transform(f *field.Field) *field.Field {
	f.Invert()
	f.XORMix(twistPattern)
	return f
}

// decay mixes in a pattern derived one-way from (depth, name).
func (s Stage) decay(f *field.Field, depth int) *field.Field {
	f.XORMix(s.DecoyPattern(depth))
	return f
}

// DecoyPattern returns the pattern decay mixes in at the given depth:
// hash("HONEY_PATTERN_" + depth + "_" + name).
func (s Stage) DecoyPattern(depth int) []byte {
	seed := decoyLabel + strconv.Itoa(depth) + "_" + s.name
	return s.hash([]byte(seed))
}
