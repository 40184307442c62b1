package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ATNYCHI-ZERO/hdx-math-core/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario pushes one payload through one pipeline under one
// authorization context and asserts on the output, final state and trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Pipeline is a directory holding a CUE pipeline definition.
	// Relative paths are resolved against the scenario file location.
	// Mutually exclusive with Stages.
	Pipeline string `yaml:"pipeline,omitempty"`

	// Hash selects the decoy hash for inline Stages. Empty means sha256.
	Hash string `yaml:"hash,omitempty"`

	// Stages defines an inline pipeline, in order.
	Stages []StageStep `yaml:"stages,omitempty"`

	// Input is the payload, taken as raw UTF-8 bytes.
	Input string `yaml:"input"`

	// Role is the requester label recorded with the run.
	Role string `yaml:"role"`

	// Credential is checked against the pipeline's verifier.
	Credential string `yaml:"credential"`

	// RunToken is an optional fixed run token. Defaults to
	// testutil.DefaultRunToken so golden snapshots stay stable.
	RunToken string `yaml:"run_token,omitempty"`

	// ExpectState is shorthand for a final_state assertion.
	ExpectState string `yaml:"expect_state,omitempty"`

	// Assertions validate the run. Supported types are listed in the
	// Assert* constants.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// StageStep is one inline stage definition.
type StageStep struct {
	Name     string `yaml:"name"`
	MaxDepth int64  `yaml:"max_depth"`
}

// Assertion validates one property of a run.
type Assertion struct {
	// Type specifies the assertion type (see Assert* constants).
	Type string `yaml:"type"`

	// State is the expected final state label (final_state).
	State string `yaml:"state,omitempty"`

	// Line is a rendered trace line, e.g. "Step 1: DECAY/HONEY"
	// (trace_contains).
	Line string `yaml:"line,omitempty"`

	// Kind selects which records trace_count counts:
	// executed, kill_switch, valid or decay.
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of records (trace_count).
	Count int `yaml:"count,omitempty"`

	// Engaged says whether the kill switch must have fired (kill_switch).
	// Defaults to true.
	Engaged *bool `yaml:"engaged,omitempty"`

	// Index is the stage index the kill switch must fire at (kill_switch).
	Index *int `yaml:"index,omitempty"`

	// Runs is how many extra runs deterministic compares (default 2).
	Runs int `yaml:"runs,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState            = "final_state"
	AssertTraceContains         = "trace_contains"
	AssertTraceCount            = "trace_count"
	AssertKillSwitch            = "kill_switch"
	AssertLengthPreserved       = "length_preserved"
	AssertDiffersFromAuthorized = "differs_from_authorized"
	AssertDeterministic         = "deterministic"
)

// trace_count kinds beyond ir.RecordKind values.
const (
	countValid = "valid"
	countDecay = "decay"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative pipeline path is resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative pipeline path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Pipeline != "" && !filepath.IsAbs(scenario.Pipeline) && basePath != "" {
		scenario.Pipeline = filepath.Join(basePath, scenario.Pipeline)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Pipeline == "" && len(s.Stages) == 0:
		return fmt.Errorf("either pipeline or stages is required")
	case s.Pipeline != "" && len(s.Stages) > 0:
		return fmt.Errorf("pipeline and stages are mutually exclusive")
	case s.Pipeline != "":
		info, err := os.Stat(s.Pipeline)
		if err != nil {
			return fmt.Errorf("pipeline directory not found: %s", s.Pipeline)
		}
		if !info.IsDir() {
			return fmt.Errorf("pipeline is not a directory: %s", s.Pipeline)
		}
	}
	if s.Pipeline != "" && s.Hash != "" {
		return fmt.Errorf("hash applies to inline stages only")
	}

	for i, st := range s.Stages {
		if st.Name == "" {
			return fmt.Errorf("stages[%d]: name is required", i)
		}
	}

	if s.Input == "" {
		return fmt.Errorf("input is required")
	}

	if s.ExpectState != "" {
		if _, err := ir.ParseState(s.ExpectState); err != nil {
			return fmt.Errorf("expect_state: %w", err)
		}
	}

	if len(s.Assertions) == 0 && s.ExpectState == "" {
		return fmt.Errorf("assertions or expect_state is required")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertFinalState:
		if _, err := ir.ParseState(a.State); err != nil {
			return fmt.Errorf("assertions[%d]: final_state: %w", index, err)
		}
	case AssertTraceContains:
		if a.Line == "" {
			return fmt.Errorf("assertions[%d]: line is required for trace_contains", index)
		}
	case AssertTraceCount:
		switch a.Kind {
		case string(ir.KindExecuted), string(ir.KindKillSwitch), countValid, countDecay:
		default:
			return fmt.Errorf("assertions[%d]: unknown trace_count kind %q", index, a.Kind)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertKillSwitch:
		if a.Index != nil && *a.Index < 0 {
			return fmt.Errorf("assertions[%d]: index must be non-negative for kill_switch", index)
		}
	case AssertDeterministic:
		if a.Runs < 0 {
			return fmt.Errorf("assertions[%d]: runs must be non-negative for deterministic", index)
		}
	case AssertLengthPreserved, AssertDiffersFromAuthorized:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
