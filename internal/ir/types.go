package ir

// PipelineSpec represents a compiled pipeline definition.
type PipelineSpec struct {
	Name   string      `json:"name"`
	Hash   string      `json:"hash"` // Decoy hash algorithm name
	Stages []StageSpec `json:"stages"`
	Auth   AuthSpec    `json:"auth"`
}

// StageSpec represents one stage of a pipeline, in pipeline order.
type StageSpec struct {
	Name     string `json:"name"`
	MaxDepth int64  `json:"max_depth"`
}

// AuthSpec configures credential verification for a pipeline.
// An empty ReferenceDigest selects the placeholder verifier.
type AuthSpec struct {
	ReferenceDigest string `json:"reference_digest,omitempty"` // SHA-256 hex of the credential
}

// RunRecord is the forensic record of one pipeline run (store-layer).
//
// Only digests of the input and output are kept. The run can be verified by
// re-running it against the same input, see recorder.Verify.
type RunRecord struct {
	ID            string        `json:"id"`        // Content-addressed hash
	RunToken      string        `json:"run_token"` // UUIDv7 correlation token
	Seq           int64         `json:"seq"`       // Logical clock
	Role          string        `json:"role"`
	Authorized    bool          `json:"authorized"`
	SpecHash      string        `json:"spec_hash"`
	InputDigest   string        `json:"input_digest"`
	OutputDigest  string        `json:"output_digest"`
	Length        int64         `json:"length"`
	StageCount    int64         `json:"stage_count"`
	State         State         `json:"state"`
	Trace         []TraceRecord `json:"trace"`
	TraceHash     string        `json:"trace_hash"`
	EngineVersion string        `json:"engine_version"`
	IRVersion     string        `json:"ir_version"`
}
