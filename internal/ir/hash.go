package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRun   = "hdx/run/v1"
	DomainSpec  = "hdx/spec/v1"
	DomainTrace = "hdx/trace/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the plain SHA-256 hex digest of b. Used for payload
// fingerprints in run records.
func Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// SpecHash computes the content hash of a compiled pipeline.
// Two specs with the same name, hash algorithm, stages and auth settings
// hash identically regardless of source formatting.
func SpecHash(spec PipelineSpec) (string, error) {
	stages := make([]any, len(spec.Stages))
	for i, st := range spec.Stages {
		stages[i] = map[string]any{
			"name":      st.Name,
			"max_depth": st.MaxDepth,
		}
	}
	obj := map[string]any{
		"name":   spec.Name,
		"hash":   spec.Hash,
		"stages": stages,
		"auth": map[string]any{
			"reference_digest": spec.Auth.ReferenceDigest,
		},
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SpecHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

// TraceHash computes the content hash of an execution trace.
func TraceHash(trace []TraceRecord) (string, error) {
	records := make([]any, len(trace))
	for i, r := range trace {
		records[i] = r.CanonicalMap()
	}

	canonical, err := MarshalCanonical(records)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// RunID computes the content-addressed ID of a recorded run.
// The ID is stable across restarts given the same inputs.
//
// Authorization is intentionally EXCLUDED from RunID. The ID identifies
// "which payload went through which pipeline", not "who asked".
func RunID(runToken, specHash, inputDigest string, seq int64) (string, error) {
	obj := map[string]any{
		"run_token":    runToken,
		"spec_hash":    specHash,
		"input_digest": inputDigest,
		"seq":          seq,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RunID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRun, canonical), nil
}

// MustSpecHash is like SpecHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustSpecHash(spec PipelineSpec) string {
	h, err := SpecHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}

// MustRunID is like RunID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRunID(runToken, specHash, inputDigest string, seq int64) string {
	id, err := RunID(runToken, specHash, inputDigest, seq)
	if err != nil {
		panic(err)
	}
	return id
}
