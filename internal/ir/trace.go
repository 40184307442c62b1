package ir

import "fmt"

// RecordKind tags the variant of a TraceRecord.
type RecordKind string

const (
	// KindExecuted records one stage that actually ran.
	KindExecuted RecordKind = "executed"

	// KindKillSwitch records the kill switch engaging. At most one per run.
	KindKillSwitch RecordKind = "kill_switch"
)

// TraceRecord is one entry of a run's execution trace.
//
// It is a tagged variant: Executed{Index, Outcome} or KillSwitch{Index}.
// State is the run state after the record was appended. Trace records are
// diagnostic only; they never carry payload bytes.
type TraceRecord struct {
	Kind    RecordKind `json:"kind"`
	Index   int        `json:"index"`             // Stage index (0-based)
	Outcome Outcome    `json:"outcome,omitempty"` // Empty for kill switch records
	State   State      `json:"state"`
}

// Executed creates a record for a stage that ran.
func Executed(index int, outcome Outcome, state State) TraceRecord {
	return TraceRecord{Kind: KindExecuted, Index: index, Outcome: outcome, State: state}
}

// KillSwitch creates the record appended when the kill switch fires before
// stage index.
func KillSwitch(index int) TraceRecord {
	return TraceRecord{Kind: KindKillSwitch, Index: index, State: StateBlocked}
}

// IsDecay reports whether the record is an executed stage that decayed.
func (r TraceRecord) IsDecay() bool {
	return r.Kind == KindExecuted && r.Outcome == OutcomeDecay
}

// String renders the record in human-readable form:
//
//	Step 0: VALID
//	Step 1: DECAY/HONEY
//	KILL-SWITCH: ENGAGED
func (r TraceRecord) String() string {
	switch r.Kind {
	case KindKillSwitch:
		return "KILL-SWITCH: ENGAGED"
	case KindExecuted:
		if r.Outcome == OutcomeDecay {
			return fmt.Sprintf("Step %d: DECAY/HONEY", r.Index)
		}
		return fmt.Sprintf("Step %d: %s", r.Index, r.Outcome)
	default:
		return fmt.Sprintf("unknown record %q", string(r.Kind))
	}
}

// CanonicalMap converts the record to a map for canonical JSON.
func (r TraceRecord) CanonicalMap() map[string]any {
	m := map[string]any{
		"kind":  string(r.Kind),
		"index": r.Index,
		"state": r.State.String(),
	}
	if r.Outcome != "" {
		m["outcome"] = string(r.Outcome)
	}
	return m
}

// TraceLines renders every record with String.
func TraceLines(trace []TraceRecord) []string {
	lines := make([]string, len(trace))
	for i, r := range trace {
		lines[i] = r.String()
	}
	return lines
}

// CountKind returns how many records of the given kind the trace contains.
func CountKind(trace []TraceRecord, kind RecordKind) int {
	n := 0
	for _, r := range trace {
		if r.Kind == kind {
			n++
		}
	}
	return n
}
