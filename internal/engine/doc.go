// Package engine implements the hdx transform pipeline.
//
// A Pipeline owns an ordered list of Stages. Each run wraps the input in a
// field.Field and threads it through the stages in order; every stage either
// applies the authorized transform or decays the field with a deterministic
// decoy pattern.
//
// ARCHITECTURE:
//
// Synchronous, single run loop:
// Each stage's output field is the exclusive input to the next, so there is
// no parallelism inside a run. Run never blocks, never performs I/O and never
// returns an error. Every combination of authorization and depth is absorbed
// into the deception state machine.
//
// Deception state machine:
//
//	NORMAL --decoy--> HONEY --kill switch--> BLOCKED
//
// The state is a local value of Run, never stored on the Pipeline. A
// Pipeline is immutable after New and safe for concurrent runs.
//
// Kill switch:
// Before stage i of n runs, if the state is HONEY and i > n-2, the run is
// BLOCKED and stops without invoking the remaining stages. For n = 1 the
// check can never fire (the state is still NORMAL at index 0).
//
// Decoy output is deterministic given (stage name, depth), has the same
// length as the real output and carries no structural marker, so a
// shape-based observer cannot tell the two apart.
package engine
