package testutil

// FixedRunTokens always returns the same run token.
//
// A scenario records exactly one run into its own in-memory store, so a
// constant token keeps run IDs and golden snapshots byte-identical between
// executions.
//
// Thread-safety: FixedRunTokens is stateless and safe for concurrent use.
type FixedRunTokens struct {
	token string
}

// DefaultRunToken is used when a scenario does not name its own token.
const DefaultRunToken = "test-run-default"

// NewFixedRunTokens creates a fixed run token generator.
// If token is empty, Generate() returns DefaultRunToken.
func NewFixedRunTokens(token string) *FixedRunTokens {
	if token == "" {
		token = DefaultRunToken
	}
	return &FixedRunTokens{token: token}
}

// Generate returns the fixed run token.
// Implements recorder.TokenGenerator.
func (g *FixedRunTokens) Generate() string {
	return g.token
}
