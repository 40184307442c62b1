// Package authz provides the authorization context a pipeline run is gated
// on.
//
// The pipeline only ever asks one question of a context: Authorized(). How
// that answer is reached is the job of a Verifier, the single integration
// point for a real credential-verification service. StaticVerifier is a
// placeholder fixed-reference check and must be replaced in deployment.
//
// Malformed credentials are rejected with a *ValidationError before a
// Context is built; the pipeline never sees them.
package authz
