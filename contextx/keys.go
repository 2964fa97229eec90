// Package contextx carries per-request values (request ID, metrics route
// label) through a context.Context without exposing the key types.
package contextx

// contextKey is an unexported type used as context key to avoid collisions
// with keys defined in other packages.
type contextKey int

const (
	requestIDKey contextKey = iota
	routeKey
)
