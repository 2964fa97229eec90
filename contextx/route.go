package contextx

import "context"

// RouteUnknown is returned when no route label is present in the context.
// Metrics attributed to it come from callers outside the HTTP/gRPC surfaces.
const RouteUnknown = "unknown"

// WithRoute returns a derived context that carries the metrics route label
// for the current request.
func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey, route)
}

// RouteFromContext extracts the metrics route label stored in ctx. It
// returns [RouteUnknown] when no label is present.
func RouteFromContext(ctx context.Context) string {
	route, _ := ctx.Value(routeKey).(string)
	if route == "" {
		return RouteUnknown
	}
	return route
}
