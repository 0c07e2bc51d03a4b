package obs

import "context"

type routePatternKey struct{}

// WithRoutePattern stores the matched router pattern on the context. It is
// set once per request by RoutePatternMiddleware and read by the metrics,
// tracing and audit layers.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns the stored pattern, or "" outside a routed
// request.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok {
		return v
	}
	return ""
}
