package common

import (
	"context"

	"github.com/google/uuid"
)

type routeTagKey struct{}

// WithRouteTag stores the request-scoped route tag in the context. The tag
// flows into provider telemetry so one user action can be traced across the
// tasks it triggered.
func WithRouteTag(ctx context.Context, tag string) context.Context {
	return context.WithValue(ctx, routeTagKey{}, tag)
}

// RouteTag returns the route tag from the context, or "" when absent.
func RouteTag(ctx context.Context) string {
	if tag, ok := ctx.Value(routeTagKey{}).(string); ok {
		return tag
	}
	return ""
}

// NewRouteTag mints a fresh route tag for requests that did not supply one.
func NewRouteTag() string {
	return "req_" + uuid.New().String()[:8]
}
