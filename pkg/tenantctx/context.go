// Package tenantctx carries the resolved tenant scope through a request.
package tenantctx

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Scope is the immutable identity a request acts under once the tenant
// resolver has validated the caller. Every tenant-scoped query must take its
// organization ID from here, never from client input.
type Scope struct {
	UserID  snowflake.ID
	OrgID   snowflake.ID
	Role    string
	IsSuper bool

	OrgName string
	OrgSlug string
	Plan    string
	Status  string
}

type scopeKey struct{}

// WithScope stores the resolved scope in the context.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// FromContext returns the scope bound to the request, if any.
func FromContext(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	scope, ok := ctx.Value(scopeKey{}).(Scope)
	return scope, ok
}

// OrgIDFromContext returns the active organization ID, if a scope is bound.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	scope, ok := FromContext(ctx)
	if !ok || scope.OrgID == 0 {
		return 0, false
	}
	return scope.OrgID, true
}
