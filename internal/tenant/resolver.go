// Package tenant resolves a verified credential into an immutable request
// scope.
package tenant

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	authdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/domain"
	orgdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/token"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

// ErrTenantMismatch is returned when the organization in a credential no
// longer matches the user's current organization.
var ErrTenantMismatch = errors.New("tenant mismatch")

// Params defines the dependencies of the tenant resolver.
type Params struct {
	fx.In

	Users authdomain.Repository
	Orgs  orgdomain.Repository
}

// Resolver re-reads the user and organization on every request. Role and
// membership changes therefore take effect on the next request, not at the
// next token refresh.
type Resolver struct {
	users authdomain.Repository
	orgs  orgdomain.Repository
	log   *zap.Logger
	now   func() time.Time
}

// New constructs the tenant resolver.
func New(p Params) *Resolver {
	return &Resolver{
		users: p.Users,
		orgs:  p.Orgs,
		log:   zap.L().Named("tenant.resolver"),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Resolve validates the claim subject against the store and returns the
// scope the request will act under. Checks run in a fixed order: user, user
// active, tenant binding, organization active, subscription current.
func (r *Resolver) Resolve(ctx context.Context, claims *token.Claims) (tenantctx.Scope, error) {
	userID, err := claims.ParsedUserID()
	if err != nil {
		return tenantctx.Scope{}, err
	}
	orgID, err := claims.ParsedOrgID()
	if err != nil {
		return tenantctx.Scope{}, err
	}

	user, err := r.users.FindByID(ctx, userID)
	if err != nil {
		return tenantctx.Scope{}, err
	}
	if !user.IsActive {
		return tenantctx.Scope{}, authdomain.ErrUserInactive
	}
	if user.OrgID != orgID {
		r.log.Warn("credential bound to a stale organization",
			zap.String("user_id", userID.String()),
			zap.String("token_org", orgID.String()),
			zap.String("current_org", user.OrgID.String()),
		)
		return tenantctx.Scope{}, ErrTenantMismatch
	}

	org, err := r.orgs.FindByID(ctx, user.OrgID)
	if err != nil {
		return tenantctx.Scope{}, err
	}
	if !org.IsActive {
		return tenantctx.Scope{}, orgdomain.ErrOrganizationInactive
	}
	if !user.IsSuper && !org.SubscriptionCurrent(r.now()) {
		return tenantctx.Scope{}, orgdomain.ErrSubscriptionSuspended
	}

	return tenantctx.Scope{
		UserID:  user.ID,
		OrgID:   org.ID,
		Role:    string(user.Role),
		IsSuper: user.IsSuper,
		OrgName: org.Name,
		OrgSlug: org.Slug,
		Plan:    org.Plan,
		Status:  org.SubscriptionStatus,
	}, nil
}
