package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

// UpdateRequest carries the mutable organization settings.
type UpdateRequest struct {
	Name *string `json:"name,omitempty"`
}

// ChangePlanRequest moves an organization onto a different plan.
type ChangePlanRequest struct {
	Plan string `json:"plan"`
}

// Service exposes tenant-scoped organization operations. Provision runs
// inside the caller's transaction so registration creates the organization
// and its first admin atomically.
type Service interface {
	Provision(ctx context.Context, tx *gorm.DB, name string) (*Organization, error)
	Get(ctx context.Context, scope tenantctx.Scope) (*Organization, error)
	Update(ctx context.Context, scope tenantctx.Scope, req UpdateRequest) (*Organization, error)
	ChangePlan(ctx context.Context, scope tenantctx.Scope, req ChangePlanRequest) (*Organization, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
}
