package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db/pagination"
)

// ListFilter narrows a tenant-scoped user listing.
type ListFilter struct {
	OrgID      snowflake.ID
	Role       string
	ActiveOnly bool
	Pagination pagination.Pagination
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByVerifyToken(ctx context.Context, token string) (*User, error)
	FindByResetToken(ctx context.Context, token string) (*User, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
	List(ctx context.Context, filter ListFilter) ([]*User, *pagination.PageInfo, error)
	CountActiveAdmins(ctx context.Context, orgID snowflake.ID, excluding snowflake.ID) (int64, error)
}
