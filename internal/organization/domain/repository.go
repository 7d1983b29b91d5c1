package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository abstracts organization persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindBySlug(ctx context.Context, slug string) (*Organization, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]interface{}) error
}
