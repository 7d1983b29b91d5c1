// Package repository provides the gorm-backed organization repository.
package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
)

type repositoryImpl struct {
	db *gorm.DB
}

// New constructs the organization repository.
func New(db *gorm.DB) domain.Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) domain.Repository {
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repositoryImpl) FindBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	var org domain.Organization
	if err := r.db.WithContext(ctx).First(&org, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repositoryImpl) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", id).
		Updates(fields).Error
}
