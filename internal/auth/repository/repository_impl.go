// Package repository provides the gorm-backed user repository.
package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/authz"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db/pagination"
)

type repositoryImpl struct {
	db *gorm.DB
}

// New constructs the user repository.
func New(db *gorm.DB) domain.Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) domain.Repository {
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, user *domain.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *repositoryImpl) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *repositoryImpl) FindByVerifyToken(ctx context.Context, token string) (*domain.User, error) {
	return r.findOne(ctx, "verify_token = ?", token)
}

func (r *repositoryImpl) FindByResetToken(ctx context.Context, token string) (*domain.User, error) {
	return r.findOne(ctx, "reset_token = ?", token)
}

func (r *repositoryImpl) findOne(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repositoryImpl) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	// The user-to-organization binding is immutable for the lifetime of the
	// account. Moving records between tenants happens through export/import,
	// never by rewriting the binding.
	if _, ok := fields["org_id"]; ok {
		return domain.ErrTenantReassign
	}
	return r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *repositoryImpl) List(ctx context.Context, filter domain.ListFilter) ([]*domain.User, *pagination.PageInfo, error) {
	limit := filter.Pagination.PageSize
	if limit <= 0 {
		limit = 50
	}

	q := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("organization_id = ?", filter.OrgID)
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if filter.Pagination.PageToken != "" {
		cursor, err := pagination.DecodeCursor(filter.Pagination.PageToken)
		if err != nil {
			return nil, nil, err
		}
		after, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, nil, err
		}
		q = q.Where("id > ?", after)
	}

	var users []*domain.User
	if err := q.Order("id ASC").Limit(limit + 1).Find(&users).Error; err != nil {
		return nil, nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(users, limit, func(u *domain.User) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{ID: u.ID.String()})
		return token
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, pageInfo, nil
}

func (r *repositoryImpl) CountActiveAdmins(ctx context.Context, orgID snowflake.ID, excluding snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("organization_id = ? AND role = ? AND is_active = ? AND id <> ?",
			orgID, authz.RoleAdmin, true, excluding).
		Count(&count).Error
	return count, err
}
