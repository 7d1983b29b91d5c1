// Package seed creates the bootstrap organization and platform admin for
// self-hosted deployments.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/password"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/authz"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/config"
	orgdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
)

// EnsureBootstrap creates the configured organization and super admin when
// they do not exist yet. With no bootstrap configuration it is a no-op; the
// first registered account becomes its organization's admin instead.
func EnsureBootstrap(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	orgName := strings.TrimSpace(cfg.BootstrapOrgName)
	adminEmail := strings.ToLower(strings.TrimSpace(cfg.BootstrapAdminEmail))
	if orgName == "" || adminEmail == "" {
		return nil
	}
	adminPassword := cfg.BootstrapAdminPassword
	if adminPassword == "" {
		return errors.New("bootstrap admin password is required when bootstrap is configured")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err := ensureOrgTx(ctx, tx, node, orgName)
		if err != nil {
			return err
		}
		return ensureAdminTx(ctx, tx, node, org, adminEmail, adminPassword)
	})
}

func ensureOrgTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, name string) (*orgdomain.Organization, error) {
	orgSlug := slug.Make(name)

	var org orgdomain.Organization
	err := tx.WithContext(ctx).Where("slug = ?", orgSlug).First(&org).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	org = orgdomain.Organization{
		ID:                 node.Generate(),
		Name:               name,
		Slug:               orgSlug,
		IsActive:           true,
		Plan:               orgdomain.PlanPremium,
		SubscriptionStatus: orgdomain.StatusActive,
	}
	if err := tx.WithContext(ctx).Create(&org).Error; err != nil {
		return nil, err
	}
	zap.L().Named("seed").Info("bootstrap organization created", zap.String("slug", orgSlug))
	return &org, nil
}

func ensureAdminTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, org *orgdomain.Organization, email, rawPassword string) error {
	var user authdomain.User
	err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := password.Hash(rawPassword)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	user = authdomain.User{
		ID:            node.Generate(),
		OrgID:         org.ID,
		Name:          "Administrator",
		Email:         email,
		PasswordHash:  hashed,
		Role:          authz.RoleAdmin,
		IsActive:      true,
		IsSuper:       true,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
		return err
	}
	zap.L().Named("seed").Info("bootstrap admin created", zap.String("email", email))
	return nil
}
