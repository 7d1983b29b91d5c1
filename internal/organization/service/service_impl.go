// Package service implements the organization service.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

// Params defines the dependencies of the organization service.
type Params struct {
	fx.In

	Node *snowflake.Node
	Repo domain.Repository
}

type serviceImpl struct {
	node *snowflake.Node
	repo domain.Repository
	log  *zap.Logger
	now  func() time.Time
}

// New constructs the organization service.
func New(p Params) domain.Service {
	return &serviceImpl{
		node: p.Node,
		repo: p.Repo,
		log:  zap.L().Named("organization.service"),
		now:  time.Now,
	}
}

// slugAttempts bounds the collision retry loop; beyond this we fall back to
// the snowflake id, which cannot collide.
const slugAttempts = 3

func (s *serviceImpl) Provision(ctx context.Context, tx *gorm.DB, name string) (*domain.Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	repo := s.repo.WithTx(tx)
	base := slug.Make(name)
	if base == "" {
		return nil, domain.ErrInvalidName
	}

	org := &domain.Organization{
		ID:                 s.node.Generate(),
		Name:               name,
		Slug:               base,
		IsActive:           true,
		Plan:               domain.PlanFree,
		SubscriptionStatus: domain.StatusTrial,
	}
	for attempt := 0; ; attempt++ {
		if _, err := repo.FindBySlug(ctx, org.Slug); err == domain.ErrOrganizationNotFound {
			break
		} else if err != nil {
			return nil, err
		}
		if attempt >= slugAttempts {
			org.Slug = fmt.Sprintf("%s-%s", base, org.ID)
			break
		}
		org.Slug = fmt.Sprintf("%s-%d", base, attempt+2)
	}

	if err := repo.Create(ctx, org); err != nil {
		return nil, err
	}

	s.log.Info("organization provisioned",
		zap.String("organization_id", org.ID.String()),
		zap.String("slug", org.Slug),
	)
	return org, nil
}

func (s *serviceImpl) Get(ctx context.Context, scope tenantctx.Scope) (*domain.Organization, error) {
	return s.repo.FindByID(ctx, scope.OrgID)
}

func (s *serviceImpl) FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *serviceImpl) Update(ctx context.Context, scope tenantctx.Scope, req domain.UpdateRequest) (*domain.Organization, error) {
	fields := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if len(fields) > 0 {
		fields["updated_at"] = s.now().UTC()
		if err := s.repo.UpdateFields(ctx, scope.OrgID, fields); err != nil {
			return nil, err
		}
	}
	return s.repo.FindByID(ctx, scope.OrgID)
}

func (s *serviceImpl) ChangePlan(ctx context.Context, scope tenantctx.Scope, req domain.ChangePlanRequest) (*domain.Organization, error) {
	switch req.Plan {
	case domain.PlanFree, domain.PlanBasic, domain.PlanPremium:
	default:
		return nil, domain.ErrInvalidPlan
	}
	fields := map[string]interface{}{
		"plan":                req.Plan,
		"subscription_status": domain.StatusActive,
		"updated_at":          s.now().UTC(),
	}
	if err := s.repo.UpdateFields(ctx, scope.OrgID, fields); err != nil {
		return nil, err
	}
	s.log.Info("plan changed",
		zap.String("organization_id", scope.OrgID.String()),
		zap.String("plan", req.Plan),
	)
	return s.repo.FindByID(ctx, scope.OrgID)
}
