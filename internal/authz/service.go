package authz

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectUser         = "user"
	ObjectOrganization = "organization"
	ObjectAuditLog     = "audit_log"
	ObjectRecord       = "record"
)

const (
	ActionUserView       = "user.view"
	ActionUserInvite     = "user.invite"
	ActionUserRemove     = "user.remove"
	ActionUserChangeRole = "user.change_role"

	ActionOrganizationView   = "organization.view"
	ActionOrganizationUpdate = "organization.update"

	ActionAuditLogView   = "audit_log.view"
	ActionAuditLogExport = "audit_log.export"

	ActionRecordView   = "record.view"
	ActionRecordCreate = "record.create"
	ActionRecordUpdate = "record.update"
	ActionRecordDelete = "record.delete"
)

var (
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidActor = errors.New("invalid_actor")
)

// Service answers role/permission questions for a resolved tenant scope.
type Service interface {
	Authorize(ctx context.Context, scope tenantctx.Scope, object string, action string) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer builds the casbin enforcer with the seeded role decision table.
// Every permission rule lives in seedPolicies; handlers never compare role
// strings directly.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authz.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize enforces the role decision table for the scope's organization.
// Super-admins bypass the table but never the tenant binding that produced
// the scope.
func (s *ServiceImpl) Authorize(ctx context.Context, scope tenantctx.Scope, object string, action string) error {
	_ = ctx
	if scope.UserID == 0 || scope.OrgID == 0 {
		return ErrInvalidActor
	}

	if scope.IsSuper {
		return nil
	}

	role, err := ParseRole(scope.Role)
	if err != nil {
		return ErrForbidden
	}

	subject := fmt.Sprintf("user:%s", scope.UserID.String())
	domain := fmt.Sprintf("org:%s", scope.OrgID.String())
	roleName := fmt.Sprintf("role:%s", role)

	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, strings.TrimSpace(object), strings.TrimSpace(action))
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		_, _ = s.enforcer.RemoveGroupingPolicy(params...)
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Read-only members
		{"role:readonly", ObjectRecord, ActionRecordView},
		{"role:readonly", ObjectOrganization, ActionOrganizationView},

		// Regular members
		{"role:user", ObjectRecord, ActionRecordView},
		{"role:user", ObjectRecord, ActionRecordCreate},
		{"role:user", ObjectRecord, ActionRecordUpdate},
		{"role:user", ObjectRecord, ActionRecordDelete},
		{"role:user", ObjectOrganization, ActionOrganizationView},

		// Organization administrators
		{"role:admin", ObjectRecord, ActionRecordView},
		{"role:admin", ObjectRecord, ActionRecordCreate},
		{"role:admin", ObjectRecord, ActionRecordUpdate},
		{"role:admin", ObjectRecord, ActionRecordDelete},
		{"role:admin", ObjectOrganization, ActionOrganizationView},
		{"role:admin", ObjectOrganization, ActionOrganizationUpdate},
		{"role:admin", ObjectUser, ActionUserView},
		{"role:admin", ObjectUser, ActionUserInvite},
		{"role:admin", ObjectUser, ActionUserRemove},
		{"role:admin", ObjectUser, ActionUserChangeRole},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},
		{"role:admin", ObjectAuditLog, ActionAuditLogExport},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
