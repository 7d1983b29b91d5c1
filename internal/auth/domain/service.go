package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/authz"
	orgdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db/pagination"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

type RegisterRequest struct {
	Name             string `json:"name" binding:"required"`
	Email            string `json:"email" binding:"required"`
	Password         string `json:"password" binding:"required"`
	OrganizationName string `json:"organization_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type InviteRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required"`
	Role  string `json:"role" binding:"required"`
}

type ActivateInviteRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// TokenPair is the credential set returned from login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginResult bundles tokens with the authenticated user and organization.
type LoginResult struct {
	Tokens       TokenPair               `json:"tokens"`
	User         *User                   `json:"user"`
	Organization *orgdomain.Organization `json:"organization"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResult, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Refresh(ctx context.Context, req RefreshRequest) (*TokenPair, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	Invite(ctx context.Context, scope tenantctx.Scope, req InviteRequest) (*User, error)
	ActivateInvite(ctx context.Context, req ActivateInviteRequest) error
	ChangeRole(ctx context.Context, scope tenantctx.Scope, target snowflake.ID, role authz.Role) (*User, error)
	Deactivate(ctx context.Context, scope tenantctx.Scope, target snowflake.ID) error
	GetUser(ctx context.Context, scope tenantctx.Scope, id snowflake.ID) (*User, error)
	ListUsers(ctx context.Context, scope tenantctx.Scope, filter ListFilter) ([]*User, *pagination.PageInfo, error)
	CurrentUser(ctx context.Context, scope tenantctx.Scope) (*User, error)
}
