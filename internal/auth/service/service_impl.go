// Package service implements registration, login and account lifecycle.
package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/password"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/authz"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/config"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/mailer"
	orgdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/token"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db/pagination"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

const minPasswordLen = 8

// Params defines the dependencies of the auth service.
type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Node   *snowflake.Node
	Users  domain.Repository
	Orgs   orgdomain.Service
	Tokens *token.Service
	Mail   mailer.Provider
}

type serviceImpl struct {
	cfg    config.Config
	db     *gorm.DB
	node   *snowflake.Node
	users  domain.Repository
	orgs   orgdomain.Service
	tokens *token.Service
	mail   mailer.Provider
	log    *zap.Logger
	now    func() time.Time
}

// New constructs the auth service.
func New(p Params) domain.Service {
	return &serviceImpl{
		cfg:    p.Config,
		db:     p.DB,
		node:   p.Node,
		users:  p.Users,
		orgs:   p.Orgs,
		tokens: p.Tokens,
		mail:   p.Mail,
		log:    zap.L().Named("auth.service"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *serviceImpl) Register(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrValidation
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	verifyToken := newOneShotToken()
	verifyExpires := s.now().Add(s.cfg.Token.VerifyTTL)

	var (
		user *domain.User
		org  *orgdomain.Organization
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org, err = s.orgs.Provision(ctx, tx, req.OrganizationName)
		if err != nil {
			return err
		}

		user = &domain.User{
			ID:              s.node.Generate(),
			OrgID:           org.ID,
			Name:            name,
			Email:           email,
			PasswordHash:    hash,
			Role:            authz.RoleAdmin,
			IsActive:        true,
			EmailVerified:   false,
			VerifyToken:     &verifyToken,
			VerifyExpiresAt: &verifyExpires,
		}
		return s.users.WithTx(tx).Create(ctx, user)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}

	s.sendVerification(ctx, user, org, verifyToken)

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	s.log.Info("account registered",
		zap.String("user_id", user.ID.String()),
		zap.String("organization_id", org.ID.String()),
	)
	return &domain.LoginResult{Tokens: *tokens, User: user, Organization: org}, nil
}

func (s *serviceImpl) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	if user.Locked(now) {
		return nil, domain.ErrAccountLocked
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		if err := s.recordFailure(ctx, user, now); err != nil {
			s.log.Warn("failed to persist login failure", zap.Error(err))
		}
		return nil, domain.ErrInvalidCredentials
	}

	org, err := s.orgs.FindByID(ctx, user.OrgID)
	if err != nil {
		return nil, err
	}
	if !org.IsActive {
		return nil, orgdomain.ErrOrganizationInactive
	}

	fields := map[string]any{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login":      now,
	}
	if err := s.users.UpdateFields(ctx, user.ID, fields); err != nil {
		return nil, err
	}
	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastLogin = &now

	tokens, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	s.log.Info("login succeeded",
		zap.String("user_id", user.ID.String()),
		zap.String("organization_id", org.ID.String()),
	)
	return &domain.LoginResult{Tokens: *tokens, User: user, Organization: org}, nil
}

// recordFailure increments the failure counter and arms the lockout window
// once the threshold is reached. The counter lives on the user row so the
// lockout survives a restart.
func (s *serviceImpl) recordFailure(ctx context.Context, user *domain.User, now time.Time) error {
	attempts := user.FailedAttempts + 1
	fields := map[string]any{"failed_attempts": attempts}
	if attempts >= s.cfg.Lockout.MaxFailures {
		until := now.Add(s.cfg.Lockout.Cooldown)
		fields["locked_until"] = until
		s.log.Warn("account locked after repeated failures",
			zap.String("user_id", user.ID.String()),
			zap.Int("attempts", attempts),
			zap.Time("locked_until", until),
		)
	}
	return s.users.UpdateFields(ctx, user.ID, fields)
}

func (s *serviceImpl) Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error) {
	claims, err := s.tokens.Verify(req.RefreshToken, token.TypeRefresh)
	if err != nil {
		return nil, err
	}
	userID, err := claims.ParsedUserID()
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	orgID, err := claims.ParsedOrgID()
	if err != nil {
		return nil, err
	}
	if user.OrgID != orgID {
		return nil, token.ErrTokenIncomplete
	}

	return s.issueTokens(user)
}

func (s *serviceImpl) VerifyEmail(ctx context.Context, rawToken string) error {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return domain.ErrTokenInvalid
	}
	user, err := s.users.FindByVerifyToken(ctx, rawToken)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return domain.ErrTokenInvalid
		}
		return err
	}
	if user.VerifyExpiresAt == nil || s.now().After(*user.VerifyExpiresAt) {
		return domain.ErrTokenInvalid
	}

	return s.users.UpdateFields(ctx, user.ID, map[string]any{
		"email_verified":    true,
		"verify_token":      nil,
		"verify_expires_at": nil,
	})
}

func (s *serviceImpl) ResendVerification(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.ErrInvalidEmail
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		// Do not reveal whether the address exists.
		if err == domain.ErrUserNotFound {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return domain.ErrAlreadyVerified
	}

	verifyToken := newOneShotToken()
	verifyExpires := s.now().Add(s.cfg.Token.VerifyTTL)
	if err := s.users.UpdateFields(ctx, user.ID, map[string]any{
		"verify_token":      verifyToken,
		"verify_expires_at": verifyExpires,
	}); err != nil {
		return err
	}

	org, err := s.orgs.FindByID(ctx, user.OrgID)
	if err != nil {
		return err
	}
	s.sendVerification(ctx, user, org, verifyToken)
	return nil
}

func (s *serviceImpl) ForgotPassword(ctx context.Context, req domain.ForgotPasswordRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		// The endpoint always reports success to avoid account enumeration.
		return nil
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return nil
		}
		return err
	}

	resetToken := newOneShotToken()
	resetExpires := s.now().Add(s.cfg.Token.ResetTTL)
	if err := s.users.UpdateFields(ctx, user.ID, map[string]any{
		"reset_token":      resetToken,
		"reset_expires_at": resetExpires,
	}); err != nil {
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.BaseURL, resetToken)
	if err := s.mail.SendTemplate(ctx, []string{user.Email}, "reset_password", map[string]interface{}{
		"subject": "Restablece tu contraseña",
		"name":    user.Name,
		"link":    link,
		"ttl":     s.cfg.Token.ResetTTL.String(),
	}); err != nil {
		s.log.Warn("failed to send reset email", zap.Error(err))
	}
	return nil
}

func (s *serviceImpl) ResetPassword(ctx context.Context, req domain.ResetPasswordRequest) error {
	if err := checkPassword(req.Password); err != nil {
		return err
	}
	rawToken := strings.TrimSpace(req.Token)
	if rawToken == "" {
		return domain.ErrTokenInvalid
	}

	user, err := s.users.FindByResetToken(ctx, rawToken)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return domain.ErrTokenInvalid
		}
		return err
	}
	if user.ResetExpiresAt == nil || s.now().After(*user.ResetExpiresAt) {
		return domain.ErrTokenInvalid
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return err
	}

	// Consuming the token also clears any brute-force lockout.
	return s.users.UpdateFields(ctx, user.ID, map[string]any{
		"password_hash":    hash,
		"reset_token":      nil,
		"reset_expires_at": nil,
		"failed_attempts":  0,
		"locked_until":     nil,
	})
}

func (s *serviceImpl) Invite(ctx context.Context, scope tenantctx.Scope, req domain.InviteRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrValidation
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}

	inviteToken := newOneShotToken()
	inviteExpires := s.now().Add(s.cfg.Token.InviteTTL)
	actorID := scope.UserID

	user := &domain.User{
		ID:              s.node.Generate(),
		OrgID:           scope.OrgID,
		Name:            name,
		Email:           email,
		PasswordHash:    "",
		Role:            role,
		IsActive:        false,
		EmailVerified:   false,
		VerifyToken:     &inviteToken,
		VerifyExpiresAt: &inviteExpires,
		CreatedBy:       &actorID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}

	link := fmt.Sprintf("%s/activate?token=%s", s.cfg.BaseURL, inviteToken)
	if err := s.mail.SendTemplate(ctx, []string{email}, "invite_member", map[string]interface{}{
		"subject":  fmt.Sprintf("Invitación a %s", scope.OrgName),
		"name":     name,
		"inviter":  scope.OrgName,
		"org_name": scope.OrgName,
		"role":     string(role),
		"link":     link,
		"ttl":      s.cfg.Token.InviteTTL.String(),
	}); err != nil {
		s.log.Warn("failed to send invite email", zap.Error(err))
	}

	s.log.Info("user invited",
		zap.String("user_id", user.ID.String()),
		zap.String("organization_id", scope.OrgID.String()),
		zap.String("role", string(role)),
	)
	return user, nil
}

func (s *serviceImpl) ActivateInvite(ctx context.Context, req domain.ActivateInviteRequest) error {
	if err := checkPassword(req.Password); err != nil {
		return err
	}
	rawToken := strings.TrimSpace(req.Token)
	if rawToken == "" {
		return domain.ErrTokenInvalid
	}

	user, err := s.users.FindByVerifyToken(ctx, rawToken)
	if err != nil {
		if err == domain.ErrUserNotFound {
			return domain.ErrTokenInvalid
		}
		return err
	}
	if user.IsActive {
		return domain.ErrInviteAlreadyUsed
	}
	if user.VerifyExpiresAt == nil || s.now().After(*user.VerifyExpiresAt) {
		return domain.ErrTokenInvalid
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return err
	}

	return s.users.UpdateFields(ctx, user.ID, map[string]any{
		"password_hash":     hash,
		"is_active":         true,
		"email_verified":    true,
		"verify_token":      nil,
		"verify_expires_at": nil,
	})
}

func (s *serviceImpl) ChangeRole(ctx context.Context, scope tenantctx.Scope, target snowflake.ID, role authz.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, authz.ErrUnknownRole
	}
	if err := authz.CheckSelfAction(scope.UserID, target); err != nil {
		return nil, err
	}

	user, err := s.userInScope(ctx, scope, target)
	if err != nil {
		return nil, err
	}

	if user.Role == authz.RoleAdmin && role != authz.RoleAdmin {
		remaining, err := s.users.CountActiveAdmins(ctx, scope.OrgID, user.ID)
		if err != nil {
			return nil, err
		}
		if err := authz.CheckLastAdmin(user.IsActive, remaining); err != nil {
			return nil, err
		}
	}

	if err := s.users.UpdateFields(ctx, user.ID, map[string]any{"role": role}); err != nil {
		return nil, err
	}
	user.Role = role

	s.log.Info("role changed",
		zap.String("user_id", user.ID.String()),
		zap.String("organization_id", scope.OrgID.String()),
		zap.String("role", string(role)),
	)
	return user, nil
}

func (s *serviceImpl) Deactivate(ctx context.Context, scope tenantctx.Scope, target snowflake.ID) error {
	if err := authz.CheckSelfAction(scope.UserID, target); err != nil {
		return err
	}

	user, err := s.userInScope(ctx, scope, target)
	if err != nil {
		return err
	}
	if user.Role == authz.RoleAdmin {
		remaining, err := s.users.CountActiveAdmins(ctx, scope.OrgID, user.ID)
		if err != nil {
			return err
		}
		if err := authz.CheckLastAdmin(user.IsActive, remaining); err != nil {
			return err
		}
	}

	if err := s.users.UpdateFields(ctx, user.ID, map[string]any{"is_active": false}); err != nil {
		return err
	}
	s.log.Info("user deactivated",
		zap.String("user_id", user.ID.String()),
		zap.String("organization_id", scope.OrgID.String()),
	)
	return nil
}

func (s *serviceImpl) GetUser(ctx context.Context, scope tenantctx.Scope, id snowflake.ID) (*domain.User, error) {
	return s.userInScope(ctx, scope, id)
}

func (s *serviceImpl) ListUsers(ctx context.Context, scope tenantctx.Scope, filter domain.ListFilter) ([]*domain.User, *pagination.PageInfo, error) {
	filter.OrgID = scope.OrgID
	return s.users.List(ctx, filter)
}

func (s *serviceImpl) CurrentUser(ctx context.Context, scope tenantctx.Scope) (*domain.User, error) {
	return s.users.FindByID(ctx, scope.UserID)
}

// userInScope loads a user and hides rows belonging to other organizations
// behind a not-found error.
func (s *serviceImpl) userInScope(ctx context.Context, scope tenantctx.Scope, id snowflake.ID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.OrgID != scope.OrgID {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *serviceImpl) issueTokens(user *domain.User) (*domain.TokenPair, error) {
	sub := token.Subject{
		UserID: user.ID,
		OrgID:  user.OrgID,
		Role:   string(user.Role),
		Email:  user.Email,
	}
	access, err := s.tokens.IssueAccess(sub)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(sub)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &domain.TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  now.Add(s.cfg.Token.AccessTTL),
		RefreshExpiresAt: now.Add(s.cfg.Token.RefreshTTL),
	}, nil
}

func (s *serviceImpl) sendVerification(ctx context.Context, user *domain.User, org *orgdomain.Organization, rawToken string) {
	link := fmt.Sprintf("%s/verify-email?token=%s", s.cfg.BaseURL, rawToken)
	if err := s.mail.SendTemplate(ctx, []string{user.Email}, "verify_email", map[string]interface{}{
		"subject":  "Confirma tu correo",
		"name":     user.Name,
		"org_name": org.Name,
		"link":     link,
		"ttl":      s.cfg.Token.VerifyTTL.String(),
	}); err != nil {
		s.log.Warn("failed to send verification email", zap.Error(err))
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", domain.ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

func checkPassword(raw string) error {
	if len(raw) < minPasswordLen {
		return domain.ErrWeakPassword
	}
	return nil
}

// newOneShotToken mints an unguessable single-use token for verification,
// reset and invite links.
func newOneShotToken() string {
	return strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
}
