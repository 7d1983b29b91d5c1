package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/domain"
	authrepo "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/repository"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/authz"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/config"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/mailer"
	orgdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
	orgrepo "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/repository"
	orgservice "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/service"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/token"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

func testConfig() config.Config {
	return config.Config{
		BaseURL: "http://localhost:3000",
		Token: config.TokenConfig{
			AccessSecret:  "access-secret-for-tests",
			RefreshSecret: "refresh-secret-for-tests",
			AccessTTL:     time.Hour,
			RefreshTTL:    24 * time.Hour,
			VerifyTTL:     24 * time.Hour,
			ResetTTL:      time.Hour,
			InviteTTL:     7 * 24 * time.Hour,
		},
		Lockout: config.LockoutConfig{
			MaxFailures: 3,
			Cooldown:    30 * time.Minute,
		},
	}
}

type fixture struct {
	svc    domain.Service
	tokens *token.Service
	db     *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&orgdomain.Organization{}, &domain.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	cfg := testConfig()
	tokens := token.New(cfg)
	orgs := orgservice.New(orgservice.Params{Node: node, Repo: orgrepo.New(dbConn)})

	svc := New(Params{
		Config: cfg,
		DB:     dbConn,
		Node:   node,
		Users:  authrepo.New(dbConn),
		Orgs:   orgs,
		Tokens: tokens,
		Mail:   &mailer.NoOpProvider{},
	})
	return &fixture{svc: svc, tokens: tokens, db: dbConn}
}

func (f *fixture) register(t *testing.T, email string) *domain.LoginResult {
	t.Helper()

	result, err := f.svc.Register(context.Background(), domain.RegisterRequest{
		Name:             "Alice",
		Email:            email,
		Password:         "correct-horse",
		OrganizationName: "Panaderia Sol " + email,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return result
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *domain.User {
	t.Helper()

	var user domain.User
	if err := f.db.First(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to reload user: %v", err)
	}
	return &user
}

func scopeFor(result *domain.LoginResult) tenantctx.Scope {
	return tenantctx.Scope{
		UserID:  result.User.ID,
		OrgID:   result.Organization.ID,
		Role:    string(result.User.Role),
		OrgName: result.Organization.Name,
	}
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)

	result := f.register(t, "Alice@Example.com")
	if result.User.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %s", result.User.Email)
	}
	if result.User.Role != authz.RoleAdmin {
		t.Fatalf("expected first user to be admin, got %s", result.User.Role)
	}
	if result.Organization.Slug == "" {
		t.Fatal("expected provisioned slug")
	}
	if result.User.EmailVerified {
		t.Fatal("expected unverified email on registration")
	}

	claims, err := f.tokens.Verify(result.Tokens.AccessToken, token.TypeAccess)
	if err != nil {
		t.Fatalf("access token did not verify: %v", err)
	}
	if claims.Email != "alice@example.com" {
		t.Fatalf("unexpected claim email %s", claims.Email)
	}

	login, err := f.svc.Login(context.Background(), domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if login.User.LastLogin == nil {
		t.Fatal("expected last_login stamp")
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, domain.RegisterRequest{Name: "A", Email: "not-an-email", Password: "correct-horse", OrganizationName: "Org"}); err != domain.ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := f.svc.Register(ctx, domain.RegisterRequest{Name: "A", Email: "a@example.com", Password: "short", OrganizationName: "Org"}); err != domain.ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, err := f.svc.Register(ctx, domain.RegisterRequest{Name: "  ", Email: "a@example.com", Password: "correct-horse", OrganizationName: "Org"}); err != domain.ErrValidation {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com")

	_, err := f.svc.Register(context.Background(), domain.RegisterRequest{
		Name:             "Mallory",
		Email:            "alice@example.com",
		Password:         "correct-horse",
		OrganizationName: "Otra Empresa",
	})
	if err != domain.ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com")

	_, err := f.svc.Login(context.Background(), domain.LoginRequest{
		Email:    "alice@example.com",
		Password: "wrong-password",
	})
	if err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Login(context.Background(), domain.LoginRequest{
		Email:    "nobody@example.com",
		Password: "correct-horse",
	})
	if err != domain.ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	result := f.register(t, "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "wrong"}); err != domain.ErrInvalidCredentials {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	user := f.reload(t, result.User.ID)
	if user.LockedUntil == nil {
		t.Fatal("expected lockout to be armed")
	}

	// Even the correct password is rejected while the lockout holds.
	if _, err := f.svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "correct-horse"}); err != domain.ErrAccountLocked {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestResetPasswordClearsLockout(t *testing.T) {
	f := newFixture(t)
	result := f.register(t, "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = f.svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	}

	if err := f.svc.ForgotPassword(ctx, domain.ForgotPasswordRequest{Email: "alice@example.com"}); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	user := f.reload(t, result.User.ID)
	if user.ResetToken == nil {
		t.Fatal("expected reset token on row")
	}

	err := f.svc.ResetPassword(ctx, domain.ResetPasswordRequest{
		Token:    *user.ResetToken,
		Password: "brand-new-password",
	})
	if err != nil {
		t.Fatalf("reset password failed: %v", err)
	}

	if _, err := f.svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "brand-new-password"}); err != nil {
		t.Fatalf("login after reset failed: %v", err)
	}

	// The token is single use.
	err = f.svc.ResetPassword(ctx, domain.ResetPasswordRequest{
		Token:    *user.ResetToken,
		Password: "another-password",
	})
	if err != domain.ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid on reuse, got %v", err)
	}
}

func TestForgotPasswordHidesUnknownEmail(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.ForgotPassword(context.Background(), domain.ForgotPasswordRequest{Email: "nobody@example.com"}); err != nil {
		t.Fatalf("expected silent success, got %v", err)
	}
}

func TestVerifyEmailFlow(t *testing.T) {
	f := newFixture(t)
	result := f.register(t, "alice@example.com")
	ctx := context.Background()

	user := f.reload(t, result.User.ID)
	if user.VerifyToken == nil {
		t.Fatal("expected verify token on row")
	}
	rawToken := *user.VerifyToken

	if err := f.svc.VerifyEmail(ctx, rawToken); err != nil {
		t.Fatalf("verify email failed: %v", err)
	}
	user = f.reload(t, result.User.ID)
	if !user.EmailVerified {
		t.Fatal("expected email verified")
	}
	if user.VerifyToken != nil {
		t.Fatal("expected verify token cleared")
	}

	if err := f.svc.VerifyEmail(ctx, rawToken); err != domain.ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid on reuse, got %v", err)
	}
	if err := f.svc.ResendVerification(ctx, "alice@example.com"); err != domain.ErrAlreadyVerified {
		t.Fatalf("expected ErrAlreadyVerified, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	f := newFixture(t)
	result := f.register(t, "alice@example.com")

	pair, err := f.svc.Refresh(context.Background(), domain.RefreshRequest{RefreshToken: result.Tokens.RefreshToken})
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if _, err := f.tokens.Verify(pair.AccessToken, token.TypeAccess); err != nil {
		t.Fatalf("rotated access token did not verify: %v", err)
	}

	// An access token is signed with the other secret and never refreshes.
	if _, err := f.svc.Refresh(context.Background(), domain.RefreshRequest{RefreshToken: result.Tokens.AccessToken}); err != token.ErrTokenMalformed {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestRefreshDeactivatedUser(t *testing.T) {
	f := newFixture(t)
	result := f.register(t, "alice@example.com")

	if err := f.db.Model(&domain.User{}).Where("id = ?", result.User.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("failed to deactivate: %v", err)
	}

	if _, err := f.svc.Refresh(context.Background(), domain.RefreshRequest{RefreshToken: result.Tokens.RefreshToken}); err != domain.ErrUserInactive {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestInviteAndActivate(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "alice@example.com")
	scope := scopeFor(admin)
	ctx := context.Background()

	invited, err := f.svc.Invite(ctx, scope, domain.InviteRequest{
		Name:  "Bob",
		Email: "bob@example.com",
		Role:  "user",
	})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	if invited.IsActive {
		t.Fatal("expected invited user to start inactive")
	}
	if invited.CreatedBy == nil || *invited.CreatedBy != admin.User.ID {
		t.Fatal("expected created_by to point at the inviter")
	}

	// The account cannot log in until the invite is accepted.
	if _, err := f.svc.Login(ctx, domain.LoginRequest{Email: "bob@example.com", Password: "anything-goes"}); err != domain.ErrUserInactive {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}

	row := f.reload(t, invited.ID)
	if row.IsActive {
		t.Fatal("expected invited row to persist as inactive")
	}
	if row.VerifyToken == nil {
		t.Fatal("expected invite token on row")
	}
	err = f.svc.ActivateInvite(ctx, domain.ActivateInviteRequest{
		Token:    *row.VerifyToken,
		Password: "bobs-password",
	})
	if err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	login, err := f.svc.Login(ctx, domain.LoginRequest{Email: "bob@example.com", Password: "bobs-password"})
	if err != nil {
		t.Fatalf("login after activation failed: %v", err)
	}
	if login.User.Role != authz.RoleUser {
		t.Fatalf("expected invited role, got %s", login.User.Role)
	}

	if err := f.svc.ActivateInvite(ctx, domain.ActivateInviteRequest{Token: *row.VerifyToken, Password: "bobs-password"}); err != domain.ErrInviteAlreadyUsed {
		t.Fatalf("expected ErrInviteAlreadyUsed, got %v", err)
	}
}

func TestInviteRejectsUnknownRole(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "alice@example.com")

	_, err := f.svc.Invite(context.Background(), scopeFor(admin), domain.InviteRequest{
		Name:  "Bob",
		Email: "bob@example.com",
		Role:  "owner",
	})
	if err != authz.ErrUnknownRole {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestChangeRoleGuards(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "alice@example.com")
	scope := scopeFor(admin)
	ctx := context.Background()

	// Admins cannot demote themselves.
	if _, err := f.svc.ChangeRole(ctx, scope, admin.User.ID, authz.RoleUser); err != authz.ErrSelfAction {
		t.Fatalf("expected ErrSelfAction, got %v", err)
	}

	// A second admin joins, then gets demoted back down while the first
	// admin remains.
	invited, err := f.svc.Invite(ctx, scope, domain.InviteRequest{Name: "Bob", Email: "bob@example.com", Role: "admin"})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	row := f.reload(t, invited.ID)
	if err := f.svc.ActivateInvite(ctx, domain.ActivateInviteRequest{Token: *row.VerifyToken, Password: "bobs-password"}); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	changed, err := f.svc.ChangeRole(ctx, scope, invited.ID, authz.RoleReadOnly)
	if err != nil {
		t.Fatalf("change role failed: %v", err)
	}
	if changed.Role != authz.RoleReadOnly {
		t.Fatalf("expected readonly, got %s", changed.Role)
	}

	// Bob is no longer an admin, so Alice cannot be demoted by him or
	// deactivated at all: she is the last active admin.
	bobScope := tenantctx.Scope{UserID: invited.ID, OrgID: scope.OrgID, Role: "readonly"}
	if _, err := f.svc.ChangeRole(ctx, bobScope, admin.User.ID, authz.RoleUser); err != authz.ErrLastAdminProtected {
		t.Fatalf("expected ErrLastAdminProtected, got %v", err)
	}
	if err := f.svc.Deactivate(ctx, bobScope, admin.User.ID); err != authz.ErrLastAdminProtected {
		t.Fatalf("expected ErrLastAdminProtected, got %v", err)
	}
}

func TestCrossOrgTargetHidden(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice@example.com")
	mallory := f.register(t, "mallory@example.org")
	ctx := context.Background()

	// A user from another organization resolves as not found, not forbidden.
	if _, err := f.svc.GetUser(ctx, scopeFor(alice), mallory.User.ID); err != domain.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := f.svc.ChangeRole(ctx, scopeFor(alice), mallory.User.ID, authz.RoleUser); err != domain.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := f.svc.Deactivate(ctx, scopeFor(alice), mallory.User.ID); err != domain.ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDeactivateMember(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "alice@example.com")
	scope := scopeFor(admin)
	ctx := context.Background()

	invited, err := f.svc.Invite(ctx, scope, domain.InviteRequest{Name: "Bob", Email: "bob@example.com", Role: "user"})
	if err != nil {
		t.Fatalf("invite failed: %v", err)
	}
	row := f.reload(t, invited.ID)
	if err := f.svc.ActivateInvite(ctx, domain.ActivateInviteRequest{Token: *row.VerifyToken, Password: "bobs-password"}); err != nil {
		t.Fatalf("activate failed: %v", err)
	}

	if err := f.svc.Deactivate(ctx, scope, invited.ID); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if _, err := f.svc.Login(ctx, domain.LoginRequest{Email: "bob@example.com", Password: "bobs-password"}); err != domain.ErrUserInactive {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestListUsersScopedAndPaged(t *testing.T) {
	f := newFixture(t)
	admin := f.register(t, "alice@example.com")
	f.register(t, "mallory@example.org")
	scope := scopeFor(admin)
	ctx := context.Background()

	for _, email := range []string{"bob@example.com", "carol@example.com", "dave@example.com"} {
		if _, err := f.svc.Invite(ctx, scope, domain.InviteRequest{Name: "Member", Email: email, Role: "user"}); err != nil {
			t.Fatalf("invite %s failed: %v", email, err)
		}
	}

	var filter domain.ListFilter
	filter.Pagination.PageSize = 2
	users, pageInfo, err := f.svc.ListUsers(ctx, scope, filter)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if pageInfo == nil || !pageInfo.HasMore || pageInfo.NextPageToken == "" {
		t.Fatalf("expected a next page, got %+v", pageInfo)
	}

	seen := map[string]bool{}
	for _, user := range users {
		if user.OrgID != scope.OrgID {
			t.Fatalf("user %s leaked from org %d", user.Email, user.OrgID)
		}
		seen[user.Email] = true
	}

	filter.Pagination.PageToken = pageInfo.NextPageToken
	rest, pageInfo, err := f.svc.ListUsers(ctx, scope, filter)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("expected 2 users on second page, got %d", len(rest))
	}
	for _, user := range rest {
		if seen[user.Email] {
			t.Fatalf("user %s repeated across pages", user.Email)
		}
		seen[user.Email] = true
	}
	if pageInfo != nil && pageInfo.HasMore {
		t.Fatalf("expected final page, got %+v", pageInfo)
	}
	if seen["mallory@example.org"] {
		t.Fatal("expected foreign org user to stay invisible")
	}
}

func TestUpdateFieldsRefusesOrgReassignment(t *testing.T) {
	f := newFixture(t)
	session := f.register(t, "alice@example.org")

	users := authrepo.New(f.db)
	err := users.UpdateFields(context.Background(), session.User.ID, map[string]any{
		"org_id": snowflake.ID(42),
	})
	if err != domain.ErrTenantReassign {
		t.Fatalf("expected ErrTenantReassign, got %v", err)
	}

	reloaded := f.reload(t, session.User.ID)
	if reloaded.OrgID != session.User.OrgID {
		t.Fatalf("org binding changed: %d -> %d", session.User.OrgID, reloaded.OrgID)
	}
}
