package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	auditdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/domain"
	authdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/domain"
)

// record stamps the client address onto an audit entry and enqueues it.
func (s *Server) record(c *gin.Context, entry auditdomain.Entry) {
	entry.IPAddress = c.ClientIP()
	entry.UserAgent = c.Request.UserAgent()
	s.auditSvc.Record(entry)
}

func (s *Server) Register(c *gin.Context) {
	var req authdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	userID := result.User.ID
	s.record(c, auditdomain.Entry{
		OrgID:    result.Organization.ID,
		UserID:   &userID,
		Action:   auditdomain.ActionRegister,
		Resource: "organization",
		Detail:   map[string]any{"organization_name": result.Organization.Name},
		Success:  true,
	})

	respondData(c, http.StatusCreated, result)
}

func (s *Server) Login(c *gin.Context) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		s.recordAuthDenied(c, auditdomain.ActionLogin, req.Email, err.Error())
		AbortWithError(c, err)
		return
	}

	if err := s.limiter.ResetLogin(c.Request.Context(), c.ClientIP(), req.Email); err != nil {
		s.log.Warn("failed to reset login rate limit window", zap.Error(err))
	}

	userID := result.User.ID
	s.record(c, auditdomain.Entry{
		OrgID:    result.Organization.ID,
		UserID:   &userID,
		Action:   auditdomain.ActionLogin,
		Resource: "auth",
		Success:  true,
	})

	respondData(c, http.StatusOK, result)
}

func (s *Server) Refresh(c *gin.Context) {
	var req authdomain.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	pair, err := s.authSvc.Refresh(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, http.StatusOK, pair)
}

func (s *Server) VerifyEmail(c *gin.Context) {
	if err := s.authSvc.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		AbortWithError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "email verified")
}

func (s *Server) ResendVerification(c *gin.Context) {
	var req authdomain.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.authSvc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		AbortWithError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "verification email sent")
}

// ForgotPassword always reports success so the endpoint cannot be used to
// probe which addresses exist.
func (s *Server) ForgotPassword(c *gin.Context) {
	var req authdomain.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := s.authSvc.ForgotPassword(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "if the address exists, a reset email was sent")
}

func (s *Server) ResetPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.authSvc.ResetPassword(c.Request.Context(), authdomain.ResetPasswordRequest{
		Token:    c.Param("token"),
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.record(c, auditdomain.Entry{
		Action:   auditdomain.ActionPasswordReset,
		Resource: "auth",
		Success:  true,
	})
	respondMessage(c, http.StatusOK, "password updated")
}

func (s *Server) ActivateInvite(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.authSvc.ActivateInvite(c.Request.Context(), authdomain.ActivateInviteRequest{
		Token:    c.Param("token"),
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondMessage(c, http.StatusOK, "account activated")
}

func (s *Server) Me(c *gin.Context) {
	scope := mustScope(c)
	user, err := s.authSvc.CurrentUser(c.Request.Context(), scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	org, err := s.orgSvc.Get(c.Request.Context(), scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"user": user, "organization": org})
}

// Logout is audit-only; access tokens stay valid until expiry and clients
// simply discard them.
func (s *Server) Logout(c *gin.Context) {
	scope := mustScope(c)
	userID := scope.UserID
	s.record(c, auditdomain.Entry{
		OrgID:    scope.OrgID,
		UserID:   &userID,
		Action:   auditdomain.ActionLogout,
		Resource: "auth",
		Success:  true,
	})
	respondMessage(c, http.StatusOK, "logged out")
}
