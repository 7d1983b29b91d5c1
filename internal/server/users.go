package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	auditdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/domain"
	authdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/authz"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db/pagination"
)

type listUsersQuery struct {
	PageToken  string `form:"page_token"`
	PageSize   int    `form:"page_size"`
	Role       string `form:"role"`
	ActiveOnly bool   `form:"active_only"`
}

func (s *Server) ListUsers(c *gin.Context) {
	var query listUsersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	scope := mustScope(c)
	users, pageInfo, err := s.authSvc.ListUsers(c.Request.Context(), scope, authdomain.ListFilter{
		Role:       strings.TrimSpace(query.Role),
		ActiveOnly: query.ActiveOnly,
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, http.StatusOK, gin.H{"users": users, "page_info": pageInfo})
}

func (s *Server) GetUser(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	scope := mustScope(c)
	user, err := s.authSvc.GetUser(c.Request.Context(), scope, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, http.StatusOK, user)
}

func (s *Server) InviteUser(c *gin.Context) {
	var req authdomain.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	scope := mustScope(c)
	user, err := s.authSvc.Invite(c.Request.Context(), scope, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	actorID := scope.UserID
	targetID := user.ID.String()
	s.record(c, auditdomain.Entry{
		OrgID:      scope.OrgID,
		UserID:     &actorID,
		Action:     auditdomain.ActionInviteUser,
		Resource:   "user",
		ResourceID: &targetID,
		Detail:     map[string]any{"email": user.Email, "role": string(user.Role)},
		Success:    true,
	})
	respondData(c, http.StatusCreated, user)
}

func (s *Server) ChangeRole(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req authdomain.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	scope := mustScope(c)
	user, err := s.authSvc.ChangeRole(c.Request.Context(), scope, id, role)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	actorID := scope.UserID
	targetID := user.ID.String()
	s.record(c, auditdomain.Entry{
		OrgID:      scope.OrgID,
		UserID:     &actorID,
		Action:     auditdomain.ActionChangeRole,
		Resource:   "user",
		ResourceID: &targetID,
		Detail:     map[string]any{"role": string(role)},
		Success:    true,
	})
	respondData(c, http.StatusOK, user)
}

func (s *Server) DeactivateUser(c *gin.Context) {
	id, err := parseIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	scope := mustScope(c)
	if err := s.authSvc.Deactivate(c.Request.Context(), scope, id); err != nil {
		AbortWithError(c, err)
		return
	}

	actorID := scope.UserID
	targetID := id.String()
	s.record(c, auditdomain.Entry{
		OrgID:      scope.OrgID,
		UserID:     &actorID,
		Action:     auditdomain.ActionRemoveUser,
		Resource:   "user",
		ResourceID: &targetID,
		Success:    true,
	})
	respondMessage(c, http.StatusOK, "user deactivated")
}

func parseIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil || id == 0 {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return id, nil
}
