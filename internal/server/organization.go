package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/domain"
	orgdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
)

func (s *Server) GetOrganization(c *gin.Context) {
	scope := mustScope(c)
	org, err := s.orgSvc.Get(c.Request.Context(), scope)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, http.StatusOK, org)
}

func (s *Server) UpdateOrganization(c *gin.Context) {
	var req orgdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	scope := mustScope(c)
	org, err := s.orgSvc.Update(c.Request.Context(), scope, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	actorID := scope.UserID
	s.record(c, auditdomain.Entry{
		OrgID:    scope.OrgID,
		UserID:   &actorID,
		Action:   auditdomain.ActionUpdateOrg,
		Resource: "organization",
		Detail:   map[string]any{"name": org.Name},
		Success:  true,
	})
	respondData(c, http.StatusOK, org)
}

func (s *Server) ChangePlan(c *gin.Context) {
	var req orgdomain.ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	scope := mustScope(c)
	org, err := s.orgSvc.ChangePlan(c.Request.Context(), scope, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	actorID := scope.UserID
	s.record(c, auditdomain.Entry{
		OrgID:    scope.OrgID,
		UserID:   &actorID,
		Action:   auditdomain.ActionUpdateOrg,
		Resource: "organization",
		Detail:   map[string]any{"plan": org.Plan},
		Success:  true,
	})
	respondData(c, http.StatusOK, org)
}
