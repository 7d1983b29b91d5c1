package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/abuse"
	auditdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/tenant"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/token"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

const (
	headerAuthorization = "Authorization"
	headerLegacyToken   = "x-auth-token"
	contextScopeKey     = "tenant_scope"
)

// BodyLimit rejects oversized payloads before any parsing happens.
func (s *Server) BodyLimit() gin.HandlerFunc {
	max := s.cfg.Guard.MaxBodyBytes
	return func(c *gin.Context) {
		if c.Request.ContentLength > max {
			AbortWithError(c, newValidationError("body", "payload_too_large", "request body too large"))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		c.Next()
	}
}

// RequestGuards drops obviously hostile traffic before any token work.
func (s *Server) RequestGuards() gin.HandlerFunc {
	return func(c *gin.Context) {
		if abuse.SuspiciousUserAgent(c.Request.UserAgent()) ||
			abuse.SuspiciousPath(c.Request.URL.RequestURI()) {
			s.metrics.SecurityEvents.WithLabelValues("suspicious_request").Inc()
			s.log.Warn("suspicious request blocked",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
				zap.String("user_agent", c.Request.UserAgent()),
			)
			AbortWithError(c, invalidRequestError())
			return
		}

		if s.cfg.IsProduction() {
			if origin := c.GetHeader("Origin"); !abuse.OriginAllowed(origin, s.cfg.Guard.AllowedOrigins) {
				s.metrics.SecurityEvents.WithLabelValues("origin_rejected").Inc()
				AbortWithError(c, invalidRequestError())
				return
			}
		}
		c.Next()
	}
}

// RequestLog emits one structured line per request and feeds the HTTP
// metrics.
func (s *Server) RequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		elapsed := time.Since(start)

		s.metrics.RequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		s.metrics.RequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(elapsed.Seconds())

		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", elapsed),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// AuthRequired verifies the bearer token and resolves the tenant scope. The
// scope lands both in the gin context and in the request context so service
// code can read it without gin.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := s.tokens.Verify(raw, token.TypeAccess)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		scope, err := s.resolver.Resolve(c.Request.Context(), claims)
		if err != nil {
			if errors.Is(err, tenant.ErrTenantMismatch) {
				s.metrics.SecurityEvents.WithLabelValues("tenant_mismatch").Inc()
			}
			AbortWithError(c, err)
			return
		}

		c.Set(contextScopeKey, scope)
		c.Request = c.Request.WithContext(tenantctx.WithScope(c.Request.Context(), scope))
		c.Next()
	}
}

// TenantRateLimit applies the per-organization budget for the caller's plan.
func (s *Server) TenantRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := mustScope(c)
		result, err := s.limiter.AllowTenant(c.Request.Context(), scope.OrgID.String(), scope.Plan)
		if err != nil {
			s.log.Warn("tenant rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			s.denyRateLimited(c, "tenant", result)
			return
		}
		c.Next()
	}
}

// RequireAction gates a route on the role decision table.
func (s *Server) RequireAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := mustScope(c)
		if err := s.authzSvc.Authorize(c.Request.Context(), scope, object, action); err != nil {
			s.metrics.SecurityEvents.WithLabelValues("authorization_denied").Inc()
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// LoginRateLimit throttles login attempts per client identity before the
// credential check runs.
func (s *Server) LoginRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := peekEmail(c)
		result, err := s.limiter.AllowLogin(c.Request.Context(), c.ClientIP(), email)
		if err != nil {
			s.log.Warn("login rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			s.recordAuthDenied(c, auditdomain.ActionLogin, email, "rate limited")
			s.denyRateLimited(c, "login", result)
			return
		}
		c.Next()
	}
}

// RegisterRateLimit throttles account creation per source IP.
func (s *Server) RegisterRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.limiter.AllowRegister(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("register rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			s.denyRateLimited(c, "register", result)
			return
		}
		c.Next()
	}
}

// ResetRateLimit throttles password reset requests per client identity.
func (s *Server) ResetRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := s.limiter.AllowPasswordReset(c.Request.Context(), c.ClientIP(), peekEmail(c))
		if err != nil {
			s.log.Warn("reset rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			s.denyRateLimited(c, "password_reset", result)
			return
		}
		c.Next()
	}
}

func (s *Server) denyRateLimited(c *gin.Context, kind string, result *abuse.Result) {
	s.metrics.RateLimitDenied.WithLabelValues(kind).Inc()
	if result.RetryAfter > 0 {
		seconds := int(result.RetryAfter / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
	}
	AbortWithError(c, abuse.ErrRateLimited)
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader(headerAuthorization))
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(c.GetHeader(headerLegacyToken))
}

func mustScope(c *gin.Context) tenantctx.Scope {
	value, ok := c.Get(contextScopeKey)
	if !ok {
		return tenantctx.Scope{}
	}
	scope, _ := value.(tenantctx.Scope)
	return scope
}

// peekEmail reads the email field from a JSON body without consuming it, so
// the handler can still bind the request.
func peekEmail(c *gin.Context) string {
	if c.Request.Body == nil {
		return ""
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return ""
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
	if len(body) == 0 {
		return ""
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Email)
}

// recordAuthDenied audits a rejected credential attempt. The entry carries
// no user or organization; the caller was never authenticated, so it lands
// in the system scope and never surfaces in a tenant listing.
func (s *Server) recordAuthDenied(c *gin.Context, action auditdomain.Action, email, reason string) {
	detail := map[string]any{"reason": reason}
	if email != "" {
		detail["email"] = email
	}
	s.auditSvc.Record(auditdomain.Entry{
		Action:       action,
		Resource:     "auth",
		Detail:       detail,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		Success:      false,
		ErrorMessage: &reason,
	})
}
