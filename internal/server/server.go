// Package server exposes the HTTP surface and its middleware pipeline.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/abuse"
	auditdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/domain"
	authdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/authz"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/config"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/metrics"
	orgdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/tenant"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/token"
)

// Module wires the HTTP server into the fx application.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

// NewEngine builds the gin engine with recovery only; the server attaches
// the rest of the pipeline in route registration order.
func NewEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// Server carries the handler dependencies.
type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	tokens   *token.Service
	resolver *tenant.Resolver
	limiter  *abuse.Limiter
	authzSvc authz.Service
	authSvc  authdomain.Service
	orgSvc   orgdomain.Service
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

// Params defines the dependencies of the server.
type Params struct {
	fx.In

	Engine   *gin.Engine
	Cfg      config.Config
	Tokens   *token.Service
	Resolver *tenant.Resolver
	Limiter  *abuse.Limiter
	AuthzSvc authz.Service
	AuthSvc  authdomain.Service
	OrgSvc   orgdomain.Service
	AuditSvc auditdomain.Service
	Metrics  *metrics.Metrics
}

// NewServer constructs the server.
func NewServer(p Params) *Server {
	return &Server{
		engine:   p.Engine,
		cfg:      p.Cfg,
		log:      zap.L().Named("server"),
		tokens:   p.Tokens,
		resolver: p.Resolver,
		limiter:  p.Limiter,
		authzSvc: p.AuthzSvc,
		authSvc:  p.AuthSvc,
		orgSvc:   p.OrgSvc,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

// Engine returns the underlying gin engine, used by tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func registerRoutes(s *Server) {
	s.RegisterRoutes()
}

// RegisterRoutes attaches the middleware pipeline and all routes. Stage
// order is deliberate: the envelope middleware wraps the whole pipeline so
// aborts from the guards still render as JSON, and the size and hostility
// guards run before any token work.
func (s *Server) RegisterRoutes() {
	r := s.engine

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api",
		s.ErrorHandlingMiddleware(),
		s.BodyLimit(),
		s.RequestGuards(),
		s.RequestLog(),
	)

	auth := api.Group("/auth")
	auth.POST("/register", s.RegisterRateLimit(), s.Register)
	auth.POST("/login", s.LoginRateLimit(), s.Login)
	auth.POST("/refresh", s.Refresh)
	auth.GET("/verify-email/:token", s.VerifyEmail)
	auth.POST("/resend-verification", s.ResetRateLimit(), s.ResendVerification)
	auth.POST("/forgot-password", s.ResetRateLimit(), s.ForgotPassword)
	auth.POST("/reset-password/:token", s.ResetPassword)
	auth.POST("/activate/:token", s.ActivateInvite)

	session := auth.Group("", s.AuthRequired(), s.TenantRateLimit())
	session.GET("/me", s.Me)
	session.POST("/logout", s.Logout)

	protected := api.Group("", s.AuthRequired(), s.TenantRateLimit())

	users := protected.Group("/users")
	users.GET("", s.RequireAction(authz.ObjectUser, authz.ActionUserView), s.ListUsers)
	users.GET("/:id", s.RequireAction(authz.ObjectUser, authz.ActionUserView), s.GetUser)
	users.POST("", s.RequireAction(authz.ObjectUser, authz.ActionUserInvite), s.InviteUser)
	users.PATCH("/:id/role", s.RequireAction(authz.ObjectUser, authz.ActionUserChangeRole), s.ChangeRole)
	users.DELETE("/:id", s.RequireAction(authz.ObjectUser, authz.ActionUserRemove), s.DeactivateUser)

	org := protected.Group("/organization")
	org.GET("", s.RequireAction(authz.ObjectOrganization, authz.ActionOrganizationView), s.GetOrganization)
	org.PATCH("", s.RequireAction(authz.ObjectOrganization, authz.ActionOrganizationUpdate), s.UpdateOrganization)
	org.POST("/plan", s.RequireAction(authz.ObjectOrganization, authz.ActionOrganizationUpdate), s.ChangePlan)

	audit := protected.Group("/audit")
	audit.GET("", s.RequireAction(authz.ObjectAuditLog, authz.ActionAuditLogView), s.ListAuditLogs)
	audit.GET("/stats", s.RequireAction(authz.ObjectAuditLog, authz.ActionAuditLogView), s.AuditStats)
	audit.GET("/export", s.RequireAction(authz.ObjectAuditLog, authz.ActionAuditLogExport), s.ExportAuditLogs)
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
