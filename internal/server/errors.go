package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/abuse"
	auditdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/audit/domain"
	authdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/auth/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/authz"
	orgdomain "github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/tenant"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/token"
)

// ValidationError carries a field-level failure inside the error envelope.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationErrors aggregates field failures into one error value.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

// envelope is the uniform response shape. Every handler success and every
// mapped error goes through it.
type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Detail  string            `json:"detail,omitempty"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrInternal           = errors.New("internal_error")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// ErrorHandlingMiddleware renders the last handler error as the JSON
// envelope. Outside production the raw error string rides along in a detail
// field.
func (s *Server) ErrorHandlingMiddleware() gin.HandlerFunc {
	exposeDetail := !s.cfg.IsProduction()
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if exposeDetail {
			payload.Detail = lastErr.Err.Error()
		}
		c.AbortWithStatusJSON(status, payload)
	}
}

// AbortWithError records the error for the envelope middleware and stops
// the handler chain.
func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{Success: true, Data: data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, envelope{Success: true, Message: message})
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{Field: field, Code: code, Message: message},
		},
	}
}

func mapError(err error) (int, envelope) {
	if err == nil {
		return http.StatusInternalServerError, envelope{Message: "internal server error"}
	}

	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, envelope{
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case isValidationError(err):
		return http.StatusBadRequest, envelope{Message: err.Error()}

	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, token.ErrTokenMalformed),
		errors.Is(err, token.ErrTokenExpired),
		errors.Is(err, token.ErrTokenTypeMismatch),
		errors.Is(err, token.ErrTokenIncomplete),
		errors.Is(err, tenant.ErrTenantMismatch):
		return http.StatusUnauthorized, envelope{Message: "unauthorized"}

	case errors.Is(err, authz.ErrForbidden),
		errors.Is(err, authz.ErrSelfAction),
		errors.Is(err, authz.ErrLastAdminProtected),
		errors.Is(err, authdomain.ErrUserInactive),
		errors.Is(err, authdomain.ErrEmailNotVerified),
		errors.Is(err, orgdomain.ErrOrganizationInactive),
		errors.Is(err, orgdomain.ErrSubscriptionSuspended):
		return http.StatusForbidden, envelope{Message: err.Error()}

	case errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, orgdomain.ErrOrganizationNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, envelope{Message: "not found"}

	case errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, authdomain.ErrAlreadyVerified),
		errors.Is(err, authdomain.ErrInviteAlreadyUsed),
		errors.Is(err, orgdomain.ErrNameTaken):
		return http.StatusConflict, envelope{Message: err.Error()}

	case errors.Is(err, authdomain.ErrAccountLocked):
		return http.StatusLocked, envelope{Message: "account temporarily locked"}

	case errors.Is(err, abuse.ErrRateLimited):
		return http.StatusTooManyRequests, envelope{Message: "too many requests"}

	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, envelope{Message: "service unavailable"}

	default:
		return http.StatusInternalServerError, envelope{Message: "internal server error"}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, authdomain.ErrValidation),
		errors.Is(err, authdomain.ErrInvalidEmail),
		errors.Is(err, authdomain.ErrWeakPassword),
		errors.Is(err, authdomain.ErrTokenInvalid),
		errors.Is(err, authz.ErrUnknownRole),
		errors.Is(err, orgdomain.ErrInvalidName),
		errors.Is(err, orgdomain.ErrInvalidPlan),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange):
		return true
	default:
		return false
	}
}
