// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/authz"
)

// User represents a member of an organization. Users are soft-deactivated,
// never hard-deleted, so audit history keeps a valid actor reference.
type User struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID           snowflake.ID  `gorm:"column:organization_id;not null;index" json:"organization_id"`
	Name            string        `gorm:"type:text;not null" json:"name"`
	Email           string        `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	PasswordHash    string        `gorm:"column:password_hash;type:text;not null" json:"-"`
	Role            authz.Role    `gorm:"type:text;not null;default:'user'" json:"role"`
	// No gorm default tag: a default makes gorm drop a false value on
	// insert, and invited accounts are created inactive.
	IsActive        bool          `gorm:"column:is_active;not null" json:"is_active"`
	IsSuper         bool          `gorm:"column:is_super;not null;default:false" json:"is_super"`
	EmailVerified   bool          `gorm:"column:email_verified;not null;default:false" json:"email_verified"`
	VerifyToken     *string       `gorm:"column:verify_token;index" json:"-"`
	VerifyExpiresAt *time.Time    `gorm:"column:verify_expires_at" json:"-"`
	ResetToken      *string       `gorm:"column:reset_token;index" json:"-"`
	ResetExpiresAt  *time.Time    `gorm:"column:reset_expires_at" json:"-"`
	FailedAttempts  int           `gorm:"column:failed_attempts;not null;default:0" json:"-"`
	LockedUntil     *time.Time    `gorm:"column:locked_until" json:"-"`
	CreatedBy       *snowflake.ID `gorm:"column:created_by" json:"created_by,omitempty"`
	LastLogin       *time.Time    `gorm:"column:last_login" json:"last_login,omitempty"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// Locked reports whether a brute-force lockout is in effect at the given
// instant.
func (u User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
