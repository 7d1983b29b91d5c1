// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Subscription plans ordered by entitlement.
const (
	PlanFree    = "free"
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

// Subscription lifecycle states.
const (
	StatusTrial     = "trial"
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusCancelled = "cancelled"
)

// Organization represents a tenant. Organizations are soft-deactivated,
// never hard-deleted.
type Organization struct {
	ID                    snowflake.ID `gorm:"primaryKey" json:"id"`
	Name                  string       `gorm:"type:text;not null" json:"name"`
	Slug                  string       `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	IsActive              bool         `gorm:"column:is_active;not null" json:"is_active"`
	Plan                  string       `gorm:"type:text;not null;default:'free'" json:"plan"`
	SubscriptionStatus    string       `gorm:"column:subscription_status;type:text;not null;default:'trial'" json:"subscription_status"`
	SubscriptionExpiresAt *time.Time   `gorm:"column:subscription_expires_at" json:"subscription_expires_at,omitempty"`
	CreatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// SubscriptionCurrent reports whether the subscription admits authenticated
// access at the given instant. Trial and active states pass; a set expiry in
// the past does not.
func (o Organization) SubscriptionCurrent(now time.Time) bool {
	switch o.SubscriptionStatus {
	case StatusTrial, StatusActive:
	default:
		return false
	}
	if o.SubscriptionExpiresAt != nil && now.After(*o.SubscriptionExpiresAt) {
		return false
	}
	return true
}
