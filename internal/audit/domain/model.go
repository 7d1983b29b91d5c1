// Package domain contains core types for the audit subsystem.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Action is the closed set of auditable actions. Entries with an unknown
// action are rejected at record time.
type Action string

const (
	ActionLogin         Action = "LOGIN"
	ActionLogout        Action = "LOGOUT"
	ActionRegister      Action = "REGISTER"
	ActionPasswordReset Action = "PASSWORD_RESET"
	ActionCreate        Action = "CREATE"
	ActionUpdate        Action = "UPDATE"
	ActionDelete        Action = "DELETE"
	ActionView          Action = "VIEW"
	ActionInviteUser    Action = "INVITE_USER"
	ActionRemoveUser    Action = "REMOVE_USER"
	ActionChangeRole    Action = "CHANGE_ROLE"
	ActionUpdateOrg     Action = "UPDATE_ORGANIZATION"
	ActionExportData    Action = "EXPORT_DATA"
)

// Valid reports whether the action is a member of the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionLogin, ActionLogout, ActionRegister, ActionPasswordReset,
		ActionCreate, ActionUpdate, ActionDelete, ActionView,
		ActionInviteUser, ActionRemoveUser, ActionChangeRole,
		ActionUpdateOrg, ActionExportData:
		return true
	}
	return false
}

// Entry is one append-only audit record. There is no update or delete path.
type Entry struct {
	ID           snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID        snowflake.ID      `gorm:"column:organization_id;not null;index:idx_audit_org_created,priority:1" json:"organization_id"`
	UserID       *snowflake.ID     `gorm:"column:user_id;index" json:"user_id,omitempty"`
	Action       Action            `gorm:"type:text;not null;index" json:"action"`
	Resource     string            `gorm:"type:text;not null" json:"resource"`
	ResourceID   *string           `gorm:"column:resource_id" json:"resource_id,omitempty"`
	Detail       datatypes.JSONMap `gorm:"type:jsonb" json:"detail,omitempty"`
	IPAddress    string            `gorm:"column:ip_address;type:text" json:"ip_address"`
	UserAgent    string            `gorm:"column:user_agent;type:text" json:"user_agent"`
	// No gorm default tag: a default makes gorm drop a false value on
	// insert, and failed attempts must persist as failures.
	Success      bool              `gorm:"not null" json:"success"`
	ErrorMessage *string           `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_audit_org_created,priority:2" json:"created_at"`
}

// TableName sets the database table name.
func (Entry) TableName() string { return "audit_logs" }

// Cursor is the keyset position within a descending listing.
type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// ListFilter narrows an organization's audit listing.
type ListFilter struct {
	OrgID   snowflake.ID
	Action  string
	UserID  *snowflake.ID
	Success *bool
	StartAt *time.Time
	EndAt   *time.Time
	Cursor  *Cursor
	Limit   int
}

// Stats summarizes an organization's activity over a range.
type Stats struct {
	TotalActions  int64            `json:"total_actions"`
	SuccessRate   float64          `json:"success_rate"`
	UniqueUsers   int64            `json:"unique_users"`
	ActionsByType map[Action]int64 `json:"actions_by_type"`
}
