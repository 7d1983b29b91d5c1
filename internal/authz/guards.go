package authz

import (
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	// ErrSelfAction rejects a user deactivating or deleting their own account.
	ErrSelfAction = errors.New("self_action_forbidden")

	// ErrLastAdminProtected rejects an operation that would leave an
	// organization with zero active administrators.
	ErrLastAdminProtected = errors.New("last_admin_protected")
)

// CheckSelfAction rejects destructive actions a user aims at themself.
func CheckSelfAction(actorID, targetID snowflake.ID) error {
	if actorID != 0 && actorID == targetID {
		return ErrSelfAction
	}
	return nil
}

// CheckLastAdmin guards demotion/deactivation/removal of an administrator.
// remainingAdmins is the count of active admins in the organization with the
// target excluded. Best-effort under concurrent writes; the store resolves
// races last-write-wins.
func CheckLastAdmin(targetIsActiveAdmin bool, remainingAdmins int64) error {
	if targetIsActiveAdmin && remainingAdmins == 0 {
		return ErrLastAdminProtected
	}
	return nil
}
