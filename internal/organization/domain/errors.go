package domain

import "errors"

var (
	ErrOrganizationNotFound  = errors.New("organization not found")
	ErrOrganizationInactive  = errors.New("organization is inactive")
	ErrSubscriptionSuspended = errors.New("subscription is suspended")
	ErrNameTaken             = errors.New("organization name already in use")
	ErrInvalidName           = errors.New("invalid organization name")
	ErrInvalidPlan           = errors.New("invalid subscription plan")
)
