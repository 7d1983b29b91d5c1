package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUserInactive       = errors.New("user is inactive")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAccountLocked      = errors.New("account temporarily locked")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrInviteAlreadyUsed  = errors.New("invitation already activated")
	ErrTenantReassign     = errors.New("user cannot move between organizations")
	ErrValidation         = errors.New("validation failed")
)
