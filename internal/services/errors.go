package services

import "errors"

var (
	ErrForbidden            = errors.New("operation requires super_admin role")
	ErrSelfDelete           = errors.New("admins cannot delete their own account")
	ErrSubscriptionInactive = errors.New("subscription type is inactive")
	ErrInvalidInput         = errors.New("invalid input")
)
