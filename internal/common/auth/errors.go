package auth

import "errors"

var (
	ErrUserNotFound  = errors.New("identity user not found")
	ErrTokenInactive = errors.New("access token is not active")
)
