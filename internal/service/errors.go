package service

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrForbidden          = errors.New("forbidden")
	ErrWeakPassword       = errors.New("password must be at least 8 characters and differ from the current one")
	ErrSelfDelete         = errors.New("cannot delete your own account")
)

const MinPasswordLength = 8
