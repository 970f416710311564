package errors

import "errors"

var (
	ErrUserNotFound = errors.New("user not found")

	ErrDuplicateEmail = errors.New("email is already registered")

	ErrInvalidCredentials = errors.New("invalid email or password")
)
