package auth

import "errors"

var (
	// ErrEmailAlreadyExists indicates the email is already registered.
	ErrEmailAlreadyExists = errors.New("email already exists")
	// ErrUsernameTaken indicates the username (and so the tenant folder) is in use.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrInvalidUsername is returned when the username cannot serve as a tenant folder name.
	ErrInvalidUsername = errors.New("username must be 3-50 characters of letters, digits, '_' or '-'")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive is returned when a disabled account tries to log in.
	ErrUserInactive = errors.New("user is inactive")
	// ErrUserNotFound signals that the user could not be located.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnauthorized represents missing or invalid authentication tokens.
	ErrUnauthorized = errors.New("unauthorized")
)
