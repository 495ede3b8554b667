package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrPlayerExists = errors.New("username already taken")
	ErrEmailExists  = errors.New("email already registered")
	ErrInvalidScore = errors.New("invalid score")
)
