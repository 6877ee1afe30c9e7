package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid run")
)
