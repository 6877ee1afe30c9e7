package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrInvalidFixedK = errors.New("invalid fixed k")
	ErrNoStore       = errors.New("no run store configured")
)
