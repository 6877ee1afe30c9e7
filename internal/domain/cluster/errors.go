package cluster

import "errors"

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid clustering config")
	ErrEmptyMatrix   = errors.New("empty feature matrix")
	ErrInvalidMatrix = errors.New("invalid feature matrix")
)
