package utils

import "errors"

var (
	// ErrNotFound indicates a referenced entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates input was rejected before any mutation
	ErrInvalidArgument = errors.New("invalid argument")
)
