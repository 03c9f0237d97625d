package models

import "errors"

var (
	// ErrNotAuthorized is returned when the caller does not own the entity
	ErrNotAuthorized = errors.New("not authorized")
	// ErrNotFound is returned when the entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyDeleted is returned when the entity was soft-deleted already
	ErrAlreadyDeleted = errors.New("already deleted")
)
