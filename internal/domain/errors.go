package domain

import "errors"

var (
	ErrNotFound      = errors.New("record not found")
	ErrForbidden     = errors.New("insufficient permissions")
	ErrInvalidAction = errors.New("invalid decision action")
	ErrNotActionable = errors.New("notification is not actionable")
	ErrNotDeletable  = errors.New("notification cannot be deleted yet")
	ErrDuplicate     = errors.New("record already exists")
	ErrInvalidInput  = errors.New("invalid input")
)
