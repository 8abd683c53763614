package domain

import "errors"

var (
	ErrNotFound          = errors.New("domain: not found")
	ErrEmptyUserID       = errors.New("domain: user id is required")
	ErrUnknownPreference = errors.New("domain: unknown preference kind")
	ErrInvalidPreference = errors.New("domain: invalid preference value")
)
