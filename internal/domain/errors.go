package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotConfirmed  = errors.New("bundle not confirmed")
	ErrLockHeld      = errors.New("lock already held")
)
