package services

import "errors"

// Error taxonomy of the engagement core. Callers match with errors.Is; messages are
// wrapped with the offending id where useful.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrSelfReference         = errors.New("cannot befriend yourself")
	ErrDuplicateRelationship = errors.New("friendship already exists")
	ErrDuplicateRegistration = errors.New("already registered for this event")
	ErrCapacityExceeded      = errors.New("event is full")
	ErrAuthorization         = errors.New("not allowed")
	ErrInvalidState          = errors.New("invalid state transition")
	ErrTransientStore        = errors.New("datastore temporarily unavailable")
)

// errVersionConflict signals a lost optimistic-concurrency race; Store.Run retries it.
var errVersionConflict = errors.New("version conflict")
