package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrInfrastructure marks failures that abort a whole suite run
	// (no port, no listener, fixture cannot start, store unreachable).
	ErrInfrastructure = errors.New("infrastructure failure")

	ErrTimeout             = errors.New("execution timed out")
	ErrFixtureDisconnected = errors.New("fixture server disconnected")
	ErrStopped             = errors.New("run stopped")
)
