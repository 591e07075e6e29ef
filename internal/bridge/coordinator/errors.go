package coordinator

import "errors"

var (
	// ErrMissingMAC is returned when the bridge has no hardware identity.
	ErrMissingMAC = errors.New("coordinator: bridge mac is required")

	// ErrNotRunning is returned by requests made before Start or after Stop.
	ErrNotRunning = errors.New("coordinator: not running")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("coordinator: already started")

	// ErrInvalidOptions is returned when a required collaborator is missing.
	ErrInvalidOptions = errors.New("coordinator: invalid options")
)
