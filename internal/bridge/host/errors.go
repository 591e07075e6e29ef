package host

import "errors"

// Domain errors for the host adapter.
var (
	// ErrServiceCall indicates a service invocation could not be delivered.
	ErrServiceCall = errors.New("host: service call failed")

	// ErrNilListener indicates a listener registration without a callback.
	ErrNilListener = errors.New("host: listener callback is nil")
)
