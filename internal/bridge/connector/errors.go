package connector

import "errors"

// Domain errors for the cloud connector.
var (
	// ErrNetwork indicates a connector call failed in transit or timed out.
	// It is transient: callers retry through the reconnect or pairing loops.
	ErrNetwork = errors.New("connector: network error")

	// ErrRemote indicates the connector daemon rejected a request.
	ErrRemote = errors.New("connector: request rejected")

	// ErrEmptyMessage indicates a callback without a usable payload.
	ErrEmptyMessage = errors.New("connector: empty callback")

	// ErrUnknownMessage indicates a callback of an unknown kind.
	ErrUnknownMessage = errors.New("connector: unknown callback kind")

	// ErrClosed indicates the connector has been closed.
	ErrClosed = errors.New("connector: closed")
)
