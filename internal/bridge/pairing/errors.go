package pairing

import "errors"

// Domain errors for the pairing flow.
var (
	// ErrTimeout indicates the bind code expired before it was scanned.
	// It is distinct from network failures so the user sees a
	// timeout-specific message.
	ErrTimeout = errors.New("pairing: timed out waiting for scan")

	// ErrBindCode indicates the cloud did not issue a bind code.
	ErrBindCode = errors.New("pairing: bind code unavailable")

	// ErrBindResponse indicates a successful bind without usable
	// connection parameters.
	ErrBindResponse = errors.New("pairing: malformed bind response")

	// ErrCancelled indicates the session was aborted.
	ErrCancelled = errors.New("pairing: cancelled")
)
