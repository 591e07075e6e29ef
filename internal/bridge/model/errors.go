package model

import "errors"

// ErrUnsupported indicates an entity that cannot be bridged. Callers skip
// the entity; it is never reported to the user.
var ErrUnsupported = errors.New("model: unsupported device")
