package persistence

import "errors"

// ErrDuplicate is returned when a device already has a stored record for the session.
var ErrDuplicate = errors.New("persistence: duplicate record")
