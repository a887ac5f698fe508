package vocabulary

import "errors"

// ErrUnknownPrefix is returned when a prefix has no registered namespace.
var ErrUnknownPrefix = errors.New("unknown namespace prefix")
