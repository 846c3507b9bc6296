package redis

import "errors"

// ErrNotFound is returned when a key or field does not exist
var ErrNotFound = errors.New("redis: key not found")
