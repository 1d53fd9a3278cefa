package redis

import (
	"errors"
)

var (
	// ErrInvalidConfig means New received a nil config.
	ErrInvalidConfig = errors.New("redis: invalid configuration")

	// ErrEmptyAddrs means no server address was given.
	ErrEmptyAddrs = errors.New("redis: addrs cannot be empty")

	// ErrInvalidTimeout means a timeout value was negative.
	ErrInvalidTimeout = errors.New("redis: invalid timeout value")
)
