package redis

import (
	"time"

	"github.com/grocerly/storefront/log"
)

// Option configures the store.
type Option func(*storeOptions)

type storeOptions struct {
	logger *log.Logger
	ttl    time.Duration
}

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *log.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithTTL gives every record an expiry. Zero means records persist
// until deleted.
func WithTTL(ttl time.Duration) Option {
	return func(o *storeOptions) {
		o.ttl = ttl
	}
}

func applyOptions(opts []Option) *storeOptions {
	storeOpts := &storeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(storeOpts)
		}
	}
	return storeOpts
}
