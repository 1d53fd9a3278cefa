package session

import (
	"net/http"

	"github.com/grocerly/storefront/core/clock"
	"github.com/grocerly/storefront/log"
)

// Option configures the session store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the clock used for expiry checks.
func WithClock(clk clock.Clock) Option {
	return func(s *Store) {
		s.clock = clk
	}
}

// WithHTTPClient sets the client used for login, register and refresh.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		s.client = client
	}
}
