// Package users serves the admin user directory and profile updates.
// The directory is staff-only; the gate here just spares a doomed
// request, the backend enforces the real check.
package users

import (
	"context"
	"strings"
	"time"

	"github.com/grocerly/storefront/core/clock"
	"github.com/grocerly/storefront/core/collection"
	"github.com/grocerly/storefront/core/tag"
	"github.com/grocerly/storefront/core/validator"
	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/gateway"
	"github.com/grocerly/storefront/log"
	"github.com/grocerly/storefront/session"
)

// User is one row of the admin directory.
type User struct {
	ID          int64           `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	IsStaff     bool            `json:"is_staff"`
	IsSuperuser bool            `json:"is_superuser"`
	Profile     session.Profile `json:"profile"`
	DateJoined  time.Time       `json:"date_joined"`
}

// ProfileInput is the payload for profile updates.
type ProfileInput struct {
	FullName string `json:"full_name" validate:"required"`
	DOB      string `json:"dob,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Mobile   string `json:"mobile,omitempty"`
	Address  string `json:"address,omitempty"`
}

// Config for the users service.
type Config struct {
	// UsersTTL in milliseconds.
	UsersTTL int64 `default:"300000"`
}

// ApplyDefaults fills zero fields from struct tags.
func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

// Service is the cached admin directory plus the profile surface.
type Service struct {
	gateway *gateway.Client
	users   *collection.Cache[User]
	logger  *log.Logger
}

// Option configures the service.
type Option func(*options)

type options struct {
	logger *log.Logger
	clock  clock.Clock
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the clock driving cache expiry.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// New creates the users service bound to the gateway's session.
func New(cfg *Config, gw *gateway.Client, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}

	o := &options{logger: log.G}
	for _, opt := range opts {
		opt(o)
	}

	s := &Service{gateway: gw, logger: o.logger}
	s.users = collection.New(time.Duration(cfg.UsersTTL)*time.Millisecond, s.loadUsers, o.clock)

	gw.Sessions().OnLogout(s.users.Clear)
	return s, nil
}

func (s *Service) loadUsers(ctx context.Context) ([]User, error) {
	var rows []User
	resp, err := s.gateway.Get("api/users/all",
		gateway.WithContext(ctx), gateway.WithResponse(&rows))
	if err != nil {
		return nil, err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return nil, respErr
	}
	return rows, nil
}

// Load fills the directory. Non-staff callers get Forbidden and an
// empty cache; a backend 403 lands the same way.
func (s *Service) Load(ctx context.Context) error {
	if !s.gateway.Sessions().IsPrivileged() {
		s.users.Clear()
		return errors.Forbidden("admin access required")
	}

	err := s.users.Fetch(ctx, false)
	if errors.IsKind(err, errors.KindForbidden) {
		s.users.Clear()
	}
	return err
}

// Users returns the cached directory.
func (s *Service) Users() []User {
	return s.users.Items()
}

// Err returns the last load failure, if any.
func (s *Service) Err() error {
	return s.users.Err()
}

// ByID looks a user up in the cache.
func (s *Service) ByID(id int64) (User, bool) {
	return s.users.Find(func(u User) bool { return u.ID == id })
}

// Search matches username and email, case-insensitively.
func (s *Service) Search(query string) []User {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	return s.users.Filter(func(u User) bool {
		return strings.Contains(strings.ToLower(u.Username), q) ||
			strings.Contains(strings.ToLower(u.Email), q)
	})
}

// UpdateProfile saves the signed-in user's profile and folds the
// confirmed identity back into the session.
func (s *Service) UpdateProfile(ctx context.Context, input ProfileInput) (session.Identity, error) {
	if !s.gateway.Sessions().Authenticated() {
		return session.Identity{}, errors.Unauthenticated("sign in to edit the profile")
	}
	if err := validator.Validate.StructCtx(ctx, input); err != nil {
		return session.Identity{}, errors.Invalid("profile: %s", err)
	}

	var updated session.Identity
	resp, err := s.gateway.Put("api/users/profile/update", input,
		gateway.WithContext(ctx), gateway.WithResponse(&updated))
	if err != nil {
		return session.Identity{}, err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return session.Identity{}, respErr
	}

	s.gateway.Sessions().UpdateIdentity(ctx, updated)
	s.logger.Info().Str("username", updated.Username).Msg("profile updated")
	return updated, nil
}
