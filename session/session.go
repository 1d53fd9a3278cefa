// Package session owns the authenticated state: login, registration,
// token refresh and the persisted session record. Everything else
// reaches the backend through a gateway that asks this package for a
// usable access token first.
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/grocerly/storefront/core/clock"
	"github.com/grocerly/storefront/core/validator"
	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/log"
	"github.com/grocerly/storefront/storage"
)

// Store holds the current session and keeps the persisted copy in
// step with every mutation.
type Store struct {
	mu      sync.Mutex
	config  *Config
	storage storage.Store
	client  *http.Client
	clock   clock.Clock
	logger  *log.Logger

	session  *Session
	onLogout []func()
}

// New builds a Store and hydrates it from the persisted record if one
// exists.
func New(cfg *Config, store storage.Store, opts ...Option) (*Store, error) {
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := validator.Validate.Struct(cfg); err != nil {
		return nil, errors.Invalid("session: %s", err)
	}

	s := &Store{
		config:  cfg,
		storage: store,
		clock:   clock.System(),
		logger:  log.G,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: time.Duration(cfg.HTTPTimeout) * time.Millisecond}
	}

	s.hydrate()
	return s, nil
}

func (s *Store) hydrate() {
	data, err := s.storage.Get(context.Background(), s.config.StorageKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("session record unreadable")
		}
		return
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn().Err(err).Msg("session record corrupt, discarding")
		s.storage.Delete(context.Background(), s.config.StorageKey)
		return
	}

	s.session = &sess
	s.logger.Debug().Str("username", sess.Identity.Username).Msg("session restored")
}

// Login authenticates and replaces any existing session.
func (s *Store) Login(ctx context.Context, username, password string) (Identity, error) {
	payload := map[string]string{"username": username, "password": password}
	return s.authenticate(ctx, s.endpoint("/api/users/login/"), payload)
}

// Register creates an account. The backend signs the new account in,
// so a successful registration also replaces the session.
func (s *Store) Register(ctx context.Context, input RegisterInput) (Identity, error) {
	if err := validator.Validate.StructCtx(ctx, input); err != nil {
		return Identity{}, errors.Invalid("register: %s", err)
	}
	return s.authenticate(ctx, s.endpoint("/api/users/register/"), input)
}

func (s *Store) authenticate(ctx context.Context, url string, payload any) (Identity, error) {
	resp, err := s.postJSON(ctx, url, payload)
	if err != nil {
		return Identity{}, errors.Transport("authentication request failed").WithCause(err)
	}
	defer resp.Body.Close()

	if authErr := errors.FromResponse(resp); authErr != nil {
		return Identity{}, authErr
	}

	var login loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		return Identity{}, errors.Rejected("malformed authentication response").WithCause(err)
	}

	sess := login.session()

	s.mu.Lock()
	s.session = sess
	s.persistLocked(ctx)
	s.mu.Unlock()

	s.logger.Info().Str("username", sess.Identity.Username).Msg("signed in")
	return sess.Identity, nil
}

// Logout clears the session, removes the persisted record and fires
// every registered hook.
func (s *Store) Logout() {
	s.mu.Lock()
	hooks := s.clearLocked()
	s.mu.Unlock()

	s.fireHooks(hooks)
}

// clearLocked drops the session and returns the hooks to fire once
// the mutex is released. Returns nil when there was no session.
func (s *Store) clearLocked() []func() {
	if s.session == nil {
		return nil
	}
	s.session = nil
	s.storage.Delete(context.Background(), s.config.StorageKey)
	hooks := make([]func(), len(s.onLogout))
	copy(hooks, s.onLogout)
	return hooks
}

func (s *Store) fireHooks(hooks []func()) {
	if hooks == nil {
		return
	}
	for _, hook := range hooks {
		hook()
	}
	s.logger.Info().Msg("signed out")
}

// OnLogout registers a hook fired after the session is cleared.
// Services use this to drop per-user state.
func (s *Store) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onLogout = append(s.onLogout, fn)
}

// Current returns a copy of the session, if any.
func (s *Store) Current() (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Session{}, false
	}
	return *s.session, true
}

// Authenticated reports whether a session exists.
func (s *Store) Authenticated() bool {
	_, ok := s.Current()
	return ok
}

// IsPrivileged reports whether the current user may reach admin
// surfaces. The token claims decide; the identity record is the
// fallback for tokens that omit them. The backend enforces the real
// check on every request.
func (s *Store) IsPrivileged() bool {
	sess, ok := s.Current()
	if !ok {
		return false
	}
	if claims, err := decodeClaims(sess.AccessToken); err == nil {
		if claims.IsStaff || claims.IsSuperuser {
			return true
		}
	}
	return sess.Identity.IsStaff || sess.Identity.IsSuperuser
}

// UpdateIdentity replaces the identity record, keeping the tokens.
func (s *Store) UpdateIdentity(ctx context.Context, identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return
	}
	s.session.Identity = identity
	s.persistLocked(ctx)
}

// AccessToken returns a token usable right now, refreshing first when
// the current one is expired or about to expire. No session yields an
// Unauthenticated error without touching the network; a failed
// refresh signs the user out and yields SessionExpired.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()

	if s.session == nil {
		s.mu.Unlock()
		return "", errors.Unauthenticated("no active session")
	}

	token := s.session.AccessToken
	leeway := time.Duration(s.config.RefreshLeeway) * time.Millisecond
	if !expiresWithin(token, s.clock, leeway) {
		s.mu.Unlock()
		return token, nil
	}

	return s.refreshLocked(ctx)
}

// RefreshAccessToken forces a refresh regardless of expiry. Used by
// the proactive refresher.
func (s *Store) RefreshAccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return "", errors.Unauthenticated("no active session")
	}
	return s.refreshLocked(ctx)
}

// refreshLocked exchanges the refresh token for a new access token.
// The mutex is held across the network call so concurrent callers
// serialize; whoever runs second finds a fresh token via the expiry
// check and never reaches here. The mutex is released before return.
func (s *Store) refreshLocked(ctx context.Context) (string, error) {
	token, cause := s.exchangeLocked(ctx)
	if cause == nil {
		s.mu.Unlock()
		s.logger.Debug().Msg("access token refreshed")
		return token, nil
	}

	hooks := s.clearLocked()
	s.mu.Unlock()

	s.logger.Warn().Err(cause).Msg("token refresh failed")
	s.fireHooks(hooks)
	return "", errors.SessionExpired("session expired, sign in again").WithCause(cause)
}

// exchangeLocked performs the refresh call and installs the new token
// on success.
func (s *Store) exchangeLocked(ctx context.Context) (string, error) {
	url := s.endpoint("/api/users/token/refresh/")
	payload := map[string]string{"refresh": s.session.RefreshToken}

	resp, err := s.postJSON(ctx, url, payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if respErr := errors.FromResponse(resp); respErr != nil {
		return "", respErr
	}

	var body struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Access == "" {
		return "", errors.Rejected("refresh response missing access token")
	}

	s.session.AccessToken = body.Access
	s.persistLocked(ctx)
	return body.Access, nil
}

// persistLocked writes the session to storage. Persistence failures
// are logged, not returned: the in-memory session stays authoritative.
func (s *Store) persistLocked(ctx context.Context) {
	data, err := json.Marshal(s.session)
	if err != nil {
		s.logger.Error().Err(err).Msg("session marshal failed")
		return
	}
	if err := s.storage.Set(ctx, s.config.StorageKey, data); err != nil {
		s.logger.Error().Err(err).Msg("session persist failed")
	}
}

func (s *Store) postJSON(ctx context.Context, url string, payload any) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.client.Do(req)
}

func (s *Store) endpoint(path string) string {
	return strings.TrimSuffix(s.config.BaseURL, "/") + path
}
