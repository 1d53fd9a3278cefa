// Package app wires the whole client together: storage, session,
// gateway, the catalog and mutators, the token refresher and an
// orderly shutdown.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/grocerly/storefront/cart"
	"github.com/grocerly/storefront/catalog"
	"github.com/grocerly/storefront/core/clock"
	"github.com/grocerly/storefront/core/validator"
	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/gateway"
	"github.com/grocerly/storefront/log"
	"github.com/grocerly/storefront/notice"
	"github.com/grocerly/storefront/orders"
	"github.com/grocerly/storefront/session"
	"github.com/grocerly/storefront/storage"
	redisstore "github.com/grocerly/storefront/storage/redis"
	"github.com/grocerly/storefront/users"
	"github.com/grocerly/storefront/wishlist"
)

var ErrAlreadyStarted = errors.Internal("application already started")

// CloseFunc is a named shutdown step with its own timeout.
type CloseFunc struct {
	Name    string
	Fn      func(context.Context) error
	Timeout time.Duration
}

// App owns every component and their lifecycle.
type App struct {
	config *Config
	logger *log.Logger
	store  storage.Store

	Sessions *session.Store
	Gateway  *gateway.Client
	Catalog  *catalog.Service
	Cart     *cart.Cart
	Wishlist *wishlist.Wishlist
	Orders   *orders.Service
	Users    *users.Service
	Notices  *notice.ChannelNotifier

	refresher  *session.Refresher
	closeFuncs []CloseFunc

	mu      sync.Mutex
	started bool
}

// Option configures the app.
type Option func(*options)

type options struct {
	logger *log.Logger
	clock  clock.Clock
	store  storage.Store
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the clock shared by every component.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithStorage overrides the configured storage backend.
func WithStorage(store storage.Store) Option {
	return func(o *options) { o.store = store }
}

// New builds and wires every component from the config.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := validator.Validate.Struct(cfg); err != nil {
		return nil, errors.Invalid("config: %s", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.G
	}
	if o.clock == nil {
		o.clock = clock.System()
	}

	a := &App{config: cfg, logger: o.logger}

	store, err := a.buildStorage(o)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.registerClose("storage", func(context.Context) error { return store.Close() }, 5*time.Second)

	a.Sessions, err = session.New(&session.Config{
		BaseURL:         cfg.API.BaseURL,
		StorageKey:      cfg.Session.StorageKey,
		HTTPTimeout:     cfg.API.Timeout,
		RefreshLeeway:   cfg.Session.RefreshLeeway,
		RefreshInterval: cfg.Session.RefreshInterval,
	}, store, session.WithLogger(o.logger), session.WithClock(o.clock))
	if err != nil {
		return nil, err
	}

	a.Gateway, err = gateway.New(&gateway.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}, a.Sessions, gateway.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	a.Notices = notice.NewChannelNotifier(64)
	notifier := notice.Multi{a.Notices, notice.NewLogNotifier(o.logger)}

	a.Catalog, err = catalog.New(&catalog.Config{ProductsTTL: cfg.Cache.ProductsTTL},
		a.Gateway, catalog.WithLogger(o.logger), catalog.WithClock(o.clock))
	if err != nil {
		return nil, err
	}

	a.Cart = cart.New(a.Gateway, a.Catalog,
		cart.WithNotifier(notifier), cart.WithLogger(o.logger), cart.WithClock(o.clock))
	a.Wishlist = wishlist.New(a.Gateway,
		wishlist.WithNotifier(notifier), wishlist.WithLogger(o.logger), wishlist.WithClock(o.clock))

	a.Orders, err = orders.New(&orders.Config{OrdersTTL: cfg.Cache.OrdersTTL}, a.Gateway,
		orders.WithNotifier(notifier), orders.WithLogger(o.logger), orders.WithClock(o.clock))
	if err != nil {
		return nil, err
	}

	a.Users, err = users.New(&users.Config{UsersTTL: cfg.Cache.UsersTTL}, a.Gateway,
		users.WithLogger(o.logger), users.WithClock(o.clock))
	if err != nil {
		return nil, err
	}

	a.refresher, err = session.NewRefresher(a.Sessions, o.logger)
	if err != nil {
		return nil, err
	}
	a.registerClose("token-refresher", func(context.Context) error {
		a.refresher.Stop()
		return nil
	}, 10*time.Second)

	return a, nil
}

func (a *App) buildStorage(o *options) (storage.Store, error) {
	if o.store != nil {
		return o.store, nil
	}

	switch a.config.Storage.Backend {
	case "file":
		return storage.File(a.config.Storage.Dir)
	case "redis":
		cfg := a.config.Storage.Redis
		return redisstore.New(&cfg, redisstore.WithLogger(a.logger))
	default:
		return storage.Memory(), nil
	}
}

func (a *App) registerClose(name string, fn func(context.Context) error, timeout time.Duration) {
	a.closeFuncs = append(a.closeFuncs, CloseFunc{Name: name, Fn: fn, Timeout: timeout})
}

// Start begins the background token refresher.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return ErrAlreadyStarted
	}
	a.started = true

	a.refresher.Start()
	a.logger.Info().Msg("storefront client started")
	return nil
}

// Warm pre-fetches the collections through a small worker pool so the
// first screens render from cache. Failures are recorded on the
// caches, not returned; a cold cache is not fatal.
func (a *App) Warm(ctx context.Context) error {
	pool, err := ants.NewPool(3)
	if err != nil {
		return err
	}
	defer pool.Release()

	tasks := []func(){
		func() {
			if err := a.Catalog.Load(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("product warmup failed")
			}
		},
		func() {
			if err := a.Catalog.LoadCategories(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("category warmup failed")
			}
		},
		func() {
			if err := a.Orders.Load(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("order warmup failed")
			}
		},
	}
	if a.Sessions.IsPrivileged() {
		tasks = append(tasks, func() {
			if err := a.Users.Load(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("user warmup failed")
			}
		})
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		task := task
		if err := pool.Submit(func() {
			defer wg.Done()
			task()
		}); err != nil {
			wg.Done()
			a.logger.Warn().Err(err).Msg("warmup task not scheduled")
		}
	}
	wg.Wait()
	return nil
}

// Stop runs every registered close function, each under its own
// timeout. All of them run even when some fail; the first error is
// returned.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	closeFuncs := make([]CloseFunc, len(a.closeFuncs))
	copy(closeFuncs, a.closeFuncs)
	a.started = false
	a.mu.Unlock()

	eg := &errgroup.Group{}
	for _, cf := range closeFuncs {
		cf := cf
		eg.Go(func() error {
			closeCtx, cancel := context.WithTimeout(ctx, cf.Timeout)
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- cf.Fn(closeCtx) }()

			select {
			case err := <-done:
				if err != nil {
					a.logger.Error().Err(err).Str("name", cf.Name).Msg("close failed")
					return err
				}
				a.logger.Debug().Str("name", cf.Name).Msg("closed")
				return nil
			case <-closeCtx.Done():
				a.logger.Error().Str("name", cf.Name).Msg("close timed out")
				return errors.Internal("close %s timed out", cf.Name)
			}
		})
	}

	err := eg.Wait()
	a.logger.Info().Msg("storefront client stopped")
	return err
}
