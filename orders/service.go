// Package orders places orders from the cart and serves the order
// history from a short-lived cache. Placing is never optimistic: an
// order exists only once the backend says so.
package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/grocerly/storefront/cart"
	"github.com/grocerly/storefront/core/clock"
	"github.com/grocerly/storefront/core/collection"
	"github.com/grocerly/storefront/core/tag"
	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/gateway"
	"github.com/grocerly/storefront/log"
	"github.com/grocerly/storefront/notice"
)

// Config for the orders service.
type Config struct {
	// OrdersTTL in milliseconds.
	OrdersTTL int64 `default:"120000"`
}

// ApplyDefaults fills zero fields from struct tags.
func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

// Service is the order history plus placement and the admin status
// surface.
type Service struct {
	gateway  *gateway.Client
	orders   *collection.Cache[Order]
	notifier notice.Notifier
	logger   *log.Logger
	clock    clock.Clock

	mu      sync.Mutex
	pending map[int64]struct{}
}

// Option configures the service.
type Option func(*options)

type options struct {
	notifier notice.Notifier
	logger   *log.Logger
	clock    clock.Clock
}

// WithNotifier sets where user-facing notices go.
func WithNotifier(n notice.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock sets the clock driving cache expiry.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// New creates the orders service bound to the gateway's session.
func New(cfg *Config, gw *gateway.Client, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}

	o := &options{notifier: notice.NoOp{}, logger: log.G}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = clock.System()
	}

	s := &Service{
		gateway:  gw,
		notifier: o.notifier,
		logger:   o.logger,
		clock:    o.clock,
		pending:  make(map[int64]struct{}),
	}
	s.orders = collection.New(time.Duration(cfg.OrdersTTL)*time.Millisecond, s.loadOrders, o.clock)

	gw.Sessions().OnLogout(s.orders.Clear)
	return s, nil
}

func (s *Service) notify(ctx context.Context, level notice.Level, message string) {
	s.notifier.Notify(ctx, notice.Notice{Level: level, Message: message, At: s.clock.Now()})
}

func (s *Service) loadOrders(ctx context.Context) ([]Order, error) {
	var rows []Order
	resp, err := s.gateway.Get("api/orders",
		gateway.WithContext(ctx), gateway.WithResponse(&rows))
	if err != nil {
		return nil, err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return nil, respErr
	}
	return rows, nil
}

// Load fills the cache unless it is still fresh. Without a session
// the history stays empty and no request is made.
func (s *Service) Load(ctx context.Context) error {
	if !s.gateway.Sessions().Authenticated() {
		s.orders.Clear()
		return nil
	}
	return s.orders.Fetch(ctx, false)
}

// Refresh reloads the cache regardless of freshness.
func (s *Service) Refresh(ctx context.Context) error {
	if !s.gateway.Sessions().Authenticated() {
		s.orders.Clear()
		return nil
	}
	return s.orders.Fetch(ctx, true)
}

// Place turns the purchasable cart lines into an order. The backend
// builds the order from the server-side cart, so there is nothing to
// apply optimistically; on success the consumed lines leave the local
// cart and the history is marked stale.
func (s *Service) Place(ctx context.Context, basket *cart.Cart) (Order, error) {
	sessions := s.gateway.Sessions()
	if !sessions.Authenticated() {
		s.notify(ctx, notice.LevelWarning, "sign in to place an order")
		return Order{}, errors.Unauthenticated("sign in to place an order")
	}
	if sessions.IsPrivileged() {
		s.notify(ctx, notice.LevelWarning, "staff accounts cannot shop")
		return Order{}, errors.Forbidden("staff accounts cannot shop")
	}
	if len(basket.InStock()) == 0 {
		s.notify(ctx, notice.LevelWarning, "nothing in the cart is available to order")
		return Order{}, errors.Invalid("no purchasable cart lines")
	}

	var placed Order
	resp, err := s.gateway.Post("api/orders", map[string]any{},
		gateway.WithContext(ctx), gateway.WithResponse(&placed))
	if err != nil {
		s.notify(ctx, notice.LevelError, "couldn't place the order")
		return Order{}, err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		s.notify(ctx, notice.LevelError, "couldn't place the order")
		return Order{}, respErr
	}

	basket.DropInStock()
	s.orders.Invalidate()
	s.logger.Info().Str("order", placed.Number).Msg("order placed")
	s.notify(ctx, notice.LevelInfo, fmt.Sprintf("order %s placed", placed.Number))
	return placed, nil
}

// UpdateStatus moves an order to a new stage (admin). The change is
// visible immediately and rolled back if the backend refuses. One
// in-flight change per order.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !s.gateway.Sessions().IsPrivileged() {
		return errors.Forbidden("admin access required")
	}
	if !status.Valid() {
		return errors.Invalid("unknown status %q", status)
	}

	s.mu.Lock()
	if _, busy := s.pending[id]; busy {
		s.mu.Unlock()
		return errors.Conflict("status update already in flight")
	}

	previous, found := s.orders.Find(func(o Order) bool { return o.ID == id })
	if !found {
		s.mu.Unlock()
		return errors.NotFound("no such order")
	}
	s.pending[id] = struct{}{}
	s.mu.Unlock()

	s.setStatus(id, status)

	var updated Order
	resp, err := s.gateway.Patch(fmt.Sprintf("api/orders/%d", id),
		map[string]any{"status": status},
		gateway.WithContext(ctx), gateway.WithResponse(&updated))

	var failure error
	if err != nil {
		failure = err
	} else if respErr := errors.FromResponse(resp); respErr != nil {
		failure = respErr
	}

	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()

	if failure != nil {
		s.setStatus(id, previous.Status)
		s.logger.Warn().Err(failure).Int64("order_id", id).Msg("status update rejected")
		s.notify(ctx, notice.LevelError, fmt.Sprintf("couldn't update order %s", previous.Number))
		return failure
	}

	// adopt the server's record wholesale
	s.orders.Update(func(items []Order) []Order {
		for i := range items {
			if items[i].ID == id {
				items[i] = updated
				break
			}
		}
		return items
	})
	return nil
}

func (s *Service) setStatus(id int64, status Status) {
	s.orders.Update(func(items []Order) []Order {
		for i := range items {
			if items[i].ID == id {
				items[i].Status = status
				break
			}
		}
		return items
	})
}

// Orders returns the cached history.
func (s *Service) Orders() []Order {
	return s.orders.Items()
}

// Err returns the last load failure, if any.
func (s *Service) Err() error {
	return s.orders.Err()
}

// ByID looks an order up in the cache.
func (s *Service) ByID(id int64) (Order, bool) {
	return s.orders.Find(func(o Order) bool { return o.ID == id })
}

// ByUser filters by username.
func (s *Service) ByUser(username string) []Order {
	return s.orders.Filter(func(o Order) bool { return o.Username == username })
}

// ByStatus filters by lifecycle stage.
func (s *Service) ByStatus(status Status) []Order {
	return s.orders.Filter(func(o Order) bool { return o.Status == status })
}

// Pending returns the orders not yet being prepared.
func (s *Service) Pending() []Order {
	return s.ByStatus(StatusPending)
}

// Completed returns the fulfilled orders.
func (s *Service) Completed() []Order {
	return s.ByStatus(StatusCompleted)
}

// Cancelled returns the cancelled orders.
func (s *Service) Cancelled() []Order {
	return s.ByStatus(StatusCancelled)
}

// Active returns the orders still moving through the pipeline.
func (s *Service) Active() []Order {
	return s.orders.Filter(func(o Order) bool { return o.Status.Active() })
}

// Mine returns the signed-in user's orders.
func (s *Service) Mine() []Order {
	sess, ok := s.gateway.Sessions().Current()
	if !ok {
		return nil
	}
	return s.ByUser(sess.Identity.Username)
}

// ProductCount is one row of the best-sellers aggregate.
type ProductCount struct {
	ProductID int64
	Name      string
	Count     int
}

// TopProducts aggregates quantities across all cached orders and
// returns the n best sellers.
func (s *Service) TopProducts(n int) []ProductCount {
	counts := make(map[int64]*ProductCount)
	for _, order := range s.orders.Items() {
		for _, item := range order.Items {
			pc, ok := counts[item.ProductID]
			if !ok {
				pc = &ProductCount{ProductID: item.ProductID, Name: item.Product.Name}
				counts[item.ProductID] = pc
			}
			pc.Count += item.Quantity
		}
	}

	out := make([]ProductCount, 0, len(counts))
	for _, pc := range counts {
		out = append(out, *pc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ProductID < out[j].ProductID
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
