// Package cart keeps the shopping cart responsive by applying every
// mutation locally first and reconciling with the backend after. A
// rejected mutation puts the line back exactly as it was and tells
// the user; it never leaves phantom state behind.
package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/grocerly/storefront/catalog"
	"github.com/grocerly/storefront/core/clock"
	"github.com/grocerly/storefront/core/remote"
	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/gateway"
	"github.com/grocerly/storefront/log"
	"github.com/grocerly/storefront/notice"
)

// Line is one cart entry. At most one line exists per product.
type Line struct {
	ID        remote.ID
	ProductID int64
	Quantity  int
	Product   catalog.Product
}

// Subtotal is the line's price contribution.
func (l Line) Subtotal() catalog.Price {
	return l.Product.SellingPrice * catalog.Price(l.Quantity)
}

// row is the wire shape of a cart entry.
type row struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product"`
	Quantity  int   `json:"quantity"`
}

// Cart holds the lines and the set of mutations still in flight.
type Cart struct {
	mu       sync.Mutex
	gateway  *gateway.Client
	catalog  *catalog.Service
	notifier notice.Notifier
	logger   *log.Logger
	clock    clock.Clock

	lines   []Line
	pending map[string]struct{}
}

// Option configures the cart.
type Option func(*Cart)

// WithNotifier sets where user-facing notices go.
func WithNotifier(n notice.Notifier) Option {
	return func(c *Cart) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Cart) { c.logger = logger }
}

// WithClock sets the clock stamped onto notices.
func WithClock(clk clock.Clock) Option {
	return func(c *Cart) { c.clock = clk }
}

// New creates a cart bound to the gateway's session: signing out
// clears it.
func New(gw *gateway.Client, products *catalog.Service, opts ...Option) *Cart {
	c := &Cart{
		gateway:  gw,
		catalog:  products,
		notifier: notice.NoOp{},
		logger:   log.G,
		clock:    clock.System(),
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	gw.Sessions().OnLogout(c.Clear)
	return c
}

func (c *Cart) notify(ctx context.Context, level notice.Level, message string) {
	c.notifier.Notify(ctx, notice.Notice{Level: level, Message: message, At: c.clock.Now()})
}

// gate rejects cart use for visitors and staff accounts. Both cases
// produce a notice and stop before any network or state change.
func (c *Cart) gate(ctx context.Context) error {
	sessions := c.gateway.Sessions()
	if !sessions.Authenticated() {
		c.notify(ctx, notice.LevelWarning, "sign in to use the cart")
		return errors.Unauthenticated("sign in to use the cart")
	}
	if sessions.IsPrivileged() {
		c.notify(ctx, notice.LevelWarning, "staff accounts cannot shop")
		return errors.Forbidden("staff accounts cannot shop")
	}
	return nil
}

// join attaches the cached product detail to a line.
func (c *Cart) join(line Line) Line {
	if c.catalog != nil {
		if product, ok := c.catalog.ByID(line.ProductID); ok {
			line.Product = product
		}
	}
	return line
}

// Load replaces the lines with the server's cart.
func (c *Cart) Load(ctx context.Context) error {
	if err := c.gate(ctx); err != nil {
		return err
	}

	var rows []row
	resp, err := c.gateway.Get("api/cart",
		gateway.WithContext(ctx), gateway.WithResponse(&rows))
	if err != nil {
		return err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return respErr
	}

	lines := make([]Line, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, c.join(Line{
			ID:        remote.Confirmed(r.ID),
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
		}))
	}

	c.mu.Lock()
	c.lines = lines
	c.mu.Unlock()
	return nil
}

// Add puts a product in the cart. A product already present becomes a
// +1 quantity update instead, keeping one line per product.
func (c *Cart) Add(ctx context.Context, product catalog.Product) error {
	if err := c.gate(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if existing, ok := c.lineForLocked(product.ID); ok {
		qty := existing.Quantity + 1
		id := existing.ID
		c.mu.Unlock()
		return c.UpdateQuantity(ctx, id, qty)
	}

	line := Line{
		ID:        remote.NewPending(),
		ProductID: product.ID,
		Quantity:  1,
		Product:   product,
	}
	c.lines = append(c.lines, line)
	c.pending[line.ID.String()] = struct{}{}
	c.mu.Unlock()

	var created row
	resp, err := c.gateway.Post("api/cart",
		map[string]any{"product": product.ID, "quantity": 1},
		gateway.WithContext(ctx), gateway.WithResponse(&created))

	var failure error
	if err != nil {
		failure = err
	} else if respErr := errors.FromResponse(resp); respErr != nil {
		failure = respErr
	}

	c.mu.Lock()
	delete(c.pending, line.ID.String())

	if failure != nil {
		c.removeLineLocked(line.ID)
		c.mu.Unlock()

		c.logger.Warn().Err(failure).Int64("product_id", product.ID).Msg("cart add rejected")
		c.notify(ctx, notice.LevelError, fmt.Sprintf("couldn't add %s to the cart", product.Name))
		return failure
	}

	// swap the placeholder id for the server's and adopt its values
	for i := range c.lines {
		if c.lines[i].ID.Equal(line.ID) {
			c.lines[i].ID = remote.Confirmed(created.ID)
			c.lines[i].Quantity = created.Quantity
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// UpdateQuantity sets a line's quantity. Below one the line is
// removed. The mutation applies locally first; a rejection restores
// the line exactly as it was, value and position.
func (c *Cart) UpdateQuantity(ctx context.Context, id remote.ID, qty int) error {
	if err := c.gate(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	if id.IsPending() {
		c.mu.Unlock()
		c.notify(ctx, notice.LevelInfo, "that item is still saving, try again in a moment")
		return errors.Conflict("line not yet confirmed")
	}
	if _, busy := c.pending[id.String()]; busy {
		c.mu.Unlock()
		c.notify(ctx, notice.LevelInfo, "that item is still saving, try again in a moment")
		return errors.Conflict("line update already in flight")
	}

	index, ok := c.indexOfLocked(id)
	if !ok {
		c.mu.Unlock()
		return errors.NotFound("no such cart line")
	}

	snapshot := c.lines[index]
	removing := qty < 1
	if removing {
		c.lines = append(c.lines[:index], c.lines[index+1:]...)
	} else {
		c.lines[index].Quantity = qty
	}
	c.pending[id.String()] = struct{}{}
	c.mu.Unlock()

	failure := c.syncQuantity(ctx, id, qty, removing)

	c.mu.Lock()
	delete(c.pending, id.String())

	if failure != nil {
		c.restoreLocked(snapshot, index)
		c.mu.Unlock()

		c.logger.Warn().Err(failure).Str("line", id.String()).Msg("cart update rejected")
		c.notify(ctx, notice.LevelError, fmt.Sprintf("couldn't update %s", snapshot.Product.Name))
		return failure
	}
	c.mu.Unlock()
	return nil
}

// syncQuantity performs the backend write for UpdateQuantity.
func (c *Cart) syncQuantity(ctx context.Context, id remote.ID, qty int, removing bool) error {
	endpoint := fmt.Sprintf("api/cart/%d", id.Server())

	if removing {
		resp, err := c.gateway.Delete(endpoint, gateway.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if respErr := errors.FromResponse(resp); respErr != nil {
			return respErr
		}
		return nil
	}

	var updated row
	resp, err := c.gateway.Patch(endpoint, map[string]any{"quantity": qty},
		gateway.WithContext(ctx), gateway.WithResponse(&updated))
	if err != nil {
		return err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return respErr
	}

	// fold the confirmed values into that line only
	c.mu.Lock()
	for i := range c.lines {
		if c.lines[i].ID.Equal(id) {
			c.lines[i].Quantity = updated.Quantity
			break
		}
	}
	c.mu.Unlock()
	return nil
}

// Remove takes a line out of the cart.
func (c *Cart) Remove(ctx context.Context, id remote.ID) error {
	return c.UpdateQuantity(ctx, id, 0)
}

// DropInStock removes the purchasable lines locally. Called after an
// order is placed, since the backend consumed exactly those lines.
func (c *Cart) DropInStock() {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.lines[:0]
	for _, line := range c.lines {
		if !line.Product.InStock() {
			kept = append(kept, line)
		}
	}
	c.lines = kept
}

// Clear drops all local state. Wired to logout.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	c.pending = make(map[string]struct{})
}

// restoreLocked puts a snapshot back. If the line still exists the
// value is restored in place, otherwise it is reinserted at its old
// position.
func (c *Cart) restoreLocked(snapshot Line, index int) {
	for i := range c.lines {
		if c.lines[i].ID.Equal(snapshot.ID) {
			c.lines[i] = snapshot
			return
		}
	}
	if index > len(c.lines) {
		index = len(c.lines)
	}
	c.lines = append(c.lines[:index], append([]Line{snapshot}, c.lines[index:]...)...)
}

func (c *Cart) lineForLocked(productID int64) (Line, bool) {
	for _, line := range c.lines {
		if line.ProductID == productID {
			return line, true
		}
	}
	return Line{}, false
}

func (c *Cart) indexOfLocked(id remote.ID) (int, bool) {
	for i := range c.lines {
		if c.lines[i].ID.Equal(id) {
			return i, true
		}
	}
	return 0, false
}

func (c *Cart) removeLineLocked(id remote.ID) {
	for i := range c.lines {
		if c.lines[i].ID.Equal(id) {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}
