// Package wishlist mirrors the cart's optimistic approach for the
// simpler save-for-later list: one entry per product, toggled on and
// off.
package wishlist

import (
	"context"
	"fmt"
	"sync"

	"github.com/grocerly/storefront/core/clock"
	"github.com/grocerly/storefront/core/remote"
	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/gateway"
	"github.com/grocerly/storefront/log"
	"github.com/grocerly/storefront/notice"
)

// Entry marks one product as saved.
type Entry struct {
	ID        remote.ID
	ProductID int64
}

type row struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product"`
}

// Wishlist holds the saved products and the per-product in-flight
// guard.
type Wishlist struct {
	mu       sync.Mutex
	gateway  *gateway.Client
	notifier notice.Notifier
	logger   *log.Logger
	clock    clock.Clock

	entries []Entry
	pending map[int64]struct{}
}

// Option configures the wishlist.
type Option func(*Wishlist)

// WithNotifier sets where user-facing notices go.
func WithNotifier(n notice.Notifier) Option {
	return func(w *Wishlist) { w.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(w *Wishlist) { w.logger = logger }
}

// WithClock sets the clock stamped onto notices.
func WithClock(clk clock.Clock) Option {
	return func(w *Wishlist) { w.clock = clk }
}

// New creates a wishlist bound to the gateway's session.
func New(gw *gateway.Client, opts ...Option) *Wishlist {
	w := &Wishlist{
		gateway:  gw,
		notifier: notice.NoOp{},
		logger:   log.G,
		clock:    clock.System(),
		pending:  make(map[int64]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	gw.Sessions().OnLogout(w.Clear)
	return w
}

func (w *Wishlist) notify(ctx context.Context, level notice.Level, message string) {
	w.notifier.Notify(ctx, notice.Notice{Level: level, Message: message, At: w.clock.Now()})
}

func (w *Wishlist) gate(ctx context.Context) error {
	sessions := w.gateway.Sessions()
	if !sessions.Authenticated() {
		w.notify(ctx, notice.LevelWarning, "sign in to save products")
		return errors.Unauthenticated("sign in to save products")
	}
	if sessions.IsPrivileged() {
		w.notify(ctx, notice.LevelWarning, "staff accounts cannot shop")
		return errors.Forbidden("staff accounts cannot shop")
	}
	return nil
}

// Load replaces the entries with the server's wishlist.
func (w *Wishlist) Load(ctx context.Context) error {
	if err := w.gate(ctx); err != nil {
		return err
	}

	var rows []row
	resp, err := w.gateway.Get("api/wishlist",
		gateway.WithContext(ctx), gateway.WithResponse(&rows))
	if err != nil {
		return err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return respErr
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, Entry{ID: remote.Confirmed(r.ID), ProductID: r.ProductID})
	}

	w.mu.Lock()
	w.entries = entries
	w.mu.Unlock()
	return nil
}

// Toggle saves the product, or unsaves it when already present. The
// flip is visible immediately and undone if the backend refuses.
func (w *Wishlist) Toggle(ctx context.Context, productID int64) error {
	if err := w.gate(ctx); err != nil {
		return err
	}

	w.mu.Lock()
	if _, busy := w.pending[productID]; busy {
		w.mu.Unlock()
		w.notify(ctx, notice.LevelInfo, "still saving, try again in a moment")
		return errors.Conflict("wishlist update already in flight")
	}

	if index, entry, ok := w.entryLocked(productID); ok {
		return w.removeLocked(ctx, index, entry)
	}
	return w.addLocked(ctx, productID)
}

// addLocked appends an optimistic entry and confirms it with the
// backend. Enters with the mutex held, returns with it released.
func (w *Wishlist) addLocked(ctx context.Context, productID int64) error {
	entry := Entry{ID: remote.NewPending(), ProductID: productID}
	w.entries = append(w.entries, entry)
	w.pending[productID] = struct{}{}
	w.mu.Unlock()

	var created row
	resp, err := w.gateway.Post("api/wishlist",
		map[string]any{"product": productID},
		gateway.WithContext(ctx), gateway.WithResponse(&created))

	var failure error
	if err != nil {
		failure = err
	} else if respErr := errors.FromResponse(resp); respErr != nil {
		failure = respErr
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, productID)

	if failure != nil {
		for i := range w.entries {
			if w.entries[i].ID.Equal(entry.ID) {
				w.entries = append(w.entries[:i], w.entries[i+1:]...)
				break
			}
		}
		w.logger.Warn().Err(failure).Int64("product_id", productID).Msg("wishlist add rejected")
		w.notify(ctx, notice.LevelError, "couldn't save that product")
		return failure
	}

	for i := range w.entries {
		if w.entries[i].ID.Equal(entry.ID) {
			w.entries[i].ID = remote.Confirmed(created.ID)
			break
		}
	}
	return nil
}

// removeLocked takes the entry out optimistically and deletes it on
// the backend. Enters with the mutex held, returns with it released.
func (w *Wishlist) removeLocked(ctx context.Context, index int, entry Entry) error {
	if entry.ID.IsPending() {
		w.mu.Unlock()
		w.notify(ctx, notice.LevelInfo, "still saving, try again in a moment")
		return errors.Conflict("entry not yet confirmed")
	}

	w.entries = append(w.entries[:index], w.entries[index+1:]...)
	w.pending[entry.ProductID] = struct{}{}
	w.mu.Unlock()

	endpoint := fmt.Sprintf("api/wishlist/%d", entry.ID.Server())
	resp, err := w.gateway.Delete(endpoint, gateway.WithContext(ctx))

	var failure error
	if err != nil {
		failure = err
	} else {
		defer resp.Body.Close()
		if respErr := errors.FromResponse(resp); respErr != nil {
			failure = respErr
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pending, entry.ProductID)

	if failure != nil {
		if index > len(w.entries) {
			index = len(w.entries)
		}
		w.entries = append(w.entries[:index], append([]Entry{entry}, w.entries[index:]...)...)

		w.logger.Warn().Err(failure).Int64("product_id", entry.ProductID).Msg("wishlist remove rejected")
		w.notify(ctx, notice.LevelError, "couldn't remove that product")
		return failure
	}
	return nil
}

// Contains reports whether the product is saved.
func (w *Wishlist) Contains(productID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, _, ok := w.entryLocked(productID)
	return ok
}

// Entries returns a copy of the wishlist.
func (w *Wishlist) Entries() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Clear drops all local state. Wired to logout.
func (w *Wishlist) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
	w.pending = make(map[int64]struct{})
}

func (w *Wishlist) entryLocked(productID int64) (int, Entry, bool) {
	for i, entry := range w.entries {
		if entry.ProductID == productID {
			return i, entry, true
		}
	}
	return 0, Entry{}, false
}
