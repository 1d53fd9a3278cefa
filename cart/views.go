package cart

import (
	"github.com/grocerly/storefront/catalog"
	"github.com/grocerly/storefront/core/remote"
)

// Lines returns a copy of the cart.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// LineFor returns the line holding a product, if any.
func (c *Cart) LineFor(productID int64) (Line, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lineForLocked(productID)
}

// InStock returns the purchasable lines.
func (c *Cart) InStock() []Line {
	return c.filter(func(l Line) bool { return l.Product.InStock() })
}

// OutOfStock returns the lines that cannot be bought right now.
func (c *Cart) OutOfStock() []Line {
	return c.filter(func(l Line) bool { return !l.Product.InStock() })
}

func (c *Cart) filter(pred func(Line) bool) []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Line
	for _, line := range c.lines {
		if pred(line) {
			out = append(out, line)
		}
	}
	return out
}

// Total sums the in-stock lines only. Out-of-stock lines stay in the
// cart but never count toward the bill.
func (c *Cart) Total() catalog.Price {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total catalog.Price
	for _, line := range c.lines {
		if line.Product.InStock() {
			total += line.Subtotal()
		}
	}
	return total
}

// IsUpdating reports whether a mutation on the line is in flight.
func (c *Cart) IsUpdating(id remote.ID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id.IsPending() {
		return true
	}
	_, busy := c.pending[id.String()]
	return busy
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}
