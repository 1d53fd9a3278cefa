package orders

import (
	"time"

	"github.com/grocerly/storefront/catalog"
)

// Status is an order's lifecycle stage.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Active reports whether the order still needs attention.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady:
		return true
	}
	return false
}

// Valid reports whether s is a known lifecycle stage.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Item is one order line, priced at purchase time.
type Item struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product"`
	Product   catalog.Product `json:"product_detail"`
	Quantity  int             `json:"quantity"`
	Price     catalog.Price   `json:"price"`
}

// Order as the backend serializes it. Number looks like
// ORD-20260315-ALXY-0001.
type Order struct {
	ID        int64         `json:"id"`
	Number    string        `json:"order_number"`
	Username  string        `json:"user"`
	Status    Status        `json:"status"`
	Total     catalog.Price `json:"total_price"`
	Items     []Item        `json:"items"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
