package catalog

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

const (
	StockStatusIn  = "in_stock"
	StockStatusOut = "out_of_stock"
)

// Price accepts both JSON numbers and the quoted decimals the backend
// emits ("12.50").
type Price float64

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*p = Price(v)
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(p))
}

// Category groups products under a URL slug.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// SubCategory is a secondary label, many per product.
type SubCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Product is a catalog entry. Quantity is the pack label ("1kg"),
// not a count.
type Product struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Image         string        `json:"image"`
	Quantity      string        `json:"quantity"`
	CostPrice     Price         `json:"cost_price"`
	RetailPrice   Price         `json:"retail_price"`
	SellingPrice  Price         `json:"selling_price"`
	StockStatus   string        `json:"stock_status"`
	Category      *Category     `json:"category"`
	Subcategories []SubCategory `json:"subcategories"`
	Description   string        `json:"description"`
	Brand         string        `json:"brand"`
	Manufacturer  string        `json:"manufacturer"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// InStock reports whether the product can be bought right now.
func (p Product) InStock() bool {
	return p.StockStatus == StockStatusIn
}

// DiscountPercent is the markdown from retail to selling price,
// rounded down. Zero when there is no retail price or no markdown.
func (p Product) DiscountPercent() int {
	if p.RetailPrice <= 0 || p.SellingPrice >= p.RetailPrice {
		return 0
	}
	return int(float64(p.RetailPrice-p.SellingPrice) / float64(p.RetailPrice) * 100)
}

// ProductInput is the write payload for the admin surface.
type ProductInput struct {
	Name             string  `json:"name" validate:"required"`
	Image            string  `json:"image,omitempty"`
	Quantity         string  `json:"quantity" validate:"required"`
	CostPrice        Price   `json:"cost_price,omitempty"`
	RetailPrice      Price   `json:"retail_price,omitempty"`
	SellingPrice     Price   `json:"selling_price" validate:"required,gt=0"`
	StockStatus      string  `json:"stock_status,omitempty"`
	CategoryID       int64   `json:"category_id" validate:"required"`
	SubcategoriesIDs []int64 `json:"subcategories_ids"`
	Description      string  `json:"description,omitempty"`
	Brand            string  `json:"brand,omitempty"`
	Manufacturer     string  `json:"manufacturer,omitempty"`
}
