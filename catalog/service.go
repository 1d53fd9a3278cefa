// Package catalog serves the product listing from a short-lived
// cache plus the admin write surface that keeps the cache honest.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/grocerly/storefront/core/clock"
	"github.com/grocerly/storefront/core/collection"
	"github.com/grocerly/storefront/core/tag"
	"github.com/grocerly/storefront/core/validator"
	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/gateway"
	"github.com/grocerly/storefront/log"
)

// Config for the catalog service.
type Config struct {
	// ProductsTTL in milliseconds.
	ProductsTTL int64 `default:"300000"`
}

// ApplyDefaults fills zero fields from struct tags.
func (c *Config) ApplyDefaults() error {
	return tag.ApplyDefaults(c)
}

// Service is the products view plus the admin write surface.
type Service struct {
	gateway       *gateway.Client
	products      *collection.Cache[Product]
	categories    *collection.Cache[Category]
	subcategories *collection.Cache[SubCategory]
	logger        *log.Logger
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

// New creates the catalog service.
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
	ttl := time.Duration(cfg.ProductsTTL) * time.Millisecond
	s.products = collection.New(ttl, s.loadProducts, o.clock)
	s.categories = collection.New(ttl, s.loadCategories, o.clock)
	s.subcategories = collection.New(ttl, s.loadSubcategories, o.clock)
	return s, nil
}

// fetchList grabs a collection endpoint, authenticated when a session
// exists and anonymously otherwise, so the public listing works for
// visitors too.
func fetchList[T any](s *Service, ctx context.Context, endpoint string) ([]T, error) {
	var items []T
	opts := []func(*gateway.RequestOption){
		gateway.WithContext(ctx),
		gateway.WithResponse(&items),
	}

	var resp *http.Response
	var err error
	if s.gateway.Sessions().Authenticated() {
		resp, err = s.gateway.Get(endpoint, opts...)
	} else {
		resp, err = s.gateway.Do(http.MethodGet, endpoint, nil, opts...)
	}
	if err != nil {
		return nil, err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return nil, respErr
	}
	return items, nil
}

func (s *Service) loadProducts(ctx context.Context) ([]Product, error) {
	return fetchList[Product](s, ctx, "api/products")
}

func (s *Service) loadCategories(ctx context.Context) ([]Category, error) {
	return fetchList[Category](s, ctx, "api/categories")
}

func (s *Service) loadSubcategories(ctx context.Context) ([]SubCategory, error) {
	return fetchList[SubCategory](s, ctx, "api/subcategories")
}

// Load fills the product cache unless it is still fresh.
func (s *Service) Load(ctx context.Context) error {
	return s.products.Fetch(ctx, false)
}

// Refresh reloads the product cache regardless of freshness.
func (s *Service) Refresh(ctx context.Context) error {
	return s.products.Fetch(ctx, true)
}

// LoadCategories fills the category and subcategory caches.
func (s *Service) LoadCategories(ctx context.Context) error {
	if err := s.categories.Fetch(ctx, false); err != nil {
		return err
	}
	return s.subcategories.Fetch(ctx, false)
}

// Products returns the cached listing.
func (s *Service) Products() []Product {
	return s.products.Items()
}

// Categories returns the cached category list.
func (s *Service) Categories() []Category {
	return s.categories.Items()
}

// Subcategories returns the cached subcategory list.
func (s *Service) Subcategories() []SubCategory {
	return s.subcategories.Items()
}

// Err returns the last product load failure, if any.
func (s *Service) Err() error {
	return s.products.Err()
}

// ByID looks a product up in the cache.
func (s *Service) ByID(id int64) (Product, bool) {
	return s.products.Find(func(p Product) bool { return p.ID == id })
}

// ByCategory filters by category id.
func (s *Service) ByCategory(categoryID int64) []Product {
	return s.products.Filter(func(p Product) bool {
		return p.Category != nil && p.Category.ID == categoryID
	})
}

// ByCategorySlug filters by category slug.
func (s *Service) ByCategorySlug(slug string) []Product {
	return s.products.Filter(func(p Product) bool {
		return p.Category != nil && p.Category.Slug == slug
	})
}

// InStock returns only purchasable products.
func (s *Service) InStock() []Product {
	return s.products.Filter(Product.InStock)
}

// Search matches name, brand and description, case-insensitively.
func (s *Service) Search(query string) []Product {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	return s.products.Filter(func(p Product) bool {
		return strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Brand), q) ||
			strings.Contains(strings.ToLower(p.Description), q)
	})
}

// requirePrivileged gates the admin surface. The backend re-checks,
// this only saves a doomed round trip.
func (s *Service) requirePrivileged() error {
	if !s.gateway.Sessions().IsPrivileged() {
		return errors.Forbidden("admin access required")
	}
	return nil
}

// Create adds a product and folds the confirmed record into the cache.
func (s *Service) Create(ctx context.Context, input ProductInput) (Product, error) {
	if err := s.requirePrivileged(); err != nil {
		return Product{}, err
	}
	if err := validator.Validate.StructCtx(ctx, input); err != nil {
		return Product{}, errors.Invalid("product: %s", err)
	}

	var created Product
	resp, err := s.gateway.Post("api/products", input,
		gateway.WithContext(ctx), gateway.WithResponse(&created))
	if err != nil {
		return Product{}, err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return Product{}, respErr
	}

	s.products.Update(func(items []Product) []Product {
		return append(items, created)
	})
	s.logger.Info().Int64("product_id", created.ID).Msg("product created")
	return created, nil
}

// Update patches a product and reconciles the cached copy.
func (s *Service) Update(ctx context.Context, id int64, patch map[string]any) (Product, error) {
	if err := s.requirePrivileged(); err != nil {
		return Product{}, err
	}

	var updated Product
	resp, err := s.gateway.Patch(fmt.Sprintf("api/products/%d", id), patch,
		gateway.WithContext(ctx), gateway.WithResponse(&updated))
	if err != nil {
		return Product{}, err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return Product{}, respErr
	}

	s.products.Update(func(items []Product) []Product {
		for i := range items {
			if items[i].ID == id {
				items[i] = updated
				break
			}
		}
		return items
	})
	return updated, nil
}

// Delete removes a product from the backend and the cache.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.requirePrivileged(); err != nil {
		return err
	}

	resp, err := s.gateway.Delete(fmt.Sprintf("api/products/%d", id),
		gateway.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if respErr := errors.FromResponse(resp); respErr != nil {
		return respErr
	}

	s.products.Update(func(items []Product) []Product {
		out := items[:0]
		for _, p := range items {
			if p.ID != id {
				out = append(out, p)
			}
		}
		return out
	})
	s.logger.Info().Int64("product_id", id).Msg("product deleted")
	return nil
}

// CreateCategory adds a category and caches the confirmed record.
func (s *Service) CreateCategory(ctx context.Context, name, slug string) (Category, error) {
	if err := s.requirePrivileged(); err != nil {
		return Category{}, err
	}

	var created Category
	resp, err := s.gateway.Post("api/categories", map[string]string{"name": name, "slug": slug},
		gateway.WithContext(ctx), gateway.WithResponse(&created))
	if err != nil {
		return Category{}, err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return Category{}, respErr
	}

	s.categories.Update(func(items []Category) []Category {
		return append(items, created)
	})
	return created, nil
}

// CreateSubCategory adds a subcategory and caches the confirmed
// record.
func (s *Service) CreateSubCategory(ctx context.Context, name string) (SubCategory, error) {
	if err := s.requirePrivileged(); err != nil {
		return SubCategory{}, err
	}

	var created SubCategory
	resp, err := s.gateway.Post("api/subcategories", map[string]string{"name": name},
		gateway.WithContext(ctx), gateway.WithResponse(&created))
	if err != nil {
		return SubCategory{}, err
	}
	if respErr := errors.FromResponse(resp); respErr != nil {
		return SubCategory{}, respErr
	}

	s.subcategories.Update(func(items []SubCategory) []SubCategory {
		return append(items, created)
	})
	return created, nil
}
