package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerly/storefront/core/clock"
	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/gateway"
	"github.com/grocerly/storefront/session"
	"github.com/grocerly/storefront/storage"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, staff bool) string {
	t.Helper()

	claims := jwt.MapClaims{"exp": testNow.Add(24 * time.Hour).Unix()}
	if staff {
		claims["is_staff"] = true
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newBackend(t *testing.T, register func(*gin.Engine)) *httptest.Server {
	t.Helper()

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	register(engine)

	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	service *Service
	clock   *clock.Mock
	gateway *gateway.Client
}

func newFixture(t *testing.T, baseURL string) *fixture {
	t.Helper()

	clk := clock.NewMock(testNow)
	sessions, err := session.New(&session.Config{BaseURL: baseURL}, storage.Memory(),
		session.WithClock(clk))
	require.NoError(t, err)

	gw, err := gateway.New(&gateway.Config{BaseURL: baseURL}, sessions)
	require.NoError(t, err)

	svc, err := New(nil, gw, WithClock(clk))
	require.NoError(t, err)

	return &fixture{service: svc, clock: clk, gateway: gw}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.gateway.Sessions().Login(context.Background(), "admin", "secret123")
	require.NoError(t, err)
}

func stubLogin(e *gin.Engine, access string) {
	e.POST("/api/users/login/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"access":   access,
			"refresh":  "refresh-token",
			"username": "admin",
		})
	})
}

func productRows() []gin.H {
	return []gin.H{
		{
			"id": 1, "name": "Apple", "quantity": "1kg",
			"retail_price": "4.00", "selling_price": "3.00",
			"stock_status": "in_stock",
			"category":     gin.H{"id": 10, "name": "Fruits", "slug": "fruits"},
			"brand":        "Orchard",
		},
		{
			"id": 2, "name": "Milk", "quantity": "1L",
			"selling_price": "2.50",
			"stock_status":  "out_of_stock",
			"category":      gin.H{"id": 11, "name": "Dairy", "slug": "dairy"},
		},
	}
}

func TestLoadAnonymous(t *testing.T) {
	var loads atomic.Int64
	backend := newBackend(t, func(e *gin.Engine) {
		e.GET("/api/products/", func(c *gin.Context) {
			assert.Empty(t, c.GetHeader("Authorization"))
			loads.Add(1)
			c.JSON(http.StatusOK, productRows())
		})
	})

	f := newFixture(t, backend.URL)
	require.NoError(t, f.service.Load(context.Background()))
	assert.Equal(t, int64(1), loads.Load())
	assert.Len(t, f.service.Products(), 2)
}

func TestLoadTTL(t *testing.T) {
	var loads atomic.Int64
	backend := newBackend(t, func(e *gin.Engine) {
		e.GET("/api/products/", func(c *gin.Context) {
			loads.Add(1)
			c.JSON(http.StatusOK, productRows())
		})
	})

	f := newFixture(t, backend.URL)
	ctx := context.Background()

	require.NoError(t, f.service.Load(ctx))
	require.NoError(t, f.service.Load(ctx))
	assert.Equal(t, int64(1), loads.Load())

	f.clock.Advance(6 * time.Minute)
	require.NoError(t, f.service.Load(ctx))
	assert.Equal(t, int64(2), loads.Load())
}

func TestViews(t *testing.T) {
	backend := newBackend(t, func(e *gin.Engine) {
		e.GET("/api/products/", func(c *gin.Context) {
			c.JSON(http.StatusOK, productRows())
		})
	})

	f := newFixture(t, backend.URL)
	require.NoError(t, f.service.Load(context.Background()))

	apple, ok := f.service.ByID(1)
	require.True(t, ok)
	assert.Equal(t, "Apple", apple.Name)
	assert.Equal(t, 25, apple.DiscountPercent())
	assert.True(t, apple.InStock())

	_, ok = f.service.ByID(99)
	assert.False(t, ok)

	assert.Len(t, f.service.ByCategory(10), 1)
	assert.Len(t, f.service.ByCategorySlug("dairy"), 1)
	assert.Len(t, f.service.InStock(), 1)

	assert.Len(t, f.service.Search("apple"), 1)
	assert.Len(t, f.service.Search("orchard"), 1)
	assert.Empty(t, f.service.Search("  "))
}

func TestAdminGate(t *testing.T) {
	var writes atomic.Int64
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, false))
		e.POST("/api/products/", func(c *gin.Context) {
			writes.Add(1)
			c.JSON(http.StatusCreated, gin.H{"id": 3})
		})
	})

	f := newFixture(t, backend.URL)

	// signed out
	_, err := f.service.Create(context.Background(), ProductInput{
		Name: "Bread", Quantity: "400g", SellingPrice: 1.2, CategoryID: 10,
	})
	assert.True(t, errors.IsKind(err, errors.KindForbidden))

	// signed in but not staff
	f.login(t)
	_, err = f.service.Create(context.Background(), ProductInput{
		Name: "Bread", Quantity: "400g", SellingPrice: 1.2, CategoryID: 10,
	})
	assert.True(t, errors.IsKind(err, errors.KindForbidden))
	assert.Equal(t, int64(0), writes.Load())
}

func TestCreateReconcilesCache(t *testing.T) {
	var loads atomic.Int64
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, true))
		e.GET("/api/products/", func(c *gin.Context) {
			loads.Add(1)
			c.JSON(http.StatusOK, productRows())
		})
		e.POST("/api/products/", func(c *gin.Context) {
			var input ProductInput
			require.NoError(t, c.BindJSON(&input))
			c.JSON(http.StatusCreated, gin.H{
				"id": 3, "name": input.Name, "quantity": input.Quantity,
				"selling_price": input.SellingPrice, "stock_status": "in_stock",
			})
		})
	})

	f := newFixture(t, backend.URL)
	f.login(t)
	require.NoError(t, f.service.Load(context.Background()))

	created, err := f.service.Create(context.Background(), ProductInput{
		Name: "Bread", Quantity: "400g", SellingPrice: 1.2, CategoryID: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.ID)

	// the new product is visible without a refetch
	assert.Len(t, f.service.Products(), 3)
	assert.Equal(t, int64(1), loads.Load())
}

func TestUpdateAndDeleteReconcile(t *testing.T) {
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, true))
		e.GET("/api/products/", func(c *gin.Context) {
			c.JSON(http.StatusOK, productRows())
		})
		e.PATCH("/api/products/:id/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"id": 2, "name": "Milk", "quantity": "1L",
				"selling_price": "2.50", "stock_status": "in_stock",
			})
		})
		e.DELETE("/api/products/:id/", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
	})

	f := newFixture(t, backend.URL)
	f.login(t)
	require.NoError(t, f.service.Load(context.Background()))

	updated, err := f.service.Update(context.Background(), 2, map[string]any{"stock_status": "in_stock"})
	require.NoError(t, err)
	assert.True(t, updated.InStock())

	cached, ok := f.service.ByID(2)
	require.True(t, ok)
	assert.True(t, cached.InStock())

	require.NoError(t, f.service.Delete(context.Background(), 1))
	_, ok = f.service.ByID(1)
	assert.False(t, ok)
	assert.Len(t, f.service.Products(), 1)
}

func TestPriceUnmarshal(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"selling_price":"12.50","retail_price":15,"cost_price":null}`), &p))
	assert.Equal(t, Price(12.5), p.SellingPrice)
	assert.Equal(t, Price(15), p.RetailPrice)
	assert.Equal(t, Price(0), p.CostPrice)
}
