package orders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerly/storefront/cart"
	"github.com/grocerly/storefront/catalog"
	"github.com/grocerly/storefront/core/clock"
	"github.com/grocerly/storefront/errors"
	"github.com/grocerly/storefront/gateway"
	"github.com/grocerly/storefront/notice"
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

func stubLogin(e *gin.Engine, access string) {
	e.POST("/api/users/login/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"access":   access,
			"refresh":  "refresh-token",
			"username": "alice",
		})
	})
}

func orderRows() []gin.H {
	return []gin.H{
		{
			"id": 1, "order_number": "ORD-20260314-ALXY-0001", "user": "alice",
			"status": "pending", "total_price": "12.00",
			"items": []gin.H{
				{"id": 1, "product": 1, "quantity": 4, "price": "3.00",
					"product_detail": gin.H{"id": 1, "name": "Apple", "selling_price": "3.00"}},
			},
		},
		{
			"id": 2, "order_number": "ORD-20260314-BOZQ-0002", "user": "bob",
			"status": "completed", "total_price": "2.50",
			"items": []gin.H{
				{"id": 2, "product": 2, "quantity": 1, "price": "2.50",
					"product_detail": gin.H{"id": 2, "name": "Milk", "selling_price": "2.50"}},
			},
		},
		{
			"id": 3, "order_number": "ORD-20260315-ALQW-0001", "user": "alice",
			"status": "cancelled", "total_price": "3.00",
			"items": []gin.H{
				{"id": 3, "product": 1, "quantity": 1, "price": "3.00",
					"product_detail": gin.H{"id": 1, "name": "Apple", "selling_price": "3.00"}},
			},
		},
	}
}

type fixture struct {
	service  *Service
	cart     *cart.Cart
	sessions *session.Store
	notices  *notice.ChannelNotifier
	clock    *clock.Mock
}

func newFixture(t *testing.T, baseURL string) *fixture {
	t.Helper()

	clk := clock.NewMock(testNow)
	sessions, err := session.New(&session.Config{BaseURL: baseURL}, storage.Memory(),
		session.WithClock(clk))
	require.NoError(t, err)

	gw, err := gateway.New(&gateway.Config{BaseURL: baseURL}, sessions)
	require.NoError(t, err)

	notices := notice.NewChannelNotifier(16)
	svc, err := New(nil, gw, WithNotifier(notices), WithClock(clk))
	require.NoError(t, err)

	basket := cart.New(gw, nil, cart.WithClock(clk))
	return &fixture{service: svc, cart: basket, sessions: sessions, notices: notices, clock: clk}
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	_, err := f.sessions.Login(context.Background(), "alice", "secret123")
	require.NoError(t, err)
}

func TestLoadSkippedWithoutSession(t *testing.T) {
	var loads atomic.Int64
	backend := newBackend(t, func(e *gin.Engine) {
		e.GET("/api/orders/", func(c *gin.Context) {
			loads.Add(1)
			c.JSON(http.StatusOK, orderRows())
		})
	})

	f := newFixture(t, backend.URL)

	require.NoError(t, f.service.Load(context.Background()))
	assert.Equal(t, int64(0), loads.Load())
	assert.Empty(t, f.service.Orders())
}

func TestLoadTTL(t *testing.T) {
	var loads atomic.Int64
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, false))
		e.GET("/api/orders/", func(c *gin.Context) {
			loads.Add(1)
			c.JSON(http.StatusOK, orderRows())
		})
	})

	f := newFixture(t, backend.URL)
	f.login(t)
	ctx := context.Background()

	require.NoError(t, f.service.Load(ctx))
	require.NoError(t, f.service.Load(ctx))
	assert.Equal(t, int64(1), loads.Load())

	f.clock.Advance(3 * time.Minute)
	require.NoError(t, f.service.Load(ctx))
	assert.Equal(t, int64(2), loads.Load())
}

func TestViews(t *testing.T) {
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, false))
		e.GET("/api/orders/", func(c *gin.Context) {
			c.JSON(http.StatusOK, orderRows())
		})
	})

	f := newFixture(t, backend.URL)
	f.login(t)
	require.NoError(t, f.service.Load(context.Background()))

	order, ok := f.service.ByID(1)
	require.True(t, ok)
	assert.Equal(t, "ORD-20260314-ALXY-0001", order.Number)
	assert.True(t, order.Status.Active())

	assert.Len(t, f.service.ByUser("alice"), 2)
	assert.Len(t, f.service.Pending(), 1)
	assert.Len(t, f.service.Completed(), 1)
	assert.Len(t, f.service.Cancelled(), 1)
	assert.Len(t, f.service.Active(), 1)
	assert.Len(t, f.service.Mine(), 2)
}

func TestTopProducts(t *testing.T) {
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, false))
		e.GET("/api/orders/", func(c *gin.Context) {
			c.JSON(http.StatusOK, orderRows())
		})
	})

	f := newFixture(t, backend.URL)
	f.login(t)
	require.NoError(t, f.service.Load(context.Background()))

	top := f.service.TopProducts(1)
	require.Len(t, top, 1)
	assert.Equal(t, "Apple", top[0].Name)
	assert.Equal(t, 5, top[0].Count)

	all := f.service.TopProducts(0)
	assert.Len(t, all, 2)
}

func TestPlace(t *testing.T) {
	var orderPosts atomic.Int64
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, false))
		e.POST("/api/cart/", func(c *gin.Context) {
			var body map[string]any
			require.NoError(t, c.BindJSON(&body))
			c.JSON(http.StatusCreated, gin.H{"id": body["product"], "product": body["product"], "quantity": 1})
		})
		e.POST("/api/orders/", func(c *gin.Context) {
			orderPosts.Add(1)
			c.JSON(http.StatusCreated, gin.H{
				"id": 9, "order_number": "ORD-20260315-ALZZ-0002",
				"user": "alice", "status": "pending", "total_price": "3.00",
			})
		})
	})

	f := newFixture(t, backend.URL)
	f.login(t)
	ctx := context.Background()

	inStock := catalog.Product{ID: 1, Name: "Apple", SellingPrice: 3, StockStatus: catalog.StockStatusIn}
	outOfStock := catalog.Product{ID: 2, Name: "Milk", SellingPrice: 2.5, StockStatus: catalog.StockStatusOut}
	require.NoError(t, f.cart.Add(ctx, inStock))
	require.NoError(t, f.cart.Add(ctx, outOfStock))

	placed, err := f.service.Place(ctx, f.cart)
	require.NoError(t, err)
	assert.Equal(t, "ORD-20260315-ALZZ-0002", placed.Number)
	assert.Equal(t, int64(1), orderPosts.Load())

	// only the purchasable line left the cart
	lines := f.cart.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, int64(2), lines[0].ProductID)
}

func TestPlaceEmptyCart(t *testing.T) {
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, false))
	})

	f := newFixture(t, backend.URL)
	f.login(t)

	_, err := f.service.Place(context.Background(), f.cart)
	assert.True(t, errors.IsKind(err, errors.KindInvalid))
}

func TestUpdateStatusOptimisticRollback(t *testing.T) {
	fail := true
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, true))
		e.GET("/api/orders/", func(c *gin.Context) {
			c.JSON(http.StatusOK, orderRows())
		})
		e.PATCH("/api/orders/:id/", func(c *gin.Context) {
			if fail {
				c.JSON(http.StatusInternalServerError, gin.H{"detail": "boom"})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"id": 1, "order_number": "ORD-20260314-ALXY-0001",
				"user": "alice", "status": "preparing", "total_price": "12.00",
			})
		})
	})

	f := newFixture(t, backend.URL)
	f.login(t)
	ctx := context.Background()
	require.NoError(t, f.service.Load(ctx))

	err := f.service.UpdateStatus(ctx, 1, StatusPreparing)
	require.Error(t, err)

	order, _ := f.service.ByID(1)
	assert.Equal(t, StatusPending, order.Status)

	fail = false
	require.NoError(t, f.service.UpdateStatus(ctx, 1, StatusPreparing))
	order, _ = f.service.ByID(1)
	assert.Equal(t, StatusPreparing, order.Status)
}

func TestUpdateStatusGates(t *testing.T) {
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, false))
		e.GET("/api/orders/", func(c *gin.Context) {
			c.JSON(http.StatusOK, orderRows())
		})
	})

	f := newFixture(t, backend.URL)
	f.login(t)
	require.NoError(t, f.service.Load(context.Background()))

	err := f.service.UpdateStatus(context.Background(), 1, StatusPreparing)
	assert.True(t, errors.IsKind(err, errors.KindForbidden))

	order, _ := f.service.ByID(1)
	assert.Equal(t, StatusPending, order.Status)
}

func TestUpdateStatusInvalid(t *testing.T) {
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, true))
	})

	f := newFixture(t, backend.URL)
	f.login(t)

	err := f.service.UpdateStatus(context.Background(), 1, Status("shipped"))
	assert.True(t, errors.IsKind(err, errors.KindInvalid))
}

func TestClearsOnLogout(t *testing.T) {
	backend := newBackend(t, func(e *gin.Engine) {
		stubLogin(e, signToken(t, false))
		e.GET("/api/orders/", func(c *gin.Context) {
			c.JSON(http.StatusOK, orderRows())
		})
	})

	f := newFixture(t, backend.URL)
	f.login(t)
	require.NoError(t, f.service.Load(context.Background()))
	require.NotEmpty(t, f.service.Orders())

	f.sessions.Logout()
	assert.Empty(t, f.service.Orders())
}
