package storefront_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	storefront "github.com/luxecommerce/storefront"
	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/auth"
	"github.com/luxecommerce/storefront/pkg/clock"
	"github.com/luxecommerce/storefront/pkg/currency"
	"github.com/luxecommerce/storefront/pkg/orders"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

var shipping = orders.ShippingInfo{
	FirstName: "Jane",
	LastName:  "Doe",
	Email:     "jane@example.com",
	Phone:     "+254700000000",
	Address:   "1 Kenyatta Ave",
	City:      "Nairobi",
	ZipCode:   "00100",
}

var payment = orders.PaymentInfo{
	CardNumber: "4111111111111111",
	ExpiryDate: "01/30",
	CVV:        "999",
	NameOnCard: "Jane Doe",
}

func testDeps(t *testing.T, opts ...core.Option) (storefront.Deps, *clock.Fake) {
	t.Helper()
	base := []core.Option{
		storefront.WithProcessingDelay(0),
		storefront.WithRealtime(false),
	}
	cfg, err := storefront.NewConfig(append(base, opts...)...)
	require.NoError(t, err)

	fake := clock.NewFake(epoch)
	return storefront.Deps{
		Config: cfg,
		Memory: core.NewMemoryStore(),
		Clock:  fake,
	}, fake
}

func openSession(t *testing.T, deps storefront.Deps, profile string) *storefront.Session {
	t.Helper()
	s, err := storefront.Open(context.Background(), deps, profile)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSession_ShoppingFlow(t *testing.T) {
	deps, _ := testDeps(t)
	s := openSession(t, deps, "")
	ctx := context.Background()

	assert.Equal(t, core.DefaultProfile, s.Profile())

	_, err := s.Auth().Register(ctx, "jane@example.com", "secret", "Jane Doe")
	require.NoError(t, err)
	_, err = s.Auth().Login(ctx, "jane@example.com", "secret")
	require.NoError(t, err)

	require.NoError(t, s.Cart().AddQuantity(ctx, "1", 2))
	order, err := s.PlaceOrder(ctx, shipping, payment)
	require.NoError(t, err)

	assert.Equal(t, currency.KSH(96876), order.Total)
	assert.Equal(t, orders.StatusProcessing, order.Status)
	assert.Equal(t, "1111", order.PaymentInfo.Last4)
	assert.True(t, s.Cart().IsEmpty())

	mine, err := s.MyOrders(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, order.ID, mine[0].ID)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, currency.KSH(96876), stats.TotalRevenue)
	assert.Equal(t, 6, stats.TotalProducts)
	assert.Equal(t, 1, stats.TotalCustomers)
}

func TestSession_CheckoutNeedsUser(t *testing.T) {
	deps, _ := testDeps(t)
	s := openSession(t, deps, "guest")
	ctx := context.Background()

	require.NoError(t, s.Cart().Add(ctx, "1"))
	_, err := s.Checkout()
	assert.ErrorIs(t, err, orders.ErrNotAuthenticated)
	_, err = s.MyOrders(ctx)
	assert.ErrorIs(t, err, orders.ErrNotAuthenticated)
}

func TestSession_StatePersistsAcrossOpen(t *testing.T) {
	deps, _ := testDeps(t)
	ctx := context.Background()

	first, err := storefront.Open(ctx, deps, "p1")
	require.NoError(t, err)
	require.NoError(t, first.Cart().Add(ctx, "4"))
	_, err = first.Notifications().Add(ctx, "info", "Welcome", "hello")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := openSession(t, deps, "p1")
	assert.Equal(t, 1, second.Cart().TotalItems())
	assert.Equal(t, 1, second.Notifications().UnreadCount())
}

func TestSession_ProfilesAreIsolated(t *testing.T) {
	deps, _ := testDeps(t)
	ctx := context.Background()

	a := openSession(t, deps, "alice")
	b := openSession(t, deps, "bob")

	require.NoError(t, a.Cart().Add(ctx, "1"))
	assert.True(t, b.Cart().IsEmpty())

	ok, err := deps.Memory.Exists(ctx, "alice:"+core.StorageKeyCart)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSession_InvalidProfile(t *testing.T) {
	deps, _ := testDeps(t)
	_, err := storefront.Open(context.Background(), deps, "no spaces/allowed")
	assert.True(t, core.IsValidationError(err))
}

func TestSession_RequiresMemory(t *testing.T) {
	_, err := storefront.Open(context.Background(), storefront.Deps{}, "p")
	assert.True(t, core.IsConfigurationError(err))
}

func TestSession_AdminBootstrap(t *testing.T) {
	deps, _ := testDeps(t, storefront.WithAdminCredentials("boss@example.com", "pw"))
	s := openSession(t, deps, "shop")

	u, err := s.Auth().Login(context.Background(), "boss@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, u.Role)
	assert.Equal(t, "admin-1", u.ID)
}

func TestSession_Close(t *testing.T) {
	deps, _ := testDeps(t)
	s := openSession(t, deps, "closing")
	ctx := context.Background()

	require.NoError(t, s.Err())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Err(), core.ErrSessionClosed)
	_, err := s.Checkout()
	assert.ErrorIs(t, err, core.ErrSessionClosed)
	_, err = s.Stats(ctx)
	assert.ErrorIs(t, err, core.ErrSessionClosed)
	assert.ErrorIs(t, s.Reload(ctx), core.ErrSessionClosed)
}

func TestSession_RealtimeTickers(t *testing.T) {
	deps, fake := testDeps(t, storefront.WithRealtime(true))
	s := openSession(t, deps, "live")
	ctx := context.Background()

	assert.True(t, s.SchedulerRunning())
	fake.BlockUntil(2)

	// The order feed only runs for a signed-in user.
	_, err := s.Auth().Register(ctx, "jane@example.com", "secret", "Jane Doe")
	require.NoError(t, err)
	_, err = s.Auth().Login(ctx, "jane@example.com", "secret")
	require.NoError(t, err)

	fake.Advance(core.DefaultOrderTick)
	require.Eventually(t, func() bool {
		return len(s.OrderFeed().Updates()) == 1
	}, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return len(s.Inventory().Snapshot()) == 1
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	assert.False(t, s.SchedulerRunning())
}

func TestManager(t *testing.T) {
	deps, fake := testDeps(t)
	m, err := storefront.NewManager(deps)
	require.NoError(t, err)
	ctx := context.Background()

	a, err := m.Get(ctx, "a")
	require.NoError(t, err)
	again, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, a, again)

	dflt, err := m.Get(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, core.DefaultProfile, dflt.Profile())
	assert.Equal(t, []string{"a", core.DefaultProfile}, m.Profiles())

	require.NoError(t, a.Cart().Add(ctx, "2"))

	fake.Advance(10 * time.Minute)
	_, err = m.Get(ctx, core.DefaultProfile)
	require.NoError(t, err)
	fake.Advance(25 * time.Minute)

	assert.Equal(t, 1, m.CloseIdle(30*time.Minute))
	assert.Equal(t, []string{core.DefaultProfile}, m.Profiles())
	assert.ErrorIs(t, a.Err(), core.ErrSessionClosed)

	reopened, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.NotSame(t, a, reopened)
	assert.Equal(t, 1, reopened.Cart().TotalItems(), "idle close keeps stored state")

	require.NoError(t, m.Close())
	_, err = m.Get(ctx, "a")
	assert.ErrorIs(t, err, core.ErrSessionClosed)
	assert.ErrorIs(t, reopened.Err(), core.ErrSessionClosed)
}
