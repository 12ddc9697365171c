package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/auth"
	"github.com/luxecommerce/storefront/pkg/catalog"
	"github.com/luxecommerce/storefront/pkg/clock"
	"github.com/luxecommerce/storefront/pkg/notifications"
	"github.com/luxecommerce/storefront/pkg/orders"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// scriptedRand replays fixed values.
type scriptedRand struct {
	ints   []int
	floats []float64
}

func (r *scriptedRand) IntN(n int) int {
	v := r.ints[0]
	r.ints = r.ints[1:]
	return v % n
}

func (r *scriptedRand) Float64() float64 {
	v := r.floats[0]
	r.floats = r.floats[1:]
	return v
}

type sent struct {
	typ     notifications.Type
	title   string
	message string
}

type recordingSink struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (s *recordingSink) Add(_ context.Context, typ notifications.Type, title, message string) (notifications.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return notifications.Notification{}, s.err
	}
	s.sent = append(s.sent, sent{typ, title, message})
	return notifications.Notification{ID: "n", Type: typ, Title: title, Message: message}, nil
}

func (s *recordingSink) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

type fixedUser struct {
	user *auth.User
}

func (f fixedUser) CurrentUser() (auth.User, bool) {
	if f.user == nil {
		return auth.User{}, false
	}
	return *f.user, true
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	fake := clock.NewFake(epoch)
	s := NewScheduler(SchedulerOptions{Clock: fake})

	runs := make(chan time.Time, 4)
	require.NoError(t, s.Register(Task{
		Name:     "probe",
		Interval: 15 * time.Second,
		Run: func(ctx context.Context) error {
			runs <- fake.Now()
			return nil
		},
	}))
	assert.Equal(t, []string{"probe"}, s.Tasks())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	fake.BlockUntil(1)

	for i := 1; i <= 3; i++ {
		fake.Advance(15 * time.Second)
		select {
		case at := <-runs:
			assert.Equal(t, epoch.Add(time.Duration(i)*15*time.Second), at)
		case <-time.After(5 * time.Second):
			t.Fatalf("tick %d did not run", i)
		}
	}

	fake.Advance(10 * time.Second)
	select {
	case <-runs:
		t.Fatal("task ran before its interval")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestScheduler_Lifecycle(t *testing.T) {
	fake := clock.NewFake(epoch)
	s := NewScheduler(SchedulerOptions{Clock: fake})
	noop := func(context.Context) error { return nil }

	assert.True(t, core.IsValidationError(s.Register(Task{Name: "", Interval: time.Second, Run: noop})))
	assert.True(t, core.IsValidationError(s.Register(Task{Name: "x", Interval: 0, Run: noop})))
	require.NoError(t, s.Register(Task{Name: "x", Interval: time.Second, Run: noop}))

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.Start(ctx), core.ErrAlreadyStarted)
	assert.ErrorIs(t, s.Register(Task{Name: "y", Interval: time.Second, Run: noop}), core.ErrAlreadyStarted)

	s.Stop()
	assert.False(t, s.Running())
	assert.Zero(t, fake.Waiters(), "tickers are released on stop")
	s.Stop()

	require.NoError(t, s.Start(ctx), "a stopped scheduler can start again")
	s.Stop()
}

func TestScheduler_StopsWithContext(t *testing.T) {
	fake := clock.NewFake(epoch)
	s := NewScheduler(SchedulerOptions{Clock: fake})
	require.NoError(t, s.Register(Task{Name: "x", Interval: time.Second, Run: func(context.Context) error { return nil }}))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()
	s.Stop()
}

func TestScheduler_RecoversPanics(t *testing.T) {
	fake := clock.NewFake(epoch)
	s := NewScheduler(SchedulerOptions{Clock: fake})

	var calls int
	runs := make(chan int, 2)
	require.NoError(t, s.Register(Task{
		Name:     "flaky",
		Interval: time.Second,
		Run: func(context.Context) error {
			calls++
			runs <- calls
			switch calls {
			case 1:
				panic("boom")
			case 2:
				return errors.New("transient")
			}
			return nil
		},
	}))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	fake.BlockUntil(1)

	for want := 1; want <= 3; want++ {
		fake.Advance(time.Second)
		select {
		case got := <-runs:
			assert.Equal(t, want, got)
		case <-time.After(5 * time.Second):
			t.Fatalf("run %d missing after panic or error", want)
		}
	}
}

func TestInventory_Tick(t *testing.T) {
	sink := &recordingSink{}
	rng := &scriptedRand{
		// product index, delta+5 for each tick
		ints:   []int{0, 2, 1, 9, 0, 4},
		floats: []float64{0.9, 0.1},
	}
	inv := NewInventory(catalog.Default(), sink, InventoryOptions{Rand: rng})
	ctx := context.Background()

	require.NoError(t, inv.Tick(ctx)) // product 1, -3, alert
	require.NoError(t, inv.Tick(ctx)) // product 2, +4, no roll
	require.NoError(t, inv.Tick(ctx)) // product 1, -1, roll too low

	assert.Equal(t, map[string]int{"1": -4, "2": 4}, inv.Snapshot())
	assert.Equal(t, -4, inv.Delta("1"))
	assert.Equal(t, 46, inv.EstimatedStock("1"))
	assert.Equal(t, 50, inv.EstimatedStock("6"))
	assert.Equal(t, []sent{{
		typ:     notifications.TypeWarning,
		title:   "Low Stock Alert",
		message: "Product inventory is running low. Consider restocking soon.",
	}}, sink.all())
}

func TestInventory_DeltaRange(t *testing.T) {
	inv := NewInventory(catalog.Default(), &recordingSink{}, InventoryOptions{Rand: NewRand(42)})
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		before := inv.Snapshot()
		require.NoError(t, inv.Tick(ctx))
		after := inv.Snapshot()
		for id, v := range after {
			d := v - before[id]
			assert.GreaterOrEqual(t, d, -5)
			assert.LessOrEqual(t, d, 4)
		}
	}
}

func TestInventory_StockLevel(t *testing.T) {
	rng := &scriptedRand{ints: []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, floats: []float64{0, 0, 0, 0, 0}}
	inv := NewInventory(catalog.Default(), &recordingSink{}, InventoryOptions{Rand: rng, BaseStock: 20})
	ctx := context.Background()

	assert.Equal(t, InStock, inv.StockLevel("1"))
	require.NoError(t, inv.Tick(ctx)) // 15
	require.NoError(t, inv.Tick(ctx)) // 10
	assert.Equal(t, LowStock, inv.StockLevel("1"))
	require.NoError(t, inv.Tick(ctx)) // 5
	require.NoError(t, inv.Tick(ctx)) // 0
	assert.Equal(t, OutOfStock, inv.StockLevel("1"))
}

func TestInventory_SinkError(t *testing.T) {
	sink := &recordingSink{err: errors.New("storage down")}
	rng := &scriptedRand{ints: []int{0, 0}, floats: []float64{0.99}}
	inv := NewInventory(catalog.Default(), sink, InventoryOptions{Rand: rng})

	assert.Error(t, inv.Tick(context.Background()))
	assert.Equal(t, -5, inv.Delta("1"), "the movement stands")
}

func TestOrderFeed_SkipsWithoutUser(t *testing.T) {
	sink := &recordingSink{}
	feed := NewOrderFeed(fixedUser{}, sink, OrderFeedOptions{Rand: &scriptedRand{}})

	require.NoError(t, feed.Tick(context.Background()))
	assert.Empty(t, feed.Updates())
	assert.Empty(t, sink.all())
}

func TestOrderFeed_Customer(t *testing.T) {
	fake := clock.NewFake(epoch)
	sink := &recordingSink{}
	user := &auth.User{ID: "u", Role: auth.RoleCustomer}
	rng := &scriptedRand{ints: []int{1, 2}, floats: []float64{0.7, 0.2}}
	feed := NewOrderFeed(fixedUser{user}, sink, OrderFeedOptions{Clock: fake, Rand: rng})
	ctx := context.Background()

	require.NoError(t, feed.Tick(ctx))
	fake.Advance(20 * time.Second)
	require.NoError(t, feed.Tick(ctx))

	updates := feed.Updates()
	require.Len(t, updates, 2)
	assert.Equal(t, OrderUpdate{OrderID: "ORD-1709283600000", Status: orders.StatusShipped, At: epoch}, updates[0])
	assert.Equal(t, orders.StatusDelivered, updates[1].Status)
	assert.Equal(t, []sent{{
		typ:     notifications.TypeInfo,
		title:   "Order Update",
		message: "Your order ORD-1709283600000 status has been updated to shipped.",
	}}, sink.all())
}

func TestOrderFeed_Admin(t *testing.T) {
	sink := &recordingSink{}
	admin := &auth.User{ID: "admin-1", Role: auth.RoleAdmin}
	rng := &scriptedRand{ints: []int{0}, floats: []float64{0.1, 0.9}}
	feed := NewOrderFeed(fixedUser{admin}, sink, OrderFeedOptions{Clock: clock.NewFake(epoch), Rand: rng})

	require.NoError(t, feed.Tick(context.Background()))
	assert.Equal(t, []sent{{
		typ:     notifications.TypeSuccess,
		title:   "New Order Received",
		message: "New order ORD-1709283600000 has been placed and requires processing.",
	}}, sink.all())
}

func TestSimulations_UnderScheduler(t *testing.T) {
	fake := clock.NewFake(epoch)
	mem := core.NewMemoryStore()
	feed, err := notifications.Open(context.Background(), mem, notifications.Options{Clock: fake})
	require.NoError(t, err)

	// Every inventory tick drops stock and alerts.
	inv := NewInventory(catalog.Default(), feed, InventoryOptions{
		Rand: &scriptedRand{ints: []int{0, 0, 0, 0}, floats: []float64{1, 1}},
	})
	s := NewScheduler(SchedulerOptions{Clock: fake})
	require.NoError(t, s.Register(inv.Task()))
	require.NoError(t, s.Start(context.Background()))
	fake.BlockUntil(1)

	fake.Advance(core.DefaultInventoryTick)
	require.Eventually(t, func() bool { return feed.UnreadCount() == 1 }, 5*time.Second, 5*time.Millisecond)
	fake.Advance(core.DefaultInventoryTick)
	require.Eventually(t, func() bool { return feed.UnreadCount() == 2 }, 5*time.Second, 5*time.Millisecond)

	s.Stop()
	assert.Equal(t, -10, inv.Delta("1"))
}
