package realtime

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/auth"
	"github.com/luxecommerce/storefront/pkg/clock"
	"github.com/luxecommerce/storefront/pkg/notifications"
	"github.com/luxecommerce/storefront/pkg/orders"
)

// UserSource reports the signed-in user. *auth.Store satisfies it.
type UserSource interface {
	CurrentUser() (auth.User, bool)
}

// OrderUpdate is one simulated status change.
type OrderUpdate struct {
	OrderID string        `json:"orderId"`
	Status  orders.Status `json:"status"`
	At      time.Time     `json:"at"`
}

var simulatedStatuses = []orders.Status{
	orders.StatusProcessing,
	orders.StatusShipped,
	orders.StatusDelivered,
}

// OrderFeedOptions configure an OrderFeed.
type OrderFeedOptions struct {
	Interval time.Duration
	Clock    clock.Clock
	Rand     Rand
	Logger   core.Logger
}

// OrderFeed simulates order activity while someone is signed in. Each tick
// records an update for a made-up order id, tells the user about it with
// probability 0.4 and, for admins, announces a new order with probability
// 0.2. Simulated orders are never written to the order store.
type OrderFeed struct {
	mu      sync.Mutex
	updates []OrderUpdate
	rng     Rand

	interval time.Duration
	clock    clock.Clock
	users    UserSource
	sink     Sink
	logger   core.Logger
}

// NewOrderFeed returns an order simulation for the user of users.
func NewOrderFeed(users UserSource, sink Sink, opts OrderFeedOptions) *OrderFeed {
	if opts.Interval <= 0 {
		opts.Interval = core.DefaultOrderTick
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Rand == nil {
		opts.Rand = NewRand(0)
	}
	return &OrderFeed{
		rng:      opts.Rand,
		interval: opts.Interval,
		clock:    opts.Clock,
		users:    users,
		sink:     sink,
		logger:   core.ComponentOf(opts.Logger, "order-feed"),
	}
}

// Task schedules Tick on the order interval.
func (f *OrderFeed) Task() Task {
	return Task{Name: "orders", Interval: f.interval, Run: f.Tick}
}

// Tick simulates one order update. It does nothing when nobody is signed in.
func (f *OrderFeed) Tick(ctx context.Context) error {
	user, ok := f.users.CurrentUser()
	if !ok {
		return nil
	}

	f.mu.Lock()
	now := f.clock.Now()
	update := OrderUpdate{
		OrderID: fmt.Sprintf("ORD-%d", now.UnixMilli()),
		Status:  simulatedStatuses[f.rng.IntN(len(simulatedStatuses))],
		At:      now,
	}
	f.updates = append(f.updates, update)
	notifyUser := f.rng.Float64() > 0.6
	notifyAdmin := user.IsAdmin() && f.rng.Float64() > 0.8
	f.mu.Unlock()

	if notifyUser {
		msg := fmt.Sprintf("Your order %s status has been updated to %s.", update.OrderID, update.Status)
		if _, err := f.sink.Add(ctx, notifications.TypeInfo, "Order Update", msg); err != nil {
			return err
		}
	}
	if notifyAdmin {
		msg := fmt.Sprintf("New order %s has been placed and requires processing.", update.OrderID)
		if _, err := f.sink.Add(ctx, notifications.TypeSuccess, "New Order Received", msg); err != nil {
			return err
		}
	}
	return nil
}

// Updates returns the simulated updates in the order they happened.
func (f *OrderFeed) Updates() []OrderUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.updates)
}
