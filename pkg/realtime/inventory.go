package realtime

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/catalog"
	"github.com/luxecommerce/storefront/pkg/notifications"
)

// Rand is the randomness used by the simulations. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Sink receives the notifications raised by the simulations.
// *notifications.Feed satisfies it.
type Sink interface {
	Add(ctx context.Context, typ notifications.Type, title, message string) (notifications.Notification, error)
}

// NewRand returns a generator seeded with seed, or a randomly seeded one
// when seed is zero.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// StockLevel buckets an estimated stock count.
type StockLevel string

const (
	InStock    StockLevel = "in_stock"
	LowStock   StockLevel = "low_stock"
	OutOfStock StockLevel = "out_of_stock"
)

const (
	lowStockTitle   = "Low Stock Alert"
	lowStockMessage = "Product inventory is running low. Consider restocking soon."
)

// InventoryOptions configure an Inventory.
type InventoryOptions struct {
	Interval  time.Duration
	BaseStock int
	Rand      Rand
	Logger    core.Logger
}

// Inventory simulates stock movement. Each tick picks a product, moves its
// stock by a delta in [-5, 4] and, for a drop, raises a low stock warning
// with probability 0.3. Deltas live in memory only.
type Inventory struct {
	mu       sync.Mutex
	deltas   map[string]int
	products []string
	rng      Rand

	interval time.Duration
	base     int
	sink     Sink
	logger   core.Logger
}

// NewInventory simulates stock for the products of cat.
func NewInventory(cat *catalog.Catalog, sink Sink, opts InventoryOptions) *Inventory {
	if opts.Interval <= 0 {
		opts.Interval = core.DefaultInventoryTick
	}
	if opts.BaseStock <= 0 {
		opts.BaseStock = core.DefaultBaseStock
	}
	if opts.Rand == nil {
		opts.Rand = NewRand(0)
	}

	ids := make([]string, 0, cat.Len())
	for _, p := range cat.All() {
		ids = append(ids, p.ID)
	}
	return &Inventory{
		deltas:   map[string]int{},
		products: ids,
		rng:      opts.Rand,
		interval: opts.Interval,
		base:     opts.BaseStock,
		sink:     sink,
		logger:   core.ComponentOf(opts.Logger, "inventory"),
	}
}

// Task schedules Tick on the inventory interval.
func (inv *Inventory) Task() Task {
	return Task{Name: "inventory", Interval: inv.interval, Run: inv.Tick}
}

// Tick applies one random stock movement.
func (inv *Inventory) Tick(ctx context.Context) error {
	inv.mu.Lock()
	if len(inv.products) == 0 {
		inv.mu.Unlock()
		return nil
	}
	id := inv.products[inv.rng.IntN(len(inv.products))]
	delta := inv.rng.IntN(10) - 5
	inv.deltas[id] += delta
	alert := delta < 0 && inv.rng.Float64() > 0.7
	inv.mu.Unlock()

	inv.logger.DebugWithContext(ctx, "Inventory moved", map[string]interface{}{
		"product_id": id,
		"delta":      delta,
	})
	if !alert {
		return nil
	}
	_, err := inv.sink.Add(ctx, notifications.TypeWarning, lowStockTitle, lowStockMessage)
	return err
}

// Delta returns the accumulated movement of a product.
func (inv *Inventory) Delta(productID string) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.deltas[productID]
}

// Snapshot copies the accumulated movements of every product moved so far.
func (inv *Inventory) Snapshot() map[string]int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	out := make(map[string]int, len(inv.deltas))
	for k, v := range inv.deltas {
		out[k] = v
	}
	return out
}

// EstimatedStock is the base stock plus the accumulated delta.
func (inv *Inventory) EstimatedStock(productID string) int {
	return inv.base + inv.Delta(productID)
}

// StockLevel buckets EstimatedStock: above 10 is in stock, above 0 is low.
func (inv *Inventory) StockLevel(productID string) StockLevel {
	switch n := inv.EstimatedStock(productID); {
	case n > 10:
		return InStock
	case n > 0:
		return LowStock
	default:
		return OutOfStock
	}
}
