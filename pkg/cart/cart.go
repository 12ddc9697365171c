// Package cart implements the shopping cart of one browser profile.
//
// The cart holds line items referencing catalog products by id. Every
// mutation is written through to storage; a failed write leaves the
// in-memory cart unchanged.
package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/internal/blob"
	"github.com/luxecommerce/storefront/pkg/catalog"
	"github.com/luxecommerce/storefront/pkg/clock"
	"github.com/luxecommerce/storefront/pkg/currency"
	"github.com/luxecommerce/storefront/pkg/telemetry"
)

// Item is a persisted cart line.
type Item struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

// Validate rejects records that cannot be displayed or totalled.
func (i Item) Validate() error {
	switch {
	case i.ID == "":
		return errors.New("cart item id is required")
	case i.ProductID == "":
		return fmt.Errorf("cart item %s: product id is required", i.ID)
	case i.Quantity < 1:
		return fmt.Errorf("cart item %s: quantity %d below 1", i.ID, i.Quantity)
	}
	return nil
}

// Line is an item joined with its catalog product.
type Line struct {
	Item
	Product catalog.Product `json:"product"`
}

// Subtotal is price × quantity.
func (l Line) Subtotal() currency.Amount {
	return l.Product.Price.Mul(l.Quantity)
}

// Options carry the collaborators of a Store. Zero values are replaced by
// the real clock, uuid ids and no-op logging.
type Options struct {
	Clock     clock.Clock
	Logger    core.Logger
	Telemetry core.Telemetry
	NewID     func() string
}

// Store is the cart of one profile. It is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	items   []Item
	blob    *blob.Blob[[]Item]
	catalog *catalog.Catalog
	clock   clock.Clock
	newID   func() string
	logger  core.Logger
	tel     core.Telemetry
}

// Open loads the cart persisted in mem.
func Open(ctx context.Context, mem core.Memory, cat *catalog.Catalog, opts Options) (*Store, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Telemetry == nil {
		opts.Telemetry = &core.NoOpTelemetry{}
	}
	log := core.ComponentOf(opts.Logger, "cart")

	s := &Store{
		blob: blob.New(mem, core.StorageKeyCart, func() []Item { return []Item{} },
			blob.WithValidator(blob.Each(Item.Validate)),
			blob.WithLogger[[]Item](log),
		),
		catalog: cat,
		clock:   opts.Clock,
		newID:   opts.NewID,
		logger:  log,
		tel:     opts.Telemetry,
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory cart with the persisted one.
func (s *Store) Reload(ctx context.Context) error {
	items, err := s.blob.Load(ctx)
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	return nil
}

// mutate applies fn to a copy of the items and persists the result.
func (s *Store) mutate(ctx context.Context, op string, fn func([]Item) []Item) (err error) {
	ctx, done := telemetry.Track(ctx, s.tel, op)
	defer done(&err)

	s.mu.Lock()
	defer s.mu.Unlock()

	next := fn(slices.Clone(s.items))
	if err := s.blob.Save(ctx, next); err != nil {
		s.logger.ErrorWithContext(ctx, "Failed to persist cart", map[string]interface{}{
			"operation": op,
			"error":     err.Error(),
		})
		return fmt.Errorf("%s: %w", op, err)
	}
	s.items = next
	return nil
}

// Add puts one unit of productID in the cart.
func (s *Store) Add(ctx context.Context, productID string) error {
	return s.AddQuantity(ctx, productID, 1)
}

// AddQuantity merges qty units of productID into its existing line, or
// creates a new line. A merge that leaves no units removes the line; a
// non-positive qty for a product not in the cart does nothing.
func (s *Store) AddQuantity(ctx context.Context, productID string, qty int) error {
	return s.mutate(ctx, "cart.Add", func(items []Item) []Item {
		for i := range items {
			if items[i].ProductID != productID {
				continue
			}
			items[i].Quantity += qty
			if items[i].Quantity <= 0 {
				return slices.Delete(items, i, i+1)
			}
			s.logger.DebugWithContext(ctx, "Cart line merged", map[string]interface{}{
				"product_id": productID,
				"quantity":   items[i].Quantity,
			})
			return items
		}

		if qty <= 0 {
			return items
		}
		item := Item{
			ID:        s.newID(),
			ProductID: productID,
			Quantity:  qty,
			AddedAt:   s.clock.Now(),
		}
		s.logger.DebugWithContext(ctx, "Cart line added", map[string]interface{}{
			"item_id":    item.ID,
			"product_id": productID,
			"quantity":   qty,
		})
		return append(items, item)
	})
}

// Remove deletes the line itemID. Unknown ids are ignored.
func (s *Store) Remove(ctx context.Context, itemID string) error {
	return s.mutate(ctx, "cart.Remove", func(items []Item) []Item {
		return slices.DeleteFunc(items, func(it Item) bool { return it.ID == itemID })
	})
}

// SetQuantity sets the quantity of line itemID, removing it when qty ≤ 0.
func (s *Store) SetQuantity(ctx context.Context, itemID string, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, itemID)
	}
	return s.mutate(ctx, "cart.SetQuantity", func(items []Item) []Item {
		for i := range items {
			if items[i].ID == itemID {
				items[i].Quantity = qty
			}
		}
		return items
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, "cart.Clear", func([]Item) []Item { return []Item{} })
}

// Items returns every line, including those whose product is unknown.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Lines returns the lines whose product resolves in the catalog.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := make([]Line, 0, len(s.items))
	for _, it := range s.items {
		if p, ok := s.catalog.ByID(it.ProductID); ok {
			lines = append(lines, Line{Item: it, Product: p})
		}
	}
	return lines
}

// TotalItems sums the quantities of every line.
func (s *Store) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

// TotalPrice sums price × quantity over resolvable lines.
func (s *Store) TotalPrice() currency.Amount {
	var total currency.Amount
	for _, l := range s.Lines() {
		total += l.Subtotal()
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}
