package orders

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/internal/blob"
	"github.com/luxecommerce/storefront/pkg/telemetry"
)

// TransitionPolicy decides whether an order may move from one status to
// another. It returns nil to allow the change.
type TransitionPolicy func(from, to Status) error

// AnyTransition allows every change between known statuses.
func AnyTransition(from, to Status) error {
	return nil
}

var linearNext = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
}

// LinearTransitions only moves orders forward through processing, shipped
// and delivered. Undelivered orders may be cancelled; delivered and
// cancelled orders are final.
func LinearTransitions(from, to Status) error {
	if from == to || slices.Contains(linearNext[from], to) {
		return nil
	}
	return fmt.Errorf("%s to %s: %w", from, to, ErrInvalidTransition)
}

// PolicyByName maps the configured policy name to a TransitionPolicy.
func PolicyByName(name string) (TransitionPolicy, error) {
	switch name {
	case "", core.StatusPolicyAny:
		return AnyTransition, nil
	case core.StatusPolicyLinear:
		return LinearTransitions, nil
	}
	return nil, fmt.Errorf("status policy %q: %w", name, core.ErrInvalidConfiguration)
}

// Options carry the collaborators of a Store.
type Options struct {
	Logger    core.Logger
	Telemetry core.Telemetry
	Policy    TransitionPolicy
}

// Store is the order list of one profile. Every read goes to storage and
// every write is a read-modify-write of the whole list, so concurrent
// writers through different processes race with last-writer-wins.
type Store struct {
	blob   *blob.Blob[[]Order]
	policy TransitionPolicy
	logger core.Logger
	tel    core.Telemetry
}

// NewStore returns the order list persisted in mem.
func NewStore(mem core.Memory, opts Options) *Store {
	if opts.Telemetry == nil {
		opts.Telemetry = &core.NoOpTelemetry{}
	}
	if opts.Policy == nil {
		opts.Policy = AnyTransition
	}
	log := core.ComponentOf(opts.Logger, "orders")

	return &Store{
		blob: blob.New(mem, core.StorageKeyOrders, func() []Order { return []Order{} },
			blob.WithValidator(blob.Each(Order.Validate)),
			blob.WithLogger[[]Order](log),
		),
		policy: opts.Policy,
		logger: log,
		tel:    opts.Telemetry,
	}
}

// Append adds o at the end of the stored list.
func (s *Store) Append(ctx context.Context, o Order) (err error) {
	ctx, done := telemetry.Track(ctx, s.tel, "orders.Append")
	defer done(&err)

	if err := o.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, core.ErrInvalidInput)
	}
	_, err = s.blob.Update(ctx, func(list []Order) ([]Order, error) {
		return append(list, o), nil
	})
	if err != nil {
		return fmt.Errorf("append order %s: %w", o.ID, err)
	}

	s.logger.InfoWithContext(ctx, "Order recorded", map[string]interface{}{
		"order_id": o.ID,
		"user_id":  o.UserID,
		"total":    o.Total.Cents(),
		"items":    o.ItemCount(),
	})
	return nil
}

// All returns every order, newest first.
func (s *Store) All(ctx context.Context) ([]Order, error) {
	list, err := s.blob.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	sortNewestFirst(list)
	return list, nil
}

// ForUser returns the orders placed by userID, newest first.
func (s *Store) ForUser(ctx context.Context, userID string) ([]Order, error) {
	list, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(list, func(o Order) bool { return o.UserID != userID }), nil
}

// ByID looks up one order.
func (s *Store) ByID(ctx context.Context, id string) (Order, error) {
	list, err := s.blob.Load(ctx)
	if err != nil {
		return Order{}, fmt.Errorf("load orders: %w", err)
	}
	for _, o := range list {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, fmt.Errorf("%s: %w", id, ErrOrderNotFound)
}

// UpdateStatus relabels order id, subject to the store's policy.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) (updated Order, err error) {
	ctx, done := telemetry.Track(ctx, s.tel, "orders.UpdateStatus")
	defer done(&err)

	if !status.Valid() || status == StatusPending {
		return Order{}, fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}

	var previous Status
	_, err = s.blob.Update(ctx, func(list []Order) ([]Order, error) {
		i := slices.IndexFunc(list, func(o Order) bool { return o.ID == id })
		if i < 0 {
			return nil, fmt.Errorf("%s: %w", id, ErrOrderNotFound)
		}
		previous = list[i].Status
		if err := s.policy(previous, status); err != nil {
			return nil, err
		}
		list[i].Status = status
		updated = list[i]
		return list, nil
	})
	if err != nil {
		return Order{}, err
	}

	s.logger.InfoWithContext(ctx, "Order status updated", map[string]interface{}{
		"order_id": id,
		"from":     string(previous),
		"to":       string(status),
	})
	return updated, nil
}

// Filter selects orders for the admin list.
type Filter struct {
	// Query matches the order id or the "first last" shipping name,
	// case-insensitively. Empty matches everything.
	Query string
	// Status is a status label or "all".
	Status string
}

// StatusAll disables the status filter.
const StatusAll = "all"

// Matches reports whether o passes the filter.
func (f Filter) Matches(o Order) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q != "" {
		name := strings.ToLower(o.ShippingAddress.FirstName + " " + o.ShippingAddress.LastName)
		if !strings.Contains(strings.ToLower(o.ID), q) && !strings.Contains(name, q) {
			return false
		}
	}
	return f.Status == "" || f.Status == StatusAll || string(o.Status) == f.Status
}

// Filter returns the matching orders, newest first.
func (s *Store) Filter(ctx context.Context, f Filter) ([]Order, error) {
	list, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(list, func(o Order) bool { return !f.Matches(o) }), nil
}

func sortNewestFirst(list []Order) {
	slices.SortStableFunc(list, func(a, b Order) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
}
