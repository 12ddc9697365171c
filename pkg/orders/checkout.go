package orders

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/auth"
	"github.com/luxecommerce/storefront/pkg/cart"
	"github.com/luxecommerce/storefront/pkg/clock"
	"github.com/luxecommerce/storefront/pkg/currency"
	"github.com/luxecommerce/storefront/pkg/telemetry"
)

// Step is a checkout wizard stage.
type Step int

const (
	StepShipping Step = iota + 1
	StepPayment
	StepReview
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepReview:
		return "review"
	case StepComplete:
		return "complete"
	}
	return "unknown"
}

// DefaultCountry is preselected in the shipping form.
const DefaultCountry = "US"

// Pricing holds the checkout charges.
type Pricing struct {
	TaxRateBP       int
	Shipping        currency.Amount
	ProcessingDelay time.Duration
}

// PricingFromConfig converts the checkout configuration.
func PricingFromConfig(cfg core.CheckoutConfig) Pricing {
	return Pricing{
		TaxRateBP:       cfg.TaxRateBP,
		Shipping:        currency.Amount(cfg.ShippingCents),
		ProcessingDelay: cfg.ProcessingDelay,
	}
}

// Totals is the price breakdown shown on the review step.
type Totals struct {
	Subtotal currency.Amount `json:"subtotal"`
	Tax      currency.Amount `json:"tax"`
	Shipping currency.Amount `json:"shipping"`
	Total    currency.Amount `json:"total"`
}

// Price computes the totals for a subtotal.
func (p Pricing) Price(subtotal currency.Amount) Totals {
	tax := subtotal.ApplyRate(p.TaxRateBP)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: p.Shipping,
		Total:    subtotal.Add(tax).Add(p.Shipping),
	}
}

// Deps are the collaborators of a checkout.
type Deps struct {
	Cart      *cart.Store
	Orders    *Store
	Pricing   Pricing
	Clock     clock.Clock
	Logger    core.Logger
	Telemetry core.Telemetry
}

// Checkout is the three step wizard: shipping, payment, review. Forms are
// checked for required fields only.
type Checkout struct {
	mu       sync.Mutex
	deps     Deps
	user     auth.User
	step     Step
	shipping ShippingInfo
	payment  PaymentInfo
	placed   *Order
	logger   core.Logger
}

// NewCheckout starts a checkout for user. The forms are prefilled from the
// account: the first word of the name, the rest of it, and the email.
func NewCheckout(deps Deps, user auth.User) (*Checkout, error) {
	if user.ID == "" {
		return nil, ErrNotAuthenticated
	}
	if deps.Cart == nil || deps.Cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Telemetry == nil {
		deps.Telemetry = &core.NoOpTelemetry{}
	}

	first, last, _ := strings.Cut(strings.TrimSpace(user.Name), " ")
	return &Checkout{
		deps: deps,
		user: user,
		step: StepShipping,
		shipping: ShippingInfo{
			FirstName: first,
			LastName:  strings.TrimSpace(last),
			Email:     user.Email,
			Country:   DefaultCountry,
		},
		payment: PaymentInfo{NameOnCard: user.Name},
		logger:  core.ComponentOf(deps.Logger, "checkout"),
	}, nil
}

// Step returns the current stage.
func (c *Checkout) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Shipping returns the shipping form as last submitted or prefilled.
func (c *Checkout) Shipping() ShippingInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shipping
}

// Payment returns the payment form as last submitted or prefilled.
func (c *Checkout) Payment() PaymentInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payment
}

func missingFieldError(fields []string) error {
	return fmt.Errorf("%s: %w", strings.Join(fields, ", "), ErrMissingField)
}

// SubmitShipping records the address and moves to payment.
func (c *Checkout) SubmitShipping(info ShippingInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepShipping {
		return fmt.Errorf("shipping submitted during %s: %w", c.step, ErrWrongStep)
	}
	if info.Country == "" {
		info.Country = DefaultCountry
	}
	if m := info.Missing(); len(m) > 0 {
		return missingFieldError(m)
	}
	c.shipping = info
	c.step = StepPayment
	return nil
}

// SubmitPayment records the card and moves to review.
func (c *Checkout) SubmitPayment(info PaymentInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepPayment {
		return fmt.Errorf("payment submitted during %s: %w", c.step, ErrWrongStep)
	}
	if m := info.Missing(); len(m) > 0 {
		return missingFieldError(m)
	}
	c.payment = info
	c.step = StepReview
	return nil
}

// Back returns to the previous form, keeping what was entered.
func (c *Checkout) Back() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.step {
	case StepPayment, StepReview:
		c.step--
		return nil
	}
	return fmt.Errorf("cannot go back from %s: %w", c.step, ErrWrongStep)
}

// Summary prices the cart as it is now.
func (c *Checkout) Summary() Totals {
	return c.deps.Pricing.Price(c.deps.Cart.TotalPrice())
}

// Placed returns the order once PlaceOrder has succeeded.
func (c *Checkout) Placed() (Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.placed == nil {
		return Order{}, false
	}
	return *c.placed, true
}

// PlaceOrder waits out the processing delay, snapshots the cart into a new
// processing order, appends it and empties the cart. If the cart cannot be
// cleared the order stands and is returned with the error.
func (c *Checkout) PlaceOrder(ctx context.Context) (order Order, err error) {
	ctx, done := telemetry.Track(ctx, c.deps.Telemetry, "checkout.PlaceOrder")
	defer done(&err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.step != StepReview {
		return Order{}, fmt.Errorf("order placed during %s: %w", c.step, ErrWrongStep)
	}
	if err := c.deps.Clock.Sleep(ctx, c.deps.Pricing.ProcessingDelay); err != nil {
		return Order{}, fmt.Errorf("place order: %w", err)
	}

	lines := c.deps.Cart.Lines()
	if len(lines) == 0 {
		return Order{}, ErrEmptyCart
	}
	var subtotal currency.Amount
	for _, l := range lines {
		subtotal += l.Subtotal()
	}
	totals := c.deps.Pricing.Price(subtotal)
	now := c.deps.Clock.Now()

	order = Order{
		ID:              strconv.FormatInt(now.UnixMilli(), 10),
		UserID:          c.user.ID,
		Items:           lines,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		Shipping:        totals.Shipping,
		Total:           totals.Total,
		Status:          StatusProcessing,
		CreatedAt:       now,
		ShippingAddress: c.shipping,
		PaymentInfo:     c.payment.Summary(),
	}
	if err := c.deps.Orders.Append(ctx, order); err != nil {
		return Order{}, err
	}
	c.placed = &order
	c.step = StepComplete

	if err := c.deps.Cart.Clear(ctx); err != nil {
		c.logger.ErrorWithContext(ctx, "Order placed but cart not cleared", map[string]interface{}{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		return order, fmt.Errorf("clear cart after order %s: %w", order.ID, err)
	}
	return order, nil
}
