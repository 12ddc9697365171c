package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/auth"
	"github.com/luxecommerce/storefront/pkg/cart"
	"github.com/luxecommerce/storefront/pkg/catalog"
	"github.com/luxecommerce/storefront/pkg/clock"
	"github.com/luxecommerce/storefront/pkg/currency"
)

var shopper = auth.User{
	ID:    "user-1",
	Email: "jane@example.com",
	Name:  "Jane Wanjiku Doe",
	Role:  auth.RoleCustomer,
}

var validShipping = ShippingInfo{
	FirstName: "Jane",
	LastName:  "Doe",
	Email:     "jane@example.com",
	Phone:     "+254700000000",
	Address:   "1 Kenyatta Ave",
	City:      "Nairobi",
	ZipCode:   "00100",
}

var validPayment = PaymentInfo{
	CardNumber: "4242 4242 4242 4242",
	ExpiryDate: "12/29",
	CVV:        "123",
	NameOnCard: "Jane Doe",
}

type checkoutFixture struct {
	clock  *clock.Fake
	cart   *cart.Store
	orders *Store
	deps   Deps
}

func newFixture(t *testing.T, delay time.Duration) *checkoutFixture {
	t.Helper()
	mem := core.NewMemoryStore()
	fake := clock.NewFake(epoch)

	n := 0
	c, err := cart.Open(context.Background(), mem, catalog.Default(), cart.Options{
		Clock: fake,
		NewID: func() string { n++; return fmt.Sprintf("item-%d", n) },
	})
	require.NoError(t, err)
	store := NewStore(mem, Options{})

	return &checkoutFixture{
		clock:  fake,
		cart:   c,
		orders: store,
		deps: Deps{
			Cart:   c,
			Orders: store,
			Clock:  fake,
			Pricing: Pricing{
				TaxRateBP:       core.DefaultTaxRateBP,
				ProcessingDelay: delay,
			},
		},
	}
}

func (f *checkoutFixture) fill(t *testing.T) *Checkout {
	t.Helper()
	co, err := NewCheckout(f.deps, shopper)
	require.NoError(t, err)
	require.NoError(t, co.SubmitShipping(validShipping))
	require.NoError(t, co.SubmitPayment(validPayment))
	require.Equal(t, StepReview, co.Step())
	return co
}

func TestNewCheckout_Preconditions(t *testing.T) {
	f := newFixture(t, 0)

	_, err := NewCheckout(f.deps, auth.User{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = NewCheckout(f.deps, shopper)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestNewCheckout_Prefill(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.cart.Add(context.Background(), "1"))

	co, err := NewCheckout(f.deps, shopper)
	require.NoError(t, err)

	assert.Equal(t, StepShipping, co.Step())
	assert.Equal(t, ShippingInfo{
		FirstName: "Jane",
		LastName:  "Wanjiku Doe",
		Email:     "jane@example.com",
		Country:   DefaultCountry,
	}, co.Shipping())
	assert.Equal(t, "Jane Wanjiku Doe", co.Payment().NameOnCard)
}

func TestCheckout_StepOrder(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.cart.Add(ctx, "1"))

	co, err := NewCheckout(f.deps, shopper)
	require.NoError(t, err)

	assert.ErrorIs(t, co.SubmitPayment(validPayment), ErrWrongStep)
	_, err = co.PlaceOrder(ctx)
	assert.ErrorIs(t, err, ErrWrongStep)
	assert.ErrorIs(t, co.Back(), ErrWrongStep)

	require.NoError(t, co.SubmitShipping(validShipping))
	assert.ErrorIs(t, co.SubmitShipping(validShipping), ErrWrongStep)
	require.NoError(t, co.SubmitPayment(validPayment))

	require.NoError(t, co.Back())
	assert.Equal(t, StepPayment, co.Step())
	assert.Equal(t, validPayment, co.Payment(), "going back keeps the entered form")
	require.NoError(t, co.Back())
	assert.Equal(t, StepShipping, co.Step())
}

func TestCheckout_RequiredFields(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.cart.Add(context.Background(), "1"))
	co, err := NewCheckout(f.deps, shopper)
	require.NoError(t, err)

	partial := validShipping
	partial.City = "  "
	partial.Phone = ""
	err = co.SubmitShipping(partial)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.True(t, core.IsValidationError(err))
	assert.Contains(t, err.Error(), "phone, city")
	assert.Equal(t, StepShipping, co.Step())

	noState := validShipping
	noState.State = ""
	noState.Country = ""
	require.NoError(t, co.SubmitShipping(noState))
	assert.Equal(t, DefaultCountry, co.Shipping().Country)

	err = co.SubmitPayment(PaymentInfo{CardNumber: "4242"})
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "expiryDate, cvv, nameOnCard")
}

func TestPlaceOrder_TwoOfProductOne(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.cart.AddQuantity(ctx, "1", 2))

	co := f.fill(t)
	assert.Equal(t, Totals{
		Subtotal: currency.KSH(89700),
		Tax:      currency.KSH(7176),
		Total:    currency.KSH(96876),
	}, co.Summary())

	order, err := co.PlaceOrder(ctx)
	require.NoError(t, err)

	want := Order{
		ID:     fmt.Sprint(epoch.UnixMilli()),
		UserID: "user-1",
		Items: []cart.Line{{
			Item:    cart.Item{ID: "item-1", ProductID: "1", Quantity: 2, AddedAt: epoch},
			Product: product(t, "1"),
		}},
		Subtotal:        currency.KSH(89700),
		Tax:             currency.KSH(7176),
		Total:           currency.KSH(96876),
		Status:          StatusProcessing,
		CreatedAt:       epoch,
		ShippingAddress: validShipping,
		PaymentInfo:     PaymentSummary{Last4: "4242", NameOnCard: "Jane Doe"},
	}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, f.cart.IsEmpty())
	assert.Equal(t, StepComplete, co.Step())
	placed, ok := co.Placed()
	require.True(t, ok)
	assert.Equal(t, order.ID, placed.ID)

	stored, err := f.orders.ForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	if diff := cmp.Diff(want, stored[0]); diff != "" {
		t.Errorf("stored order mismatch (-want +got):\n%s", diff)
	}

	_, err = co.PlaceOrder(ctx)
	assert.ErrorIs(t, err, ErrWrongStep, "an order is placed once")
}

func TestPlaceOrder_WaitsForProcessingDelay(t *testing.T) {
	f := newFixture(t, 2*time.Second)
	ctx := context.Background()
	require.NoError(t, f.cart.Add(ctx, "2"))
	co := f.fill(t)

	done := make(chan Order, 1)
	go func() {
		o, err := co.PlaceOrder(ctx)
		assert.NoError(t, err)
		done <- o
	}()

	f.clock.BlockUntil(1)
	select {
	case <-done:
		t.Fatal("order placed before the processing delay elapsed")
	default:
	}

	f.clock.Advance(2 * time.Second)
	select {
	case o := <-done:
		assert.Equal(t, fmt.Sprint(epoch.Add(2*time.Second).UnixMilli()), o.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("order not placed after the delay")
	}
}

func TestPlaceOrder_Cancelled(t *testing.T) {
	f := newFixture(t, time.Minute)
	require.NoError(t, f.cart.Add(context.Background(), "2"))
	co := f.fill(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := co.PlaceOrder(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.False(t, f.cart.IsEmpty(), "cancelled checkout keeps the cart")
	all, err := f.orders.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, StepReview, co.Step())
}

func TestPlaceOrder_CartEmptiedMeanwhile(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	require.NoError(t, f.cart.Add(ctx, "2"))
	co := f.fill(t)

	require.NoError(t, f.cart.Clear(ctx))
	_, err := co.PlaceOrder(ctx)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestPricing_Shipping(t *testing.T) {
	p := PricingFromConfig(core.CheckoutConfig{TaxRateBP: 1000, ShippingCents: 50000})
	assert.Equal(t, Totals{
		Subtotal: currency.KSH(1000),
		Tax:      currency.KSH(100),
		Shipping: currency.KSH(500),
		Total:    currency.KSH(1600),
	}, p.Price(currency.KSH(1000)))
}
