// Package orders implements the order history, the checkout wizard that
// produces orders from a cart, and the admin dashboard figures.
package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/cart"
	"github.com/luxecommerce/storefront/pkg/currency"
)

var (
	ErrOrderNotFound     = fmt.Errorf("order %w", core.ErrNotFound)
	ErrInvalidStatus     = fmt.Errorf("unknown order status: %w", core.ErrInvalidInput)
	ErrInvalidTransition = errors.New("order status transition not allowed")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotAuthenticated  = errors.New("sign in required")
	ErrWrongStep         = errors.New("checkout step out of order")
	ErrMissingField      = fmt.Errorf("missing required field: %w", core.ErrInvalidInput)
)

// Status is the fulfilment label of an order.
type Status string

const (
	// StatusPending only appears in orders written by older clients.
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists the labels an admin may assign.
func Statuses() []Status {
	return []Status{StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}
}

// Valid reports whether s is a known label, legacy ones included.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts user input into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%q: %w", s, ErrInvalidStatus)
	}
	return st, nil
}

// ShippingInfo is the delivery address captured in the first step.
type ShippingInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
}

// FullName joins first and last name.
func (s ShippingInfo) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// Missing returns the json names of empty required fields. State and
// country are optional.
func (s ShippingInfo) Missing() []string {
	return missing([]field{
		{"firstName", s.FirstName},
		{"lastName", s.LastName},
		{"email", s.Email},
		{"phone", s.Phone},
		{"address", s.Address},
		{"city", s.City},
		{"zipCode", s.ZipCode},
	})
}

// PaymentInfo is the card form. It is never persisted; orders keep a
// PaymentSummary instead.
type PaymentInfo struct {
	CardNumber string `json:"cardNumber"`
	ExpiryDate string `json:"expiryDate"`
	CVV        string `json:"cvv"`
	NameOnCard string `json:"nameOnCard"`
}

// Missing returns the json names of empty fields.
func (p PaymentInfo) Missing() []string {
	return missing([]field{
		{"cardNumber", p.CardNumber},
		{"expiryDate", p.ExpiryDate},
		{"cvv", p.CVV},
		{"nameOnCard", p.NameOnCard},
	})
}

// Summary keeps the last four card digits and the cardholder.
func (p PaymentInfo) Summary() PaymentSummary {
	n := strings.TrimSpace(p.CardNumber)
	if len(n) > 4 {
		n = n[len(n)-4:]
	}
	return PaymentSummary{Last4: n, NameOnCard: p.NameOnCard}
}

// PaymentSummary is the persisted trace of a payment.
type PaymentSummary struct {
	Last4      string `json:"last4"`
	NameOnCard string `json:"nameOnCard"`
}

// Order is a placed order. Items are a snapshot of the cart lines with
// their products at the time of purchase.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []cart.Line     `json:"items"`
	Subtotal        currency.Amount `json:"subtotal"`
	Tax             currency.Amount `json:"tax"`
	Shipping        currency.Amount `json:"shipping"`
	Total           currency.Amount `json:"total"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	ShippingAddress ShippingInfo    `json:"shippingAddress"`
	PaymentInfo     PaymentSummary  `json:"paymentInfo"`
}

// ItemCount sums the quantities of the order lines.
func (o Order) ItemCount() int {
	n := 0
	for _, l := range o.Items {
		n += l.Quantity
	}
	return n
}

// Validate rejects records that cannot be listed or updated.
func (o Order) Validate() error {
	switch {
	case o.ID == "":
		return errors.New("order id is required")
	case !o.Status.Valid():
		return fmt.Errorf("order %s: unknown status %q", o.ID, o.Status)
	case o.Total < 0:
		return fmt.Errorf("order %s: negative total", o.ID)
	}
	return nil
}

type field struct {
	name  string
	value string
}

func missing(fields []field) []string {
	var out []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.name)
		}
	}
	return out
}
