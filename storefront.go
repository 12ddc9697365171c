package storefront

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/pkg/auth"
	"github.com/luxecommerce/storefront/pkg/cart"
	"github.com/luxecommerce/storefront/pkg/catalog"
	"github.com/luxecommerce/storefront/pkg/clock"
	"github.com/luxecommerce/storefront/pkg/notifications"
	"github.com/luxecommerce/storefront/pkg/orders"
	"github.com/luxecommerce/storefront/pkg/realtime"
)

var profilePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Deps are the process-wide collaborators shared by every session.
type Deps struct {
	Config    *core.Config
	Memory    core.Memory
	Catalog   *catalog.Catalog
	Clock     clock.Clock
	Logger    core.Logger
	Telemetry core.Telemetry
	// NewRand builds the random source of each session's simulations.
	// Nil uses Config.Realtime.Seed.
	NewRand func() realtime.Rand
}

func (d Deps) withDefaults() (Deps, error) {
	if d.Memory == nil {
		return d, fmt.Errorf("session storage is required: %w", core.ErrMissingConfiguration)
	}
	if d.Config == nil {
		d.Config = core.DefaultConfig()
	}
	if d.Catalog == nil {
		d.Catalog = catalog.Default()
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = &core.NoOpLogger{}
	}
	if d.Telemetry == nil {
		d.Telemetry = &core.NoOpTelemetry{}
	}
	if d.NewRand == nil {
		seed := d.Config.Realtime.Seed
		d.NewRand = func() realtime.Rand { return realtime.NewRand(seed) }
	}
	return d, nil
}

// Session is the state of one browser profile: its cart, account, order
// history and notifications, plus the simulations feeding the
// notifications. Stores are loaded on Open and written through on every
// mutation.
type Session struct {
	profile string

	catalog       *catalog.Catalog
	cart          *cart.Store
	auth          *auth.Store
	orders        *orders.Store
	notifications *notifications.Feed
	inventory     *realtime.Inventory
	orderFeed     *realtime.OrderFeed
	scheduler     *realtime.Scheduler

	pricing orders.Pricing
	clock   clock.Clock
	logger  core.Logger
	tel     core.Telemetry

	mu       sync.Mutex
	closed   bool
	lastUsed time.Time
}

// ValidateProfile checks a profile id: 1 to 64 letters, digits, '-' or '_'.
func ValidateProfile(profile string) error {
	if !profilePattern.MatchString(profile) {
		return fmt.Errorf("profile %q: %w", profile, core.ErrInvalidInput)
	}
	return nil
}

// Open loads the session of profile, scoping its keys under the profile
// id, and starts the simulations when realtime is enabled.
func Open(ctx context.Context, deps Deps, profile string) (*Session, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	if profile == "" {
		profile = core.DefaultProfile
	}
	if err := ValidateProfile(profile); err != nil {
		return nil, err
	}

	cfg := deps.Config
	mem := core.Namespaced(deps.Memory, profile)
	log := core.ComponentOf(deps.Logger, "session")

	var admin *auth.AdminCredentials
	if cfg.Auth.BootstrapAdmin {
		admin = &auth.AdminCredentials{
			ID:       auth.DefaultAdmin().ID,
			Email:    cfg.Auth.AdminEmail,
			Password: cfg.Auth.AdminPassword,
			Name:     cfg.Auth.AdminName,
		}
	}
	policy, err := orders.PolicyByName(cfg.Checkout.StatusPolicy)
	if err != nil {
		return nil, err
	}

	cartStore, err := cart.Open(ctx, mem, deps.Catalog, cart.Options{
		Clock: deps.Clock, Logger: deps.Logger, Telemetry: deps.Telemetry,
	})
	if err != nil {
		return nil, err
	}
	authStore, err := auth.Open(ctx, mem, auth.Options{
		Clock: deps.Clock, Logger: deps.Logger, Telemetry: deps.Telemetry, Admin: admin,
	})
	if err != nil {
		return nil, err
	}
	feed, err := notifications.Open(ctx, mem, notifications.Options{
		Clock: deps.Clock, Logger: deps.Logger, Telemetry: deps.Telemetry,
	})
	if err != nil {
		return nil, err
	}

	s := &Session{
		profile:       profile,
		catalog:       deps.Catalog,
		cart:          cartStore,
		auth:          authStore,
		orders:        orders.NewStore(mem, orders.Options{Logger: deps.Logger, Telemetry: deps.Telemetry, Policy: policy}),
		notifications: feed,
		pricing:       orders.PricingFromConfig(cfg.Checkout),
		clock:         deps.Clock,
		logger:        log,
		tel:           deps.Telemetry,
		lastUsed:      deps.Clock.Now(),
	}

	rt := cfg.Realtime
	s.inventory = realtime.NewInventory(deps.Catalog, feed, realtime.InventoryOptions{
		Interval:  rt.InventoryInterval,
		BaseStock: rt.BaseStock,
		Rand:      deps.NewRand(),
		Logger:    deps.Logger,
	})
	s.orderFeed = realtime.NewOrderFeed(authStore, feed, realtime.OrderFeedOptions{
		Interval: rt.OrderInterval,
		Clock:    deps.Clock,
		Rand:     deps.NewRand(),
		Logger:   deps.Logger,
	})
	s.scheduler = realtime.NewScheduler(realtime.SchedulerOptions{Clock: deps.Clock, Logger: deps.Logger})
	if err := s.scheduler.Register(s.inventory.Task()); err != nil {
		return nil, err
	}
	if err := s.scheduler.Register(s.orderFeed.Task()); err != nil {
		return nil, err
	}
	if rt.Enabled {
		// The simulations outlive the request that opened the session.
		if err := s.scheduler.Start(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
	}

	log.InfoWithContext(ctx, "Session opened", map[string]interface{}{
		"profile":  profile,
		"realtime": rt.Enabled,
		"cart":     cartStore.TotalItems(),
	})
	return s, nil
}

// Profile returns the profile id.
func (s *Session) Profile() string { return s.profile }

func (s *Session) Catalog() *catalog.Catalog          { return s.catalog }
func (s *Session) Cart() *cart.Store                  { return s.cart }
func (s *Session) Auth() *auth.Store                  { return s.auth }
func (s *Session) Orders() *orders.Store              { return s.orders }
func (s *Session) Notifications() *notifications.Feed { return s.notifications }
func (s *Session) Inventory() *realtime.Inventory     { return s.inventory }
func (s *Session) OrderFeed() *realtime.OrderFeed     { return s.orderFeed }
func (s *Session) Pricing() orders.Pricing            { return s.pricing }
func (s *Session) SchedulerRunning() bool             { return s.scheduler.Running() }

// Err returns core.ErrSessionClosed once the session is closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("profile %s: %w", s.profile, core.ErrSessionClosed)
	}
	return nil
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	now := s.clock.Now()
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

// LastUsed returns the time of the last Touch.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Close stops the simulations. Later calls to the session's operations
// return core.ErrSessionClosed. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.scheduler.Stop()
	s.logger.Info("Session closed", map[string]interface{}{
		"profile": s.profile,
	})
	return nil
}

// Reload re-reads every store from storage.
func (s *Session) Reload(ctx context.Context) error {
	if err := s.Err(); err != nil {
		return err
	}
	if err := s.cart.Reload(ctx); err != nil {
		return err
	}
	return s.auth.Reload(ctx)
}

// Checkout starts the checkout wizard for the signed-in user.
func (s *Session) Checkout() (*orders.Checkout, error) {
	if err := s.Err(); err != nil {
		return nil, err
	}
	user, ok := s.auth.CurrentUser()
	if !ok {
		return nil, orders.ErrNotAuthenticated
	}
	return orders.NewCheckout(orders.Deps{
		Cart:      s.cart,
		Orders:    s.orders,
		Pricing:   s.pricing,
		Clock:     s.clock,
		Logger:    s.logger,
		Telemetry: s.tel,
	}, user)
}

// PlaceOrder runs the whole wizard with the given forms.
func (s *Session) PlaceOrder(ctx context.Context, shipping orders.ShippingInfo, payment orders.PaymentInfo) (orders.Order, error) {
	co, err := s.Checkout()
	if err != nil {
		return orders.Order{}, err
	}
	if err := co.SubmitShipping(shipping); err != nil {
		return orders.Order{}, err
	}
	if err := co.SubmitPayment(payment); err != nil {
		return orders.Order{}, err
	}
	return co.PlaceOrder(ctx)
}

// MyOrders lists the signed-in user's orders, newest first.
func (s *Session) MyOrders(ctx context.Context) ([]orders.Order, error) {
	if err := s.Err(); err != nil {
		return nil, err
	}
	user, ok := s.auth.CurrentUser()
	if !ok {
		return nil, orders.ErrNotAuthenticated
	}
	return s.orders.ForUser(ctx, user.ID)
}

// Stats computes the admin dashboard figures.
func (s *Session) Stats(ctx context.Context) (orders.Stats, error) {
	if err := s.Err(); err != nil {
		return orders.Stats{}, err
	}
	return s.orders.Stats(ctx, s.catalog.Len(), s.auth.CustomerCount())
}
