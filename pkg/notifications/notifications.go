// Package notifications implements the in-app notification feed of one
// browser profile. Newest notifications come first.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/luxecommerce/storefront/core"
	"github.com/luxecommerce/storefront/internal/blob"
	"github.com/luxecommerce/storefront/pkg/clock"
	"github.com/luxecommerce/storefront/pkg/telemetry"
)

var ErrInvalidType = fmt.Errorf("unknown notification type: %w", core.ErrInvalidInput)

// Type is the severity shown next to a notification.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeInfo    Type = "info"
	TypeWarning Type = "warning"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeSuccess, TypeError, TypeInfo, TypeWarning:
		return true
	}
	return false
}

// Notification is one feed entry.
type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Validate rejects records without an id or with an unknown type.
func (n Notification) Validate() error {
	if n.ID == "" {
		return errors.New("notification id is required")
	}
	if !n.Type.Valid() {
		return fmt.Errorf("notification %s: unknown type %q", n.ID, n.Type)
	}
	return nil
}

// Options carry the collaborators of a Feed.
type Options struct {
	Clock     clock.Clock
	Logger    core.Logger
	Telemetry core.Telemetry
	NewID     func() string
}

// Feed is safe for concurrent use; the background tickers add to it while
// requests read and dismiss entries.
type Feed struct {
	mu    sync.Mutex
	items []Notification
	blob  *blob.Blob[[]Notification]

	clock  clock.Clock
	newID  func() string
	logger core.Logger
	tel    core.Telemetry
}

// Open loads the feed persisted in mem.
func Open(ctx context.Context, mem core.Memory, opts Options) (*Feed, error) {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Telemetry == nil {
		opts.Telemetry = &core.NoOpTelemetry{}
	}
	log := core.ComponentOf(opts.Logger, "notifications")

	f := &Feed{
		blob: blob.New(mem, core.StorageKeyNotifications, func() []Notification { return []Notification{} },
			blob.WithValidator(blob.Each(Notification.Validate)),
			blob.WithLogger[[]Notification](log),
		),
		clock:  opts.Clock,
		newID:  opts.NewID,
		logger: log,
		tel:    opts.Telemetry,
	}
	items, err := f.blob.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	f.items = items
	return f, nil
}

func (f *Feed) mutate(ctx context.Context, op string, fn func([]Notification) []Notification) (err error) {
	ctx, done := telemetry.Track(ctx, f.tel, op)
	defer done(&err)

	f.mu.Lock()
	defer f.mu.Unlock()

	next := fn(slices.Clone(f.items))
	if err := f.blob.Save(ctx, next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	f.items = next
	return nil
}

// Add prepends an unread notification.
func (f *Feed) Add(ctx context.Context, typ Type, title, message string) (Notification, error) {
	if !typ.Valid() {
		return Notification{}, fmt.Errorf("%q: %w", typ, ErrInvalidType)
	}
	if strings.TrimSpace(title) == "" {
		return Notification{}, fmt.Errorf("notification title is required: %w", core.ErrInvalidInput)
	}

	n := Notification{
		ID:        f.newID(),
		Type:      typ,
		Title:     title,
		Message:   message,
		Timestamp: f.clock.Now(),
	}
	err := f.mutate(ctx, "notifications.Add", func(items []Notification) []Notification {
		return append([]Notification{n}, items...)
	})
	if err != nil {
		return Notification{}, err
	}

	f.logger.DebugWithContext(ctx, "Notification added", map[string]interface{}{
		"notification_id": n.ID,
		"type":            string(typ),
		"title":           title,
	})
	return n, nil
}

// MarkAsRead flags id as read. Unknown ids and already read entries are
// left alone.
func (f *Feed) MarkAsRead(ctx context.Context, id string) error {
	return f.mutate(ctx, "notifications.MarkAsRead", func(items []Notification) []Notification {
		for i := range items {
			if items[i].ID == id {
				items[i].Read = true
			}
		}
		return items
	})
}

// Clear removes id from the feed.
func (f *Feed) Clear(ctx context.Context, id string) error {
	return f.mutate(ctx, "notifications.Clear", func(items []Notification) []Notification {
		return slices.DeleteFunc(items, func(n Notification) bool { return n.ID == id })
	})
}

// ClearAll empties the feed.
func (f *Feed) ClearAll(ctx context.Context) error {
	return f.mutate(ctx, "notifications.ClearAll", func([]Notification) []Notification {
		return []Notification{}
	})
}

// List returns the feed, newest first.
func (f *Feed) List() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items)
}

// UnreadCount counts entries not yet read.
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.items {
		if !it.Read {
			n++
		}
	}
	return n
}
