// Package blob stores typed values as JSON strings in a core.Memory.
//
// Each stored value is one blob under one key, rewritten whole on Save.
// Load never fails on bad data: a blob that does not parse is logged and
// replaced by the empty value, and individual records rejected by the
// validator are dropped.
package blob

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/luxecommerce/storefront/core"
)

// Validator returns v with invalid records removed, plus one error per
// removed record.
type Validator[T any] func(v T) (T, []error)

// Blob is a typed JSON value persisted under a single key.
type Blob[T any] struct {
	mem      core.Memory
	key      string
	empty    func() T
	validate Validator[T]
	logger   core.Logger
}

// Option configures a Blob.
type Option[T any] func(*Blob[T])

// WithValidator filters records on Load.
func WithValidator[T any](v Validator[T]) Option[T] {
	return func(b *Blob[T]) { b.validate = v }
}

// WithLogger sets the logger used for discarded data.
func WithLogger[T any](l core.Logger) Option[T] {
	return func(b *Blob[T]) {
		if l != nil {
			b.logger = l
		}
	}
}

// New returns a blob at key. empty builds the value used when nothing
// usable is stored.
func New[T any](mem core.Memory, key string, empty func() T, opts ...Option[T]) *Blob[T] {
	b := &Blob[T]{
		mem:    mem,
		key:    key,
		empty:  empty,
		logger: &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Key returns the storage key.
func (b *Blob[T]) Key() string {
	return b.key
}

// Load reads and decodes the blob. A missing or malformed blob yields the
// empty value; only backend failures are returned as errors.
func (b *Blob[T]) Load(ctx context.Context) (T, error) {
	raw, err := b.mem.Get(ctx, b.key)
	if core.IsNotFound(err) {
		return b.empty(), nil
	}
	if err != nil {
		var zero T
		return zero, core.NewStoreError("blob.Load", "storage", err)
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		b.logger.WarnWithContext(ctx, "Discarding malformed persisted state", map[string]interface{}{
			"key":   b.key,
			"error": corrupted(err).Error(),
			"size":  len(raw),
		})
		return b.empty(), nil
	}

	if b.validate != nil {
		var rejected []error
		v, rejected = b.validate(v)
		for _, r := range rejected {
			b.logger.WarnWithContext(ctx, "Dropping invalid persisted record", map[string]interface{}{
				"key":   b.key,
				"error": corrupted(r).Error(),
			})
		}
	}
	return v, nil
}

func corrupted(err error) error {
	return fmt.Errorf("%w: %v", core.ErrCorruptedState, err)
}

// Save encodes v and writes it without expiry.
func (b *Blob[T]) Save(ctx context.Context, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.key, err)
	}
	if err := b.mem.Set(ctx, b.key, string(data), 0); err != nil {
		return core.NewStoreError("blob.Save", "storage", err)
	}
	return nil
}

// Update loads, applies fn and saves the result. There is no locking
// across processes; the last writer wins.
func (b *Blob[T]) Update(ctx context.Context, fn func(T) (T, error)) (T, error) {
	v, err := b.Load(ctx)
	if err != nil {
		return v, err
	}
	v, err = fn(v)
	if err != nil {
		return v, err
	}
	if err := b.Save(ctx, v); err != nil {
		return v, err
	}
	return v, nil
}

// Delete removes the blob.
func (b *Blob[T]) Delete(ctx context.Context) error {
	if err := b.mem.Delete(ctx, b.key); err != nil {
		return core.NewStoreError("blob.Delete", "storage", err)
	}
	return nil
}

// Each builds a Validator for slices from a per-record check.
func Each[E any](check func(E) error) Validator[[]E] {
	return func(items []E) ([]E, []error) {
		var errs []error
		kept := make([]E, 0, len(items))
		for _, item := range items {
			if err := check(item); err != nil {
				errs = append(errs, err)
				continue
			}
			kept = append(kept, item)
		}
		return kept, errs
	}
}

// EachEntry builds a Validator for maps from a per-entry check.
func EachEntry[K comparable, V any](check func(K, V) error) Validator[map[K]V] {
	return func(m map[K]V) (map[K]V, []error) {
		var errs []error
		kept := make(map[K]V, len(m))
		for k, v := range m {
			if err := check(k, v); err != nil {
				errs = append(errs, err)
				continue
			}
			kept[k] = v
		}
		return kept, errs
	}
}
