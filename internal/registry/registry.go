// Package registry keeps the verified offers and needs of a scope.
//
// Each kind is a bounded FIFO list serialised as a JSON array under its own
// key. Appends are read-modify-write with no locking; concurrent writers to
// the same scope race and the last write wins.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/ritual"
)

// DefaultCap is the number of entries kept per kind.
const DefaultCap = 100

// ErrUnverified is returned when appending an entry that was not accepted.
var ErrUnverified = errors.New("registry: entry is not verified")

// Registry stores verified entries by kind.
type Registry struct {
	store kv.Store
	cap   int
}

// New creates a registry over store keeping at most capacity entries per
// kind. A capacity <= 0 uses DefaultCap.
func New(store kv.Store, capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Registry{store: store, cap: capacity}
}

func key(kind ritual.Kind) string {
	return "registry/" + string(kind)
}

// Append adds a verified entry to the list of its kind, evicting the oldest
// entry once the list is full.
func (r *Registry) Append(ctx context.Context, e ritual.Entry) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("registry: unknown kind %q", e.Kind)
	}
	if !e.Verified {
		return ErrUnverified
	}

	list, err := kv.AppendBounded(ctx, r.store, key(e.Kind), e, r.cap)
	if err != nil {
		return fmt.Errorf("registry append: %w", err)
	}

	slog.Debug("entry registered", "kind", e.Kind, "huella", e.Huella, "size", len(list))
	return nil
}

// List returns the entries of kind, oldest first. Never nil.
func (r *Registry) List(ctx context.Context, kind ritual.Kind) ([]ritual.Entry, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("registry: unknown kind %q", kind)
	}
	return kv.LoadList[ritual.Entry](ctx, r.store, key(kind))
}

// Count returns the number of stored entries of kind.
func (r *Registry) Count(ctx context.Context, kind ritual.Kind) (int, error) {
	list, err := r.List(ctx, kind)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}
