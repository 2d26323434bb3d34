package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// LoadList reads a JSON array stored under key.
//
// A missing key or a value that does not parse yields an empty slice (not
// nil) and no error: corrupt state degrades to empty state. Only failures of
// the store itself are returned.
func LoadList[T any](ctx context.Context, s Store, key string) ([]T, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		slog.Warn("discarding unreadable list", "key", key, "error", err)
		return []T{}, nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// LoadObject reads a JSON object stored under key into a fresh T.
// Missing or unreadable values yield the zero T, like LoadList.
func LoadObject[T any](ctx context.Context, s Store, key string) (T, error) {
	var obj T
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return obj, nil
	}
	if err != nil {
		return obj, fmt.Errorf("load %s: %w", key, err)
	}

	if err := json.Unmarshal(data, &obj); err != nil {
		slog.Warn("discarding unreadable object", "key", key, "error", err)
		var zero T
		return zero, nil
	}
	return obj, nil
}

// Save marshals v as JSON and stores it under key.
func Save(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := s.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// AppendBounded appends item to the list under key and keeps at most limit
// items, dropping the oldest first. A limit <= 0 means unbounded.
// Returns the list as written.
func AppendBounded[T any](ctx context.Context, s Store, key string, item T, limit int) ([]T, error) {
	items, err := LoadList[T](ctx, s, key)
	if err != nil {
		return nil, err
	}

	items = append(items, item)
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}

	if err := Save(ctx, s, key, items); err != nil {
		return nil, err
	}
	return items, nil
}
