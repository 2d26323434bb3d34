package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk on fire")
}

func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("disk on fire")
}

func TestMemory_GetMissing(t *testing.T) {
	m := NewMemory()
	_, err := m.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_SetCopiesValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf))
	buf[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestLoadList_MissingIsEmpty(t *testing.T) {
	items, err := LoadList[int](context.Background(), NewMemory(), "list")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestLoadList_CorruptIsEmpty(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "list", []byte("{not json")))

	items, err := LoadList[int](ctx, m, "list")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLoadList_NullIsEmpty(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "list", []byte("null")))

	items, err := LoadList[string](ctx, m, "list")
	require.NoError(t, err)
	assert.NotNil(t, items)
}

func TestLoadList_StoreFailurePropagates(t *testing.T) {
	_, err := LoadList[int](context.Background(), failingStore{}, "list")
	assert.Error(t, err)
}

func TestLoadObject_CorruptIsZero(t *testing.T) {
	type rec struct {
		Count int `json:"count"`
	}
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "obj", []byte(`{"count": "many"}`)))

	got, err := LoadObject[rec](ctx, m, "obj")
	require.NoError(t, err)
	assert.Equal(t, rec{}, got)
}

func TestAppendBounded_DropsOldestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 1; i <= 5; i++ {
		_, err := AppendBounded(ctx, m, "list", i, 3)
		require.NoError(t, err)
	}

	items, err := LoadList[int](ctx, m, "list")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4, 5}, items)
}

func TestAppendBounded_Unbounded(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	for i := 0; i < 10; i++ {
		_, err := AppendBounded(ctx, m, "list", i, 0)
		require.NoError(t, err)
	}

	items, err := LoadList[int](ctx, m, "list")
	require.NoError(t, err)
	assert.Len(t, items, 10)
}
