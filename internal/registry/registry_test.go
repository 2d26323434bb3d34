package registry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/ritual"
	"github.com/roach88/cora/internal/testutil"
)

func entry(kind ritual.Kind, i int) ritual.Entry {
	return ritual.Entry{
		TextHash:    fmt.Sprintf("h%d", i),
		Score:       0.8,
		SubmittedAt: testutil.Epoch.Add(time.Duration(i) * time.Minute),
		Kind:        kind,
		Verified:    true,
		Huella:      fmt.Sprintf("CR-%d", i),
	}
}

func TestAppendAndList(t *testing.T) {
	ctx := context.Background()
	r := New(kv.NewMemory(), 0)

	require.NoError(t, r.Append(ctx, entry(ritual.KindOffer, 1)))
	require.NoError(t, r.Append(ctx, entry(ritual.KindNeed, 2)))
	require.NoError(t, r.Append(ctx, entry(ritual.KindOffer, 3)))

	offers, err := r.List(ctx, ritual.KindOffer)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "h1", offers[0].TextHash)
	assert.Equal(t, "h3", offers[1].TextHash)

	n, err := r.Count(ctx, ritual.KindNeed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	r := New(kv.NewMemory(), 0)
	list, err := r.List(context.Background(), ritual.KindNeed)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestAppend_EvictsOldestWhenFull(t *testing.T) {
	ctx := context.Background()
	r := New(kv.NewMemory(), DefaultCap)

	for i := 0; i < DefaultCap+1; i++ {
		require.NoError(t, r.Append(ctx, entry(ritual.KindOffer, i)))
	}

	offers, err := r.List(ctx, ritual.KindOffer)
	require.NoError(t, err)
	require.Len(t, offers, DefaultCap)
	assert.Equal(t, "h1", offers[0].TextHash, "h0 was evicted")
	assert.Equal(t, fmt.Sprintf("h%d", DefaultCap), offers[DefaultCap-1].TextHash)
}

func TestAppend_RejectsUnverified(t *testing.T) {
	ctx := context.Background()
	r := New(kv.NewMemory(), 0)

	e := entry(ritual.KindOffer, 1)
	e.Verified = false
	err := r.Append(ctx, e)
	assert.True(t, errors.Is(err, ErrUnverified))

	n, err := r.Count(ctx, ritual.KindOffer)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAppend_UnknownKind(t *testing.T) {
	r := New(kv.NewMemory(), 0)
	e := entry("gift", 1)
	assert.Error(t, r.Append(context.Background(), e))
}

func TestList_CorruptValueIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, "registry/offer", []byte("{not json")))

	r := New(store, 0)
	list, err := r.List(ctx, ritual.KindOffer)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, r.Append(ctx, entry(ritual.KindOffer, 7)))
	list, err = r.List(ctx, ritual.KindOffer)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
