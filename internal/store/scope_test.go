package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/registry"
	"github.com/roach88/cora/internal/ritual"
)

func TestScoped_GetMissingKey(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Scope("v1").Get(context.Background(), "visitor")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestScoped_SetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	sc := s.Scope("v1")

	require.NoError(t, sc.Set(ctx, "visitor", []byte(`{"phase":"offering"}`)))
	got, err := sc.Get(ctx, "visitor")
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"offering"}`, string(got))
}

func TestScoped_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	sc := s.Scope("v1")

	require.NoError(t, sc.Set(ctx, "k", []byte("first")))
	require.NoError(t, sc.Set(ctx, "k", []byte("second")))

	got, err := sc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	var rows int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM kv_entries").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestScoped_SeqIncreasesPerWrite(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Scope("a").Set(ctx, "k", []byte("1")))
	require.NoError(t, s.Scope("b").Set(ctx, "k", []byte("2")))
	require.NoError(t, s.Scope("a").Set(ctx, "k", []byte("3")))

	var seqA, seqB int64
	require.NoError(t, s.db.QueryRow("SELECT seq FROM kv_entries WHERE scope='a'").Scan(&seqA))
	require.NoError(t, s.db.QueryRow("SELECT seq FROM kv_entries WHERE scope='b'").Scan(&seqB))
	assert.Equal(t, int64(2), seqB)
	assert.Equal(t, int64(3), seqA)
}

func TestScoped_Isolation(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Scope("v1").Set(ctx, "visitor", []byte("one")))

	_, err := s.Scope("v2").Get(ctx, "visitor")
	assert.ErrorIs(t, err, kv.ErrNotFound)
	assert.Equal(t, "v2", s.Scope("v2").Name())
}

func TestScoped_NilValueStoredEmpty(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Scope("v1").Set(ctx, "k", nil))
	got, err := s.Scope("v1").Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScoped_CorruptValueLoadsEmpty(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	sc := s.Scope("v1")

	require.NoError(t, sc.Set(ctx, "registry/offer", []byte("{not json")))

	items, err := kv.LoadList[ritual.Entry](ctx, sc, "registry/offer")
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestScoped_ClosedDatabaseErrors(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	sc := s.Scope("v1")
	require.NoError(t, s.Close())

	_, err := sc.Get(ctx, "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, kv.ErrNotFound)

	_, err = kv.LoadList[ritual.Entry](ctx, sc, "k")
	assert.Error(t, err, "store failures propagate, unlike corrupt values")
}

func TestScoped_BacksRegistryAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/cora.db"

	s1, err := Open(path)
	require.NoError(t, err)
	reg := registry.New(s1.Scope("v1"), 2)
	for i, hash := range []string{"a1", "b2", "c3"} {
		require.NoError(t, reg.Append(ctx, ritual.Entry{
			TextHash:    hash,
			Score:       0.8,
			SubmittedAt: time.Date(2025, 1, 1, 9, i, 0, 0, time.UTC),
			Kind:        ritual.KindOffer,
			Verified:    true,
		}))
	}
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	offers, err := registry.New(s2.Scope("v1"), 2).List(ctx, ritual.KindOffer)
	require.NoError(t, err)
	require.Len(t, offers, 2)
	assert.Equal(t, "b2", offers[0].TextHash)
	assert.Equal(t, "c3", offers[1].TextHash)
}

func TestKeys_SortedPerScope(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.Scope("v1").Set(ctx, "visitor", []byte("{}")))
	require.NoError(t, s.Scope("v1").Set(ctx, "presences", []byte("[]")))
	require.NoError(t, s.Scope("v2").Set(ctx, "other", []byte("[]")))

	keys, err := s.Keys(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"presences", "visitor"}, keys)

	keys, err = s.Keys(ctx, "empty")
	require.NoError(t, err)
	assert.NotNil(t, keys)
	assert.Empty(t, keys)
}

func TestVisitors_RegisterAndList(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	t0 := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.RegisterVisitor(ctx, "v2", t0.Add(time.Minute)))
	require.NoError(t, s.RegisterVisitor(ctx, "v1", t0))
	require.NoError(t, s.RegisterVisitor(ctx, "v1", t0.Add(time.Hour)))

	visitors, err := s.Visitors(ctx)
	require.NoError(t, err)
	require.Len(t, visitors, 2)
	assert.Equal(t, "v1", visitors[0].ID)
	assert.Equal(t, "2025-01-01T09:00:00Z", visitors[0].CreatedAt)
	assert.Equal(t, "v2", visitors[1].ID)
}

func TestVisitors_EmptyID(t *testing.T) {
	s := createTestStore(t)
	assert.Error(t, s.RegisterVisitor(context.Background(), "", time.Now()))
}
