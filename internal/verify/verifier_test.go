package verify

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/ritual"
	"github.com/roach88/cora/internal/testutil"
)

const authentic = "puedo acompañar a mi vecina"

func newTestVerifier(t *testing.T, opts Options) (*Verifier, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(testutil.Epoch)
	return New(kv.NewMemory(), lexicon.Default(), clock, opts), clock
}

func TestVerify_Accepts(t *testing.T) {
	v, _ := newTestVerifier(t, DefaultOptions())

	e, err := v.Verify(context.Background(), ritual.KindOffer, authentic, 45)
	require.NoError(t, err)

	assert.True(t, e.Verified)
	assert.Equal(t, 1.0, e.Score)
	assert.Equal(t, Hash(authentic), e.TextHash)
	assert.Equal(t, testutil.Epoch, e.SubmittedAt)
	assert.Equal(t, "puedo acompañar vecina...", e.Fingerprint)
	assert.Equal(t, "CR-:00.000Z-1.00-45-"+ritual.Head(e.TextHash, 4), e.Huella)
}

func TestVerify_RejectionsAreSilent(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		dwell int
	}{
		{"short dwell", authentic, 29},
		{"low score", "hola", 60},
		{"no service verb", "yo tengo una bicicleta vieja", 60},
		{"inhuman typing speed", strings.Repeat("yo puedo ayudar ", 13), 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newTestVerifier(t, DefaultOptions())
			ctx := context.Background()

			e, err := v.Verify(ctx, ritual.KindOffer, tt.text, tt.dwell)
			require.NoError(t, err)
			assert.False(t, e.Verified)
			assert.Empty(t, e.Huella)

			ledger, err := v.Verifications(ctx)
			require.NoError(t, err)
			assert.Empty(t, ledger, "rejected submissions are never stored")
		})
	}
}

func TestVerify_BlocklistedButStrongTextPasses(t *testing.T) {
	v, _ := newTestVerifier(t, DefaultOptions())
	e, err := v.Verify(context.Background(), ritual.KindOffer, "hola, quiero ayudar a cuidar a mi familia", 40)
	require.NoError(t, err)
	assert.True(t, e.Verified)
}

func TestVerify_RejectsDuplicate(t *testing.T) {
	v, clock := newTestVerifier(t, DefaultOptions())
	ctx := context.Background()

	first, err := v.Verify(ctx, ritual.KindOffer, authentic, 45)
	require.NoError(t, err)
	require.True(t, first.Verified)

	clock.Advance(time.Hour)
	second, err := v.Verify(ctx, ritual.KindNeed, authentic, 45)
	require.NoError(t, err)
	assert.False(t, second.Verified, "same hash across kinds is a repeat")
}

func TestVerify_UnknownKind(t *testing.T) {
	v, _ := newTestVerifier(t, DefaultOptions())
	_, err := v.Verify(context.Background(), ritual.Kind("gift"), authentic, 45)
	assert.Error(t, err)
}

func TestVerify_LedgerIsBounded(t *testing.T) {
	opts := DefaultOptions()
	opts.LedgerCap = 3
	v, clock := newTestVerifier(t, opts)
	ctx := context.Background()

	var hashes []string
	for i := 0; i < 5; i++ {
		text := fmt.Sprintf("puedo acompañar a mi vecina %d", i)
		e, err := v.Verify(ctx, ritual.KindOffer, text, 45)
		require.NoError(t, err)
		require.True(t, e.Verified)
		hashes = append(hashes, e.TextHash)
		clock.Advance(time.Minute)
	}

	ledger, err := v.Verifications(ctx)
	require.NoError(t, err)
	require.Len(t, ledger, 3)
	assert.Equal(t, hashes[2], ledger[0].TextHash, "oldest entries evicted first")
	assert.Equal(t, hashes[4], ledger[2].TextHash)
}

func TestVerify_CorruptLedgerIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	require.NoError(t, store.Set(ctx, verificationsKey, []byte("]]")))

	v := New(store, lexicon.Default(), testutil.NewFakeClock(testutil.Epoch), DefaultOptions())
	e, err := v.Verify(ctx, ritual.KindOffer, authentic, 45)
	require.NoError(t, err)
	assert.True(t, e.Verified)
}

func TestStats(t *testing.T) {
	v, clock := newTestVerifier(t, DefaultOptions())
	ctx := context.Background()

	_, err := v.Verify(ctx, ritual.KindOffer, authentic, 45)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = v.Verify(ctx, ritual.KindNeed, "hola, quiero ayudar a cuidar a mi familia", 45)
	require.NoError(t, err)
	require.NoError(t, v.RecordCoincidence(ctx, ritual.Match{OfferRef: "a", NeedRef: "b"}))

	st, err := v.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Verifications)
	assert.Equal(t, 2, st.Verified)
	assert.Equal(t, 1, st.OffersVerified)
	assert.Equal(t, 1, st.NeedsVerified)
	assert.Equal(t, 1, st.Coincidences)
	assert.Equal(t, 0.9, st.AverageAuthenticity)
}

func TestHumanPattern(t *testing.T) {
	h := DefaultHumanPattern()

	p := h.Analyze("Sí, puedo;  ayudar.")
	assert.Equal(t, 3, p.ReflectivePauses)
	assert.Equal(t, 1, p.ApparentCorrections)
	assert.InDelta(t, 19.0/20.0, p.EstimatedSpeed, 1e-9)
	assert.True(t, h.IsHuman(p))

	assert.False(t, h.IsHuman(h.Analyze("corto")), "too slow")
	assert.False(t, h.IsHuman(h.Analyze(strings.Repeat("x", 150))), "too little structure")
}

func TestHuellasAndCodes(t *testing.T) {
	e := ritual.Entry{
		SubmittedAt:  time.Date(2025, 5, 5, 10, 11, 12, 345_000_000, time.UTC),
		Score:        0.8,
		DwellSeconds: 31,
		TextHash:     "1a2b3c",
	}
	assert.Equal(t, "CR-:12.345Z-0.80-31-1a2b", RitualHuella(e))
	assert.Equal(t, "CON-1a2b-9z8y", ConnectionCode("CR-x-1a2b", "CR-y-9z8y"))
}
