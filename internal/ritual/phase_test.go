package ritual

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseNext(t *testing.T) {
	tests := []struct {
		name  string
		from  Phase
		event Event
		want  Phase
		ok    bool
	}{
		{"start opens offering", PhaseInitial, EventStart, PhaseOffering, true},
		{"empty phase behaves as initial", "", EventStart, PhaseOffering, true},
		{"offer moves to needing", PhaseOffering, EventOfferAccepted, PhaseNeeding, true},
		{"need matched", PhaseNeeding, EventNeedMatched, PhaseMatched, true},
		{"need unmatched", PhaseNeeding, EventNeedUnmatched, PhaseUnmatched, true},
		{"new round after match", PhaseMatched, EventOfferAccepted, PhaseNeeding, true},
		{"cannot ask before offering", PhaseOffering, EventNeedMatched, PhaseOffering, false},
		{"cannot ask from initial", PhaseInitial, EventNeedUnmatched, PhaseInitial, false},
		{"consecrate after asking", PhaseUnmatched, EventConsecrate, PhaseConsecrated, true},
		{"cannot consecrate before asking", PhaseOffering, EventConsecrate, PhaseOffering, false},
		{"consecration survives offers", PhaseConsecrated, EventOfferAccepted, PhaseConsecrated, true},
		{"seal after consecration", PhaseConsecrated, EventSeal, PhaseSealed, true},
		{"cannot seal unconsecrated", PhaseMatched, EventSeal, PhaseMatched, false},
		{"sealed is terminal", PhaseSealed, EventNeedMatched, PhaseSealed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.from.Next(tt.event)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPhaseCanAsk(t *testing.T) {
	assert.False(t, PhaseInitial.CanAsk())
	assert.False(t, PhaseOffering.CanAsk())
	assert.True(t, PhaseNeeding.CanAsk())
	assert.True(t, PhaseMatched.CanAsk())
	assert.True(t, PhaseUnmatched.CanAsk())
	assert.True(t, PhaseConsecrated.CanAsk())
	assert.True(t, PhaseSealed.CanAsk())
}

func TestKindOpposite(t *testing.T) {
	assert.Equal(t, KindNeed, KindOffer.Opposite())
	assert.Equal(t, KindOffer, KindNeed.Opposite())
	assert.True(t, KindOffer.Valid())
	assert.False(t, Kind("gift").Valid())
}
