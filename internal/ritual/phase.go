package ritual

// Phase is the position of a visitor in the ritual.
type Phase string

const (
	PhaseInitial     Phase = "initial"
	PhaseOffering    Phase = "offering"
	PhaseNeeding     Phase = "needing"
	PhaseMatched     Phase = "matched"
	PhaseUnmatched   Phase = "unmatched"
	PhaseConsecrated Phase = "consecrated"
	PhaseSealed      Phase = "sealed"
)

// transition is a permitted phase change for a given event.
type transition struct {
	From  Phase
	Event Event
	To    Phase
}

// Event drives phase transitions. Only accepted submissions produce events.
type Event string

const (
	EventStart         Event = "start"
	EventOfferAccepted Event = "offer_accepted"
	EventNeedMatched   Event = "need_matched"
	EventNeedUnmatched Event = "need_unmatched"
	EventConsecrate    Event = "consecrate"
	EventSeal          Event = "seal"
)

var transitions = []transition{
	{PhaseInitial, EventStart, PhaseOffering},
	{PhaseInitial, EventOfferAccepted, PhaseNeeding},
	{PhaseOffering, EventStart, PhaseOffering},
	{PhaseOffering, EventOfferAccepted, PhaseNeeding},

	{PhaseNeeding, EventOfferAccepted, PhaseNeeding},
	{PhaseNeeding, EventNeedMatched, PhaseMatched},
	{PhaseNeeding, EventNeedUnmatched, PhaseUnmatched},

	// A visitor who has already asked may keep offering and asking.
	{PhaseMatched, EventOfferAccepted, PhaseNeeding},
	{PhaseMatched, EventNeedMatched, PhaseMatched},
	{PhaseMatched, EventNeedUnmatched, PhaseUnmatched},
	{PhaseUnmatched, EventOfferAccepted, PhaseNeeding},
	{PhaseUnmatched, EventNeedMatched, PhaseMatched},
	{PhaseUnmatched, EventNeedUnmatched, PhaseUnmatched},

	// Consecration is reached only after asking, and is one-way.
	{PhaseNeeding, EventConsecrate, PhaseConsecrated},
	{PhaseMatched, EventConsecrate, PhaseConsecrated},
	{PhaseUnmatched, EventConsecrate, PhaseConsecrated},
	{PhaseConsecrated, EventOfferAccepted, PhaseConsecrated},
	{PhaseConsecrated, EventNeedMatched, PhaseConsecrated},
	{PhaseConsecrated, EventNeedUnmatched, PhaseConsecrated},
	{PhaseConsecrated, EventSeal, PhaseSealed},
	{PhaseSealed, EventOfferAccepted, PhaseSealed},
	{PhaseSealed, EventNeedMatched, PhaseSealed},
	{PhaseSealed, EventNeedUnmatched, PhaseSealed},
}

// Next returns the phase reached from p on event e.
// ok is false when the transition is not permitted.
func (p Phase) Next(e Event) (Phase, bool) {
	if p == "" {
		p = PhaseInitial
	}
	for _, t := range transitions {
		if t.From == p && t.Event == e {
			return t.To, true
		}
	}
	return p, false
}

// CanAsk reports whether a need may be submitted in phase p.
// A visitor must have offered before asking.
func (p Phase) CanAsk() bool {
	_, ok := p.Next(EventNeedUnmatched)
	return ok
}
