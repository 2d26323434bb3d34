// Package guardian walks a visitor through the ritual.
//
// The guardian owns the visitor record and the phase machine:
//
//	initial -> offering -> needing -> matched | unmatched -> consecrated -> sealed
//
// Only accepted submissions move the phase. An offer is verified and
// registered; a need is verified, registered and matched against earlier
// offers. After every accepted need and every signal the consecration gate
// is evaluated; consecration and the seal are one-way.
package guardian

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/roach88/cora/internal/bitacora"
	"github.com/roach88/cora/internal/gate"
	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/matcher"
	"github.com/roach88/cora/internal/registry"
	"github.com/roach88/cora/internal/ritual"
	"github.com/roach88/cora/internal/verify"
)

const recordKey = "visitor"

// Options configure every component the guardian drives.
type Options struct {
	Verify      verify.Options  `yaml:"verify"`
	RegistryCap int             `yaml:"registry_cap"`
	Matcher     matcher.Options `yaml:"matcher"`
	Gate        gate.Options    `yaml:"gate"`
	BitacoraCap int             `yaml:"bitacora_cap"`
}

// DefaultOptions returns the default options of every component.
func DefaultOptions() Options {
	return Options{
		Verify:      verify.DefaultOptions(),
		RegistryCap: registry.DefaultCap,
		Matcher:     matcher.DefaultOptions(),
		Gate:        gate.DefaultOptions(),
		BitacoraCap: bitacora.DefaultCap,
	}
}

// Record is the persisted state of a visitor.
type Record struct {
	Phase       ritual.Phase   `json:"phase"`
	SignalsLeft int            `json:"signals_left"`
	LastSignal  *ritual.Signal `json:"last_signal,omitempty"`

	Consecrated        bool               `json:"consecrated"`
	ConsecratedAt      *time.Time         `json:"consecrated_at,omitempty"`
	ConsecrationHuella string             `json:"consecration_huella,omitempty"`
	Consecration       *gate.Consecration `json:"consecration,omitempty"`

	Sealed     bool       `json:"sealed"`
	SealedAt   *time.Time `json:"sealed_at,omitempty"`
	SealHuella string     `json:"seal_huella,omitempty"`
}

// Response is what the visitor sees after each step.
type Response struct {
	Phase    ritual.Phase `json:"phase"`
	Message  string       `json:"message"`
	Verified bool         `json:"verified"`

	// Huella identifies an accepted submission.
	Huella string `json:"huella,omitempty"`

	Match        *ritual.Match      `json:"match,omitempty"`
	Consecration *gate.Consecration `json:"consecration,omitempty"`
}

// Guardian drives one visitor scope.
type Guardian struct {
	store    kv.Store
	clock    ritual.Clock
	verifier *verify.Verifier
	registry *registry.Registry
	matcher  *matcher.Matcher
	gate     *gate.Gate
	log      *bitacora.Log
}

// New wires a guardian over store, the persistence scope of one visitor.
func New(store kv.Store, lex *lexicon.Lexicon, clock ritual.Clock, opts Options) *Guardian {
	return &Guardian{
		store:    store,
		clock:    clock,
		verifier: verify.New(store, lex, clock, opts.Verify),
		registry: registry.New(store, opts.RegistryCap),
		matcher:  matcher.New(lex, opts.Matcher),
		gate:     gate.New(opts.Gate),
		log:      bitacora.New(store, lex, clock, opts.BitacoraCap),
	}
}

// Verifier returns the verifier of this scope.
func (g *Guardian) Verifier() *verify.Verifier { return g.verifier }

// Registry returns the registry of this scope.
func (g *Guardian) Registry() *registry.Registry { return g.registry }

// Log returns the activity log of this scope.
func (g *Guardian) Log() *bitacora.Log { return g.log }

// Record returns the visitor record.
func (g *Guardian) Record(ctx context.Context) (Record, error) {
	rec, err := kv.LoadObject[Record](ctx, g.store, recordKey)
	if err != nil {
		return Record{}, err
	}
	if rec.Phase == "" {
		rec.Phase = ritual.PhaseInitial
	}
	return rec, nil
}

func (g *Guardian) save(ctx context.Context, rec Record) error {
	if err := kv.Save(ctx, g.store, recordKey, rec); err != nil {
		return fmt.Errorf("guardian: %w", err)
	}
	return nil
}

// Start opens the dialogue from origin and returns the first prompt.
// A visitor already past the opening keeps their phase.
func (g *Guardian) Start(ctx context.Context, origin string) (Response, error) {
	rec, err := g.Record(ctx)
	if err != nil {
		return Response{}, err
	}
	if err := g.log.Prelude(ctx, origin); err != nil {
		return Response{}, err
	}

	if next, ok := rec.Phase.Next(ritual.EventStart); ok {
		rec.Phase = next
		if err := g.save(ctx, rec); err != nil {
			return Response{}, err
		}
	}
	return Response{Phase: rec.Phase, Message: prompt(rec.Phase)}, nil
}

// Submit routes text to SubmitOffer or SubmitNeed depending on the phase.
func (g *Guardian) Submit(ctx context.Context, text string, dwellSeconds int) (Response, error) {
	rec, err := g.Record(ctx)
	if err != nil {
		return Response{}, err
	}
	switch rec.Phase {
	case ritual.PhaseInitial, ritual.PhaseOffering:
		return g.SubmitOffer(ctx, text, dwellSeconds)
	default:
		return g.SubmitNeed(ctx, text, dwellSeconds)
	}
}

// SubmitOffer verifies and registers an offer.
func (g *Guardian) SubmitOffer(ctx context.Context, text string, dwellSeconds int) (Response, error) {
	rec, err := g.Record(ctx)
	if err != nil {
		return Response{}, err
	}
	if err := g.log.Trace(ctx, bitacora.TypeOffer, "ofrecimiento", text); err != nil {
		return Response{}, err
	}

	e, err := g.verifier.Verify(ctx, ritual.KindOffer, text, dwellSeconds)
	if err != nil {
		return Response{}, err
	}
	if !e.Verified {
		return Response{Phase: rec.Phase, Message: PromptOfferRetry}, nil
	}

	if err := g.registry.Append(ctx, e); err != nil {
		return Response{}, err
	}
	rec.Phase, _ = rec.Phase.Next(ritual.EventOfferAccepted)
	if err := g.save(ctx, rec); err != nil {
		return Response{}, err
	}

	slog.Info("offer accepted", "huella", e.Huella, "phase", rec.Phase)
	return Response{Phase: rec.Phase, Message: PromptNeed, Verified: true, Huella: e.Huella}, nil
}

// SubmitNeed verifies and registers a need, then looks for an earlier offer
// that satisfies it. A visitor who has not offered yet is asked to offer
// first and nothing is recorded.
func (g *Guardian) SubmitNeed(ctx context.Context, text string, dwellSeconds int) (Response, error) {
	rec, err := g.Record(ctx)
	if err != nil {
		return Response{}, err
	}
	if !rec.Phase.CanAsk() {
		return Response{Phase: rec.Phase, Message: PromptOffer}, nil
	}
	if err := g.log.Trace(ctx, bitacora.TypeNeed, "necesidad", text); err != nil {
		return Response{}, err
	}

	need, err := g.verifier.Verify(ctx, ritual.KindNeed, text, dwellSeconds)
	if err != nil {
		return Response{}, err
	}
	if !need.Verified {
		return Response{Phase: rec.Phase, Message: PromptNeedRetry}, nil
	}
	if err := g.registry.Append(ctx, need); err != nil {
		return Response{}, err
	}

	offers, err := g.registry.List(ctx, ritual.KindOffer)
	if err != nil {
		return Response{}, err
	}

	resp := Response{Verified: true, Huella: need.Huella, Message: PromptNeedRegistered}
	now := g.clock.Now()

	if c, ok := g.matcher.FindMatch(need, offers); ok {
		m := ritual.Match{
			OfferRef:       c.Offer.Huella,
			NeedRef:        need.Huella,
			Overlap:        c.Overlap,
			OverlapScore:   c.Score,
			OfferedAt:      c.Offer.SubmittedAt,
			CreatedAt:      now,
			ConnectionCode: verify.ConnectionCode(c.Offer.Huella, need.Huella),
		}
		if err := g.verifier.RecordCoincidence(ctx, m); err != nil {
			return Response{}, err
		}
		rec.Phase, _ = rec.Phase.Next(ritual.EventNeedMatched)
		resp.Match = &m
		days := int(math.Floor(ritual.DaysBetween(c.Offer.SubmittedAt, now)))
		resp.Message = fmt.Sprintf(PromptMatchFormat, days)
	} else {
		rec.Phase, _ = rec.Phase.Next(ritual.EventNeedUnmatched)
	}

	consecrated, err := g.evaluate(ctx, &rec, &resp)
	if err != nil {
		return Response{}, err
	}
	if consecrated && resp.Match == nil {
		resp.Message = PromptConsecrated
	}

	if err := g.save(ctx, rec); err != nil {
		return Response{}, err
	}
	resp.Phase = rec.Phase
	return resp, nil
}

// LeaveSignal records an acknowledgment for whoever offered. Only the first
// words of message are kept.
func (g *Guardian) LeaveSignal(ctx context.Context, message string) (Response, error) {
	rec, err := g.Record(ctx)
	if err != nil {
		return Response{}, err
	}
	if err := g.log.Trace(ctx, bitacora.TypeSignal, "señal", message); err != nil {
		return Response{}, err
	}

	rec.SignalsLeft++
	rec.LastSignal = &ritual.Signal{
		Timestamp: g.clock.Now(),
		Message:   ritual.TrimWords(message, 3),
	}

	resp := Response{Message: PromptSignalLeft, Verified: true}
	if _, err := g.evaluate(ctx, &rec, &resp); err != nil {
		return Response{}, err
	}
	if err := g.save(ctx, rec); err != nil {
		return Response{}, err
	}
	resp.Phase = rec.Phase
	return resp, nil
}

// evaluate runs the gate and applies consecration and the seal to rec.
// It reports whether rec was consecrated by this call.
func (g *Guardian) evaluate(ctx context.Context, rec *Record, resp *Response) (bool, error) {
	in, matches, err := g.gateInput(ctx)
	if err != nil {
		return false, err
	}

	newly := false
	if !rec.Consecrated {
		c := g.gate.Evaluate(in)
		resp.Consecration = &c
		if c.Eligible {
			if next, ok := rec.Phase.Next(ritual.EventConsecrate); ok {
				at := in.Now
				rec.Phase = next
				rec.Consecrated = true
				rec.ConsecratedAt = &at
				rec.ConsecrationHuella = c.Huella
				rec.Consecration = &c
				newly = true
				slog.Info("visitor consecrated", "huella", c.Huella, "score", c.Score)
			}
		}
	}

	if rec.Consecrated && !rec.Sealed && matches > 0 && rec.SignalsLeft > 0 {
		if next, ok := rec.Phase.Next(ritual.EventSeal); ok {
			at := in.Now
			rec.Phase = next
			rec.Sealed = true
			rec.SealedAt = &at
			rec.SealHuella = sealHuella(rec.ConsecrationHuella, at)
			if !newly {
				resp.Message = PromptSealed
			}
			slog.Info("seal activated", "huella", rec.SealHuella)
		}
	}
	return newly, nil
}

func (g *Guardian) gateInput(ctx context.Context) (gate.Input, int, error) {
	offers, err := g.registry.List(ctx, ritual.KindOffer)
	if err != nil {
		return gate.Input{}, 0, err
	}
	needs, err := g.registry.List(ctx, ritual.KindNeed)
	if err != nil {
		return gate.Input{}, 0, err
	}
	matches, err := g.verifier.Coincidences(ctx)
	if err != nil {
		return gate.Input{}, 0, err
	}

	times := make([]time.Time, 0, len(offers)+len(needs))
	for _, e := range offers {
		times = append(times, e.SubmittedAt)
	}
	for _, e := range needs {
		times = append(times, e.SubmittedAt)
	}

	return gate.Input{
		VerifiedOffers: len(offers),
		MatchedNeeds:   len(matches),
		Submissions:    times,
		Now:            g.clock.Now(),
	}, len(matches), nil
}

// State derives the inhabitant state from the record and the registry.
func (g *Guardian) State(ctx context.Context) (ritual.InhabitantState, error) {
	rec, err := g.Record(ctx)
	if err != nil {
		return ritual.InhabitantState{}, err
	}
	offers, err := g.registry.Count(ctx, ritual.KindOffer)
	if err != nil {
		return ritual.InhabitantState{}, err
	}
	needs, err := g.registry.Count(ctx, ritual.KindNeed)
	if err != nil {
		return ritual.InhabitantState{}, err
	}
	matches, err := g.verifier.Coincidences(ctx)
	if err != nil {
		return ritual.InhabitantState{}, err
	}

	return ritual.InhabitantState{
		Phase:              rec.Phase,
		OffersCount:        offers,
		NeedsCount:         needs,
		Matches:            len(matches),
		SignalsLeft:        rec.SignalsLeft,
		Consecrated:        rec.Consecrated,
		Sealed:             rec.Sealed,
		ConsecrationHuella: rec.ConsecrationHuella,
		SealHuella:         rec.SealHuella,
	}, nil
}

// Prompt returns the prompt of the current phase.
func (g *Guardian) Prompt(ctx context.Context) (Response, error) {
	rec, err := g.Record(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{Phase: rec.Phase, Message: prompt(rec.Phase)}, nil
}

func prompt(p ritual.Phase) string {
	switch p {
	case ritual.PhaseInitial, ritual.PhaseOffering:
		return PromptOffer
	case ritual.PhaseConsecrated, ritual.PhaseSealed:
		return PromptConsecrated
	default:
		return PromptNeed
	}
}

// sealHuella is SR-<last 8 of timestamp>-<hash of the consecration>.
func sealHuella(consecration string, at time.Time) string {
	ts := ritual.ISOTimestamp(at)
	return "SR-" + ritual.Tail(ts, 8) + "-" + ritual.Head(verify.Hash(consecration+ts), 4)
}
