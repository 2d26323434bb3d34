// Package bitacora is the silent activity log of a visitor scope.
//
// Records never carry full text: at most the first three words followed by
// "...". The log keeps the most recent 50 presences.
package bitacora

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/ritual"
)

const presencesKey = "presences"

// DefaultCap is the number of presences kept.
const DefaultCap = 50

// Presence types.
const (
	TypePrelude   = "preludio"
	TypeThreshold = "umbral"
	TypeOffer     = "ofrecimiento"
	TypeNeed      = "necesidad"
	TypeSignal    = "señal"
)

// Resonance values.
const (
	ResonanceAuthentic   = "autentica"
	ResonanceExploratory = "exploratoria"
)

// Presence is one record of the log.
type Presence struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Moment    string    `json:"moment"`
	Origin    string    `json:"origin,omitempty"`
	Resonance string    `json:"resonance,omitempty"`
	Huella    string    `json:"huella,omitempty"`
}

// Log appends presences to a bounded list.
type Log struct {
	store kv.Store
	lex   *lexicon.Lexicon
	clock ritual.Clock
	cap   int
}

// New creates a log keeping at most capacity presences. A capacity <= 0
// uses DefaultCap.
func New(store kv.Store, lex *lexicon.Lexicon, clock ritual.Clock, capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Log{store: store, lex: lex, clock: clock, cap: capacity}
}

// Prelude records that the ritual was opened from origin. An empty origin
// is recorded as "directo".
func (l *Log) Prelude(ctx context.Context, origin string) error {
	if origin == "" {
		origin = "directo"
	}
	return l.Record(ctx, Presence{
		Type:   TypePrelude,
		Moment: "preparacion_ritual",
		Origin: origin,
	})
}

// Threshold records an intention crossing the threshold. Only its first
// three words are kept.
func (l *Log) Threshold(ctx context.Context, intention string) error {
	return l.Trace(ctx, TypeThreshold, "cruce_ritual", intention)
}

// Trace records a typed presence with the resonance and trimmed huella of
// text.
func (l *Log) Trace(ctx context.Context, typ, moment, text string) error {
	return l.Record(ctx, Presence{
		Type:      typ,
		Moment:    moment,
		Resonance: l.Resonance(text),
		Huella:    ritual.TrimWords(text, 3),
	})
}

// Record appends p, stamping it with the current time when unset.
func (l *Log) Record(ctx context.Context, p Presence) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = l.clock.Now()
	}
	if _, err := kv.AppendBounded(ctx, l.store, presencesKey, p, l.cap); err != nil {
		return fmt.Errorf("bitacora: %w", err)
	}
	return nil
}

// List returns the presences, oldest first.
func (l *Log) List(ctx context.Context) ([]Presence, error) {
	return kv.LoadList[Presence](ctx, l.store, presencesKey)
}

// Resonance classifies text as authentic when it contains a resonant word.
func (l *Log) Resonance(text string) string {
	if lexicon.ContainsAny(text, l.lex.Resonant) {
		return ResonanceAuthentic
	}
	return ResonanceExploratory
}
