package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/ritual"
)

// Storage keys, relative to the visitor scope.
const (
	verificationsKey = "verifications"
	coincidencesKey  = "coincidences"
)

// Options configure acceptance.
type Options struct {
	Score               ScoreOptions `yaml:"score"`
	Human               HumanPattern `yaml:"human_pattern"`
	AcceptanceThreshold float64      `yaml:"acceptance_threshold"`
	MinDwellSeconds     int          `yaml:"min_dwell_seconds"`
	LedgerCap           int          `yaml:"ledger_cap"`
	FingerprintWords    int          `yaml:"fingerprint_words"`
	FingerprintMinRunes int          `yaml:"fingerprint_min_runes"`
}

// DefaultOptions returns threshold 0.7, 30 s dwell and a 100-entry ledger.
func DefaultOptions() Options {
	return Options{
		Score:               DefaultScoreOptions(),
		Human:               DefaultHumanPattern(),
		AcceptanceThreshold: 0.7,
		MinDwellSeconds:     30,
		LedgerCap:           100,
		FingerprintWords:    3,
		FingerprintMinRunes: 4,
	}
}

// Verifier scores submissions and keeps the ledger of accepted ones.
type Verifier struct {
	store  kv.Store
	clock  ritual.Clock
	scorer *Scorer
	opts   Options
}

// New creates a verifier persisting to store.
func New(store kv.Store, lex *lexicon.Lexicon, clock ritual.Clock, opts Options) *Verifier {
	return &Verifier{
		store:  store,
		clock:  clock,
		scorer: NewScorer(lex, opts.Score),
		opts:   opts,
	}
}

// Scorer returns the scorer used by this verifier.
func (v *Verifier) Scorer() *Scorer {
	return v.scorer
}

// Verify scores text and decides whether it is accepted.
//
// The returned entry always carries the score, hash and pattern. Verified
// and Huella are set only on acceptance, in which case the entry has also
// been appended to the ledger. A rejection is not an error.
func (v *Verifier) Verify(ctx context.Context, kind ritual.Kind, text string, dwellSeconds int) (ritual.Entry, error) {
	if !kind.Valid() {
		return ritual.Entry{}, fmt.Errorf("verify: unknown kind %q", kind)
	}

	entry := ritual.Entry{
		TextHash:     Hash(text),
		Score:        v.scorer.Score(text),
		SubmittedAt:  v.clock.Now(),
		Kind:         kind,
		DwellSeconds: dwellSeconds,
		Pattern:      v.opts.Human.Analyze(text),
		Fingerprint:  ritual.Fingerprint(text, v.opts.FingerprintWords, v.opts.FingerprintMinRunes),
	}

	ledger, err := v.Verifications(ctx)
	if err != nil {
		return ritual.Entry{}, fmt.Errorf("verify: %w", err)
	}

	accepted := entry.Score >= v.opts.AcceptanceThreshold &&
		dwellSeconds >= v.opts.MinDwellSeconds &&
		v.opts.Human.IsHuman(entry.Pattern) &&
		!containsHash(ledger, entry.TextHash)

	slog.Debug("submission scored",
		"kind", kind,
		"hash", entry.TextHash,
		"score", entry.Score,
		"dwell", dwellSeconds,
		"accepted", accepted,
	)

	if !accepted {
		return entry, nil
	}

	entry.Verified = true
	entry.Huella = RitualHuella(entry)

	if _, err := kv.AppendBounded(ctx, v.store, verificationsKey, entry, v.opts.LedgerCap); err != nil {
		return ritual.Entry{}, fmt.Errorf("verify: record: %w", err)
	}
	return entry, nil
}

// Verifications returns the accepted-verification ledger, oldest first.
func (v *Verifier) Verifications(ctx context.Context) ([]ritual.Entry, error) {
	return kv.LoadList[ritual.Entry](ctx, v.store, verificationsKey)
}

// RecordCoincidence appends a match to the coincidence log.
// Matches are not deduplicated.
func (v *Verifier) RecordCoincidence(ctx context.Context, m ritual.Match) error {
	if _, err := kv.AppendBounded(ctx, v.store, coincidencesKey, m, 0); err != nil {
		return fmt.Errorf("record coincidence: %w", err)
	}
	return nil
}

// Coincidences returns every recorded match, oldest first.
func (v *Verifier) Coincidences(ctx context.Context) ([]ritual.Match, error) {
	return kv.LoadList[ritual.Match](ctx, v.store, coincidencesKey)
}

// Stats summarises the ledger.
type Stats struct {
	Verifications       int     `json:"verifications"`
	Verified            int     `json:"verified"`
	Coincidences        int     `json:"coincidences"`
	AverageAuthenticity float64 `json:"average_authenticity"`
	OffersVerified      int     `json:"offers_verified"`
	NeedsVerified       int     `json:"needs_verified"`
}

// Stats computes ledger statistics.
func (v *Verifier) Stats(ctx context.Context) (Stats, error) {
	ledger, err := v.Verifications(ctx)
	if err != nil {
		return Stats{}, err
	}
	matches, err := v.Coincidences(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		Verifications: len(ledger),
		Coincidences:  len(matches),
	}
	sum := 0.0
	for _, e := range ledger {
		sum += e.Score
		if e.Verified {
			st.Verified++
		}
		switch e.Kind {
		case ritual.KindOffer:
			st.OffersVerified++
		case ritual.KindNeed:
			st.NeedsVerified++
		}
	}
	if len(ledger) > 0 {
		st.AverageAuthenticity = roundScore(sum / float64(len(ledger)))
	}
	return st, nil
}

// RitualHuella identifies a verification without exposing its content:
// CR-<last 8 of timestamp>-<score>-<dwell>-<hash prefix>.
func RitualHuella(e ritual.Entry) string {
	return "CR-" + ritual.Tail(ritual.ISOTimestamp(e.SubmittedAt), 8) +
		"-" + strconv.FormatFloat(e.Score, 'f', 2, 64) +
		"-" + strconv.Itoa(e.DwellSeconds) +
		"-" + ritual.Head(e.TextHash, 4)
}

// ConnectionCode links an offer and a need by the tails of their huellas.
func ConnectionCode(offerHuella, needHuella string) string {
	return "CON-" + ritual.Tail(offerHuella, 4) + "-" + ritual.Tail(needHuella, 4)
}

func containsHash(ledger []ritual.Entry, hash string) bool {
	for _, e := range ledger {
		if e.TextHash == hash {
			return true
		}
	}
	return false
}
