// Package matcher pairs a need with an earlier offer.
//
// Matching runs only on fingerprints, the first few long words each
// submission leaves behind. Two tokens are similar when they are equal or
// belong to the same synonym group. A need matches an offer when at least
// MinOverlap of its distinct tokens have a similar token in the offer.
//
// The first qualifying offer in insertion order wins, not the one with the
// largest overlap: whoever offered first is served first.
package matcher

import (
	"log/slog"
	"strings"

	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/ritual"
)

// Options configure matching.
type Options struct {
	MinOverlap int `yaml:"min_overlap"`
}

// DefaultOptions requires two overlapping tokens.
func DefaultOptions() Options {
	return Options{MinOverlap: 2}
}

// Candidate is an offer that satisfies a need.
type Candidate struct {
	Offer   ritual.Entry
	Overlap int

	// Score is the share of need tokens that found a similar offer token.
	Score float64
}

// Matcher finds offers for needs. It is pure and safe for concurrent use.
type Matcher struct {
	lex  *lexicon.Lexicon
	opts Options
}

// New creates a matcher using the synonym groups of lex.
func New(lex *lexicon.Lexicon, opts Options) *Matcher {
	if opts.MinOverlap <= 0 {
		opts.MinOverlap = DefaultOptions().MinOverlap
	}
	return &Matcher{lex: lex, opts: opts}
}

// Tokens splits a fingerprint into distinct normalised tokens, dropping the
// trailing ellipsis and punctuation. Order of first appearance is kept.
func Tokens(fingerprint string) []string {
	raw := lexicon.Tokens(strings.TrimSuffix(fingerprint, "..."))
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Overlap counts the need tokens that have a similar token among the offer
// tokens.
func (m *Matcher) Overlap(needTokens, offerTokens []string) int {
	n := 0
	for _, nt := range needTokens {
		for _, ot := range offerTokens {
			if m.lex.Similar(nt, ot) {
				n++
				break
			}
		}
	}
	return n
}

// FindMatch returns the first verified offer whose fingerprint overlaps the
// need's by at least MinOverlap tokens. offers must be in insertion order.
func (m *Matcher) FindMatch(need ritual.Entry, offers []ritual.Entry) (Candidate, bool) {
	needTokens := Tokens(need.Fingerprint)
	if len(needTokens) == 0 {
		return Candidate{}, false
	}

	for _, offer := range offers {
		if !offer.Verified {
			continue
		}
		overlap := m.Overlap(needTokens, Tokens(offer.Fingerprint))
		if overlap < m.opts.MinOverlap {
			continue
		}

		slog.Debug("need matched",
			"need", need.Huella,
			"offer", offer.Huella,
			"overlap", overlap,
		)
		return Candidate{
			Offer:   offer,
			Overlap: overlap,
			Score:   float64(overlap) / float64(len(needTokens)),
		}, true
	}
	return Candidate{}, false
}
