// Package gate decides when a visitor becomes a conscious inhabitant.
//
// Evaluate is a pure weighted sum over four criteria, each capped at its
// target before weighting:
//
//	0.40 * min(verified offers / 3, 1)
//	0.30 * min(matched needs / 2, 1)
//	0.15 * min(days in system / 7, 1)
//	0.15 * regularity of submission intervals
//
// A total of at least 0.8 makes the visitor eligible. Recording the result
// is the caller's job; nothing here mutates state, so evaluating twice on
// the same input gives the same answer.
package gate

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/roach88/cora/internal/ritual"
	"github.com/roach88/cora/internal/verify"
)

// Weights of each criterion. They sum to 1.0 by default.
type Weights struct {
	Offers     float64 `yaml:"offers"`
	Matches    float64 `yaml:"matches"`
	Days       float64 `yaml:"days"`
	Regularity float64 `yaml:"regularity"`
}

// Options configure the gate.
type Options struct {
	Threshold     float64 `yaml:"threshold"`
	OffersTarget  int     `yaml:"offers_target"`
	MatchesTarget int     `yaml:"matches_target"`
	DaysTarget    float64 `yaml:"days_target"`
	Weights       Weights `yaml:"weights"`
}

// DefaultOptions returns threshold 0.8 with targets 3 offers, 2 matches
// and 7 days.
func DefaultOptions() Options {
	return Options{
		Threshold:     0.8,
		OffersTarget:  3,
		MatchesTarget: 2,
		DaysTarget:    7,
		Weights: Weights{
			Offers:     0.4,
			Matches:    0.3,
			Days:       0.15,
			Regularity: 0.15,
		},
	}
}

// Input is the aggregate state the gate looks at.
type Input struct {
	VerifiedOffers int
	MatchedNeeds   int

	// Submissions are the times of accepted submissions, in any order.
	Submissions []time.Time

	Now time.Time
}

// Criteria are the raw measurements behind a score.
type Criteria struct {
	VerifiedOffers int     `json:"verified_offers"`
	MatchedNeeds   int     `json:"matched_needs"`
	DaysInSystem   float64 `json:"days_in_system"`
	Regularity     float64 `json:"regularity"`
}

// Consecration is the result of an evaluation.
type Consecration struct {
	Eligible bool     `json:"eligible"`
	Score    float64  `json:"score"`
	Criteria Criteria `json:"criteria"`

	// Huella is set only when Eligible.
	Huella string `json:"huella,omitempty"`
}

// Gate evaluates consecration.
type Gate struct {
	opts Options
}

// New creates a gate.
func New(opts Options) *Gate {
	return &Gate{opts: opts}
}

// Evaluate scores in. It has no side effects.
func (g *Gate) Evaluate(in Input) Consecration {
	c := Criteria{
		VerifiedOffers: in.VerifiedOffers,
		MatchedNeeds:   in.MatchedNeeds,
		DaysInSystem:   daysInSystem(in.Submissions, in.Now),
		Regularity:     Regularity(in.Submissions),
	}

	w := g.opts.Weights
	score := w.Offers*ratio(float64(c.VerifiedOffers), float64(g.opts.OffersTarget)) +
		w.Matches*ratio(float64(c.MatchedNeeds), float64(g.opts.MatchesTarget)) +
		w.Days*ratio(c.DaysInSystem, g.opts.DaysTarget) +
		w.Regularity*c.Regularity
	// 0.4+0.3+0.15+0.15 is not exactly 1 in binary.
	score = math.Round(score*1e6) / 1e6

	result := Consecration{
		Eligible: score >= g.opts.Threshold,
		Score:    score,
		Criteria: c,
	}
	if result.Eligible {
		result.Huella = Huella(in.Now, c)
	}
	return result
}

// Huella identifies a consecration: HC-<last 8 of timestamp>-<criteria hash>.
func Huella(at time.Time, c Criteria) string {
	digest := verify.Hash(fmt.Sprintf("%d|%d|%.4f|%.4f", c.VerifiedOffers, c.MatchedNeeds, c.DaysInSystem, c.Regularity))
	return "HC-" + ritual.Tail(ritual.ISOTimestamp(at), 8) + "-" + ritual.Head(digest, 4)
}

// Regularity scores how evenly spaced submissions are, in [0,1]:
// 1 - (stddev / mean) of the intervals between consecutive submissions,
// floored at 0. Fewer than two submissions, or all at the same instant,
// score 0.
func Regularity(submissions []time.Time) float64 {
	if len(submissions) < 2 {
		return 0
	}
	sorted := append([]time.Time(nil), submissions...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	intervals := make([]float64, 0, len(sorted)-1)
	sum := 0.0
	for i := 1; i < len(sorted); i++ {
		d := sorted[i].Sub(sorted[i-1]).Seconds()
		intervals = append(intervals, d)
		sum += d
	}
	mean := sum / float64(len(intervals))
	if mean == 0 {
		return 0
	}

	variance := 0.0
	for _, d := range intervals {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(intervals))

	return math.Max(0, 1-math.Sqrt(variance)/mean)
}

func daysInSystem(submissions []time.Time, now time.Time) float64 {
	if len(submissions) == 0 {
		return 0
	}
	first := submissions[0]
	for _, t := range submissions[1:] {
		if t.Before(first) {
			first = t
		}
	}
	return math.Max(0, ritual.DaysBetween(first, now))
}

func ratio(v, target float64) float64 {
	if target <= 0 {
		return 1
	}
	return math.Min(v/target, 1)
}
