package verify

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/roach88/cora/internal/lexicon"
)

// Weights are the bonuses the scorer adds per satisfied heuristic.
type Weights struct {
	ServiceVerb   float64 `yaml:"service_verb"`
	FirstPerson   float64 `yaml:"first_person"`
	NaturalLength float64 `yaml:"natural_length"`
	NoBlocklist   float64 `yaml:"no_blocklist"`
	Structure     float64 `yaml:"structure"`
}

// DefaultWeights sum to exactly 1.0.
func DefaultWeights() Weights {
	return Weights{
		ServiceVerb:   0.3,
		FirstPerson:   0.2,
		NaturalLength: 0.2,
		NoBlocklist:   0.2,
		Structure:     0.1,
	}
}

// ScoreOptions parameterise the shape heuristics.
type ScoreOptions struct {
	Weights   Weights `yaml:"weights"`
	MinLength int     `yaml:"min_length"`
	MaxLength int     `yaml:"max_length"`
	MinWords  int     `yaml:"min_words"`
}

// DefaultScoreOptions returns the natural band [15,200] and three words.
func DefaultScoreOptions() ScoreOptions {
	return ScoreOptions{
		Weights:   DefaultWeights(),
		MinLength: 15,
		MaxLength: 200,
		MinWords:  3,
	}
}

// Scorer computes authenticity scores. It is pure and safe for concurrent use.
type Scorer struct {
	lex  *lexicon.Lexicon
	opts ScoreOptions
}

// NewScorer creates a scorer over lex.
func NewScorer(lex *lexicon.Lexicon, opts ScoreOptions) *Scorer {
	return &Scorer{lex: lex, opts: opts}
}

// Score returns the authenticity of text in [0,1].
//
// Text of any length is scanned in full. Matching is raw containment, so the
// score is easy to game by embedding a keyword anywhere.
func (s *Scorer) Score(text string) float64 {
	w := s.opts.Weights
	score := 0.0

	if n := utf8.RuneCountInString(text); n >= s.opts.MinLength && n <= s.opts.MaxLength {
		score += w.NaturalLength
	}
	if lexicon.ContainsAny(text, s.lex.ServiceVerbs) {
		score += w.ServiceVerb
	}
	if s.lex.HasFirstPerson(text) {
		score += w.FirstPerson
	}
	if !lexicon.ContainsAny(text, s.lex.Blocklist) {
		score += w.NoBlocklist
	}
	if len(strings.Split(text, " ")) >= s.opts.MinWords {
		score += w.Structure
	}

	return math.Min(roundScore(score), 1.0)
}

// roundScore snaps a sum of decimal weights to two places so that
// 0.3+0.2+0.2 compares equal to a 0.7 threshold.
func roundScore(v float64) float64 {
	return math.Round(v*100) / 100
}
