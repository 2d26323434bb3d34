package verify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/roach88/cora/internal/ritual"
)

var (
	pauseRe      = regexp.MustCompile(`[.,:;]`)
	correctionRe = regexp.MustCompile(`\s{2,}`)
)

// HumanPattern bounds a plausible human writing pattern.
//
// The typing speed is synthetic: rune count over a fixed estimate window,
// not a measurement.
type HumanPattern struct {
	EstimateWindowSeconds float64 `yaml:"estimate_window_seconds"`
	MinSpeed              float64 `yaml:"min_speed"`
	MaxSpeed              float64 `yaml:"max_speed"`
	MinComplexity         float64 `yaml:"min_complexity"`
}

// DefaultHumanPattern accepts between 10 and 199 runes with at least one
// word per twenty characters.
func DefaultHumanPattern() HumanPattern {
	return HumanPattern{
		EstimateWindowSeconds: 20,
		MinSpeed:              0.5,
		MaxSpeed:              10,
		MinComplexity:         0.05,
	}
}

// Analyze computes the synthetic writing pattern of text.
func (h HumanPattern) Analyze(text string) ritual.WritingPattern {
	runes := utf8.RuneCountInString(text)
	p := ritual.WritingPattern{
		ReflectivePauses:    len(pauseRe.FindAllStringIndex(text, -1)),
		ApparentCorrections: len(correctionRe.FindAllStringIndex(text, -1)),
	}
	if h.EstimateWindowSeconds > 0 {
		p.EstimatedSpeed = float64(runes) / h.EstimateWindowSeconds
	}
	if runes > 0 {
		p.SyntacticComplexity = float64(len(strings.Split(text, " "))) / float64(runes)
	}
	return p
}

// IsHuman reports whether p falls inside the plausible band.
func (h HumanPattern) IsHuman(p ritual.WritingPattern) bool {
	return p.EstimatedSpeed < h.MaxSpeed &&
		p.EstimatedSpeed > h.MinSpeed &&
		p.SyntacticComplexity > h.MinComplexity
}
