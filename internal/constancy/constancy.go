// Package constancy tracks how a visitor dwells: sessions, inhabited
// silences and the depth of what they write.
//
// A session counts elapsed seconds from its start. Every full 30 seconds
// observed is an inhabited silence. Events go to a history capped at 100;
// the constancy level is derived from that history alone, so evicted
// events no longer count.
package constancy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/ritual"
)

const (
	sessionKey = "constancy/session"
	historyKey = "constancy/history"
)

// Event types.
const (
	EventSessionStarted = "sesion_iniciada"
	EventSilence        = "silencio_habitado"
	EventWriting        = "escritura_autentica"
	EventSessionEnded   = "sesion_finalizada"
)

// Levels, from first visit to constant inhabitant.
const (
	LevelFirst     = "primera_manifestacion"
	LevelReturning = "regreso_consciente"
	LevelSustained = "presencia_sostenida"
	LevelConstant  = "habitante_constante"
)

// ErrNoSession is returned when an operation needs an open session.
var ErrNoSession = errors.New("constancy: no open session")

// Options configure the tracker.
type Options struct {
	SilenceSeconds int `yaml:"silence_seconds"`
	HistoryCap     int `yaml:"history_cap"`
	MaxDepth       int `yaml:"max_depth"`
}

// DefaultOptions returns 30 s silences, 100 events and depth up to 5.
func DefaultOptions() Options {
	return Options{SilenceSeconds: 30, HistoryCap: 100, MaxDepth: 5}
}

// Writing is the trace of one piece of text written during a session.
type Writing struct {
	Timestamp time.Time `json:"timestamp"`
	Huella    string    `json:"huella"`
	Depth     int       `json:"depth"`
	Authentic bool      `json:"authentic"`
}

// Session is the open session of a visitor.
type Session struct {
	Start    time.Time `json:"start"`
	Observed int       `json:"observed"`
	Writings []Writing `json:"writings"`
	Depth    float64   `json:"depth"`
	Silences int       `json:"silences"`
}

// Summary closes a session in the history.
type Summary struct {
	Duration int     `json:"duration"`
	Writings int     `json:"writings"`
	Depth    float64 `json:"depth"`
	Silences int     `json:"silences"`
}

// Event is one history record.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Writing   *Writing  `json:"writing,omitempty"`
	Summary   *Summary  `json:"summary,omitempty"`
}

// Constancy summarises the history.
type Constancy struct {
	Sessions       int    `json:"sessions"`
	TotalDwell     int    `json:"total_dwell"`
	DepthEvolution int    `json:"depth_evolution"`
	Silences       int    `json:"silences"`
	Level          string `json:"level"`
}

// Tracker records sessions in a store.
type Tracker struct {
	store kv.Store
	lex   *lexicon.Lexicon
	clock ritual.Clock
	opts  Options
}

// New creates a tracker.
func New(store kv.Store, lex *lexicon.Lexicon, clock ritual.Clock, opts Options) *Tracker {
	if opts.SilenceSeconds <= 0 {
		opts.SilenceSeconds = DefaultOptions().SilenceSeconds
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions().MaxDepth
	}
	return &Tracker{store: store, lex: lex, clock: clock, opts: opts}
}

// StartSession opens a new session, replacing any open one.
func (t *Tracker) StartSession(ctx context.Context) (Session, error) {
	s := Session{Start: t.clock.Now(), Writings: []Writing{}}
	if err := kv.Save(ctx, t.store, sessionKey, s); err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}
	if err := t.record(ctx, Event{Type: EventSessionStarted}); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Current returns the open session, or ErrNoSession.
func (t *Tracker) Current(ctx context.Context) (Session, error) {
	s, err := kv.LoadObject[Session](ctx, t.store, sessionKey)
	if err != nil {
		return Session{}, err
	}
	if s.Start.IsZero() {
		return Session{}, ErrNoSession
	}
	return s, nil
}

// Seconds returns the whole seconds elapsed since the session started.
func (t *Tracker) Seconds(ctx context.Context) (int, error) {
	s, err := t.Current(ctx)
	if err != nil {
		return 0, err
	}
	return t.elapsed(s), nil
}

// Observe advances the session to now and records one silence for every
// silence boundary crossed since the previous observation. It returns the
// elapsed seconds.
func (t *Tracker) Observe(ctx context.Context) (int, error) {
	s, err := t.Current(ctx)
	if err != nil {
		return 0, err
	}

	now := t.elapsed(s)
	step := t.opts.SilenceSeconds
	crossed := now/step - s.Observed/step
	for i := 0; i < crossed; i++ {
		s.Silences++
		if err := t.record(ctx, Event{Type: EventSilence}); err != nil {
			return 0, err
		}
	}
	if now > s.Observed {
		s.Observed = now
	}

	if err := kv.Save(ctx, t.store, sessionKey, s); err != nil {
		return 0, fmt.Errorf("observe: %w", err)
	}
	return now, nil
}

// RecordWriting adds text to the session as a trimmed writing with its
// depth and authenticity.
func (t *Tracker) RecordWriting(ctx context.Context, text string) (Writing, error) {
	s, err := t.Current(ctx)
	if err != nil {
		return Writing{}, err
	}

	w := Writing{
		Timestamp: t.clock.Now(),
		Huella:    ritual.TrimWords(text, 3),
		Depth:     t.Depth(text),
		Authentic: t.Authentic(text),
	}
	s.Writings = append(s.Writings, w)
	s.Depth = averageDepth(s.Writings, s.Depth)

	if err := kv.Save(ctx, t.store, sessionKey, s); err != nil {
		return Writing{}, fmt.Errorf("record writing: %w", err)
	}
	if err := t.record(ctx, Event{Type: EventWriting, Writing: &w}); err != nil {
		return Writing{}, err
	}
	return w, nil
}

// EndSession closes the open session and records its summary.
func (t *Tracker) EndSession(ctx context.Context) (Summary, error) {
	if _, err := t.Observe(ctx); err != nil {
		return Summary{}, err
	}
	s, err := t.Current(ctx)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		Duration: s.Observed,
		Writings: len(s.Writings),
		Depth:    s.Depth,
		Silences: s.Silences,
	}
	if err := t.record(ctx, Event{Type: EventSessionEnded, Summary: &sum}); err != nil {
		return Summary{}, err
	}
	if err := kv.Save(ctx, t.store, sessionKey, Session{}); err != nil {
		return Summary{}, fmt.Errorf("end session: %w", err)
	}
	return sum, nil
}

// History returns the recorded events, oldest first.
func (t *Tracker) History(ctx context.Context) ([]Event, error) {
	return kv.LoadList[Event](ctx, t.store, historyKey)
}

// Evaluate derives the constancy level from the history.
func (t *Tracker) Evaluate(ctx context.Context) (Constancy, error) {
	history, err := t.History(ctx)
	if err != nil {
		return Constancy{}, err
	}

	var c Constancy
	var depths []int
	for _, e := range history {
		switch e.Type {
		case EventSessionStarted:
			c.Sessions++
		case EventSilence:
			c.Silences++
		case EventWriting:
			if e.Writing != nil {
				depths = append(depths, e.Writing.Depth)
			}
		}
	}
	c.TotalDwell = c.Silences * t.opts.SilenceSeconds
	if len(depths) >= 2 {
		c.DepthEvolution = depths[len(depths)-1] - depths[0]
	}
	c.Level = level(c)
	return c, nil
}

// Depth rates text from 0 to MaxDepth: one point for more than 20 runes,
// one per depth marker, two for a genuine question.
func (t *Tracker) Depth(text string) int {
	depth := 0
	if utf8.RuneCountInString(text) > 20 {
		depth++
	}
	depth += lexicon.CountContained(text, t.lex.DepthMarkers)
	if strings.Contains(text, "?") && !lexicon.ContainsAny(text, []string{"test"}) {
		depth += 2
	}
	return min(depth, t.opts.MaxDepth)
}

// Authentic reports whether text is more than a throwaway line.
func (t *Tracker) Authentic(text string) bool {
	return !lexicon.ContainsAny(text, t.lex.Blocklist) &&
		utf8.RuneCountInString(text) > 8 &&
		len(strings.Split(text, " ")) > 2
}

func (t *Tracker) elapsed(s Session) int {
	d := t.clock.Now().Sub(s.Start)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

func (t *Tracker) record(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = t.clock.Now()
	}
	if _, err := kv.AppendBounded(ctx, t.store, historyKey, e, t.opts.HistoryCap); err != nil {
		return fmt.Errorf("constancy history: %w", err)
	}
	return nil
}

// averageDepth is the mean depth of authentic writings, or prev when there
// are none.
func averageDepth(ws []Writing, prev float64) float64 {
	sum, n := 0, 0
	for _, w := range ws {
		if w.Authentic {
			sum += w.Depth
			n++
		}
	}
	if n == 0 {
		return prev
	}
	return float64(sum) / float64(n)
}

func level(c Constancy) string {
	switch {
	case c.Sessions >= 5 && c.TotalDwell > 300 && c.Silences > 10:
		return LevelConstant
	case c.Sessions >= 3 && c.TotalDwell > 150:
		return LevelSustained
	case c.Sessions >= 2:
		return LevelReturning
	default:
		return LevelFirst
	}
}
