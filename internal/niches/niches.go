// Package niches organises consecrated inhabitants into service niches.
//
// An offerer declares skills in free text. Each skill is categorised by the
// lexicon, the offerer lands in the niche of their majority category, and
// needs are answered with the offerers whose skills are compatible enough.
// Symbolic offices are physical places from which the ritual can be
// activated.
package niches

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/ritual"
)

const (
	offerersKey = "niches/offerers"
	officesKey  = "niches/offices"
)

// Availability and office states.
const (
	AvailabilityActive = "activa"
	OfficeActive       = "activa"
)

// Activation kinds accepted by ActivateOffice.
var activationKinds = map[string]bool{"qr": true, "tarjeta": true, "presencial": true}

var (
	// ErrNotEligible is returned when registering an inhabitant who is not
	// consecrated or has no verified offer.
	ErrNotEligible = errors.New("niches: inhabitant is not eligible")

	// ErrOfficeNotFound is returned for an unknown office id.
	ErrOfficeNotFound = errors.New("niches: office not found")

	// ErrUnknownActivation is returned for an activation kind other than
	// qr, tarjeta or presencial.
	ErrUnknownActivation = errors.New("niches: unknown activation kind")
)

// Options configure compatibility.
type Options struct {
	// MinCompatibility is exclusive.
	MinCompatibility float64 `yaml:"min_compatibility"`
	CategoryWeight   float64 `yaml:"category_weight"`
	KeywordWeight    float64 `yaml:"keyword_weight"`
	MaxKeywords      int     `yaml:"max_keywords"`
}

// DefaultOptions returns 0.4 for a shared category, 0.6 for keywords and a
// 0.6 cut-off.
func DefaultOptions() Options {
	return Options{
		MinCompatibility: 0.6,
		CategoryWeight:   0.4,
		KeywordWeight:    0.6,
		MaxKeywords:      5,
	}
}

// Inhabitant is what the niche service needs to know about a visitor.
type Inhabitant struct {
	Consecrated        bool
	VerifiedOffers     int
	ConsecrationHuella string
}

// Skill is one processed skill of an offerer.
type Skill struct {
	Description string `json:"description"`
	Category    string `json:"category"`
	Huella      string `json:"huella"`
	Verified    bool   `json:"verified"`
}

// Offerer is a registered inhabitant offering skills.
type Offerer struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Skills        []Skill   `json:"skills"`
	Availability  string    `json:"availability"`
	ServiceHuella string    `json:"service_huella"`
	Niche         string    `json:"niche"`
}

// Compatible is an offerer found for a need.
type Compatible struct {
	ID             string   `json:"id"`
	ServiceHuella  string   `json:"service_huella"`
	Compatibility  float64  `json:"compatibility"`
	RelevantSkills []string `json:"relevant_skills"`
}

// Office is a symbolic place of distribution.
type Office struct {
	ID                string    `json:"id"`
	Location          string    `json:"location"`
	ResponsibleHuella string    `json:"responsible_huella"`
	CreatedAt         time.Time `json:"created_at"`
	Offerers          []string  `json:"offerers"`
	Activations       int       `json:"activations"`
	Status            string    `json:"status"`
}

// Activation is returned when the ritual is opened from an office.
type Activation struct {
	Message      string `json:"message"`
	Code         string `json:"code"`
	ThresholdURL string `json:"threshold_url"`
}

// NicheSummary describes one active niche.
type NicheSummary struct {
	Offerers     int       `json:"offerers"`
	Skills       []string  `json:"skills"`
	LastActivity time.Time `json:"last_activity"`
}

// Map is a snapshot of the active niches.
type Map struct {
	Timestamp     time.Time                `json:"timestamp"`
	Niches        map[string]*NicheSummary `json:"niches"`
	TotalOfferers int                      `json:"total_offerers"`
	ActiveOffices int                      `json:"active_offices"`
}

// Service manages offerers and offices in a shared store scope.
type Service struct {
	store kv.Store
	lex   *lexicon.Lexicon
	clock ritual.Clock
	ids   ritual.IDGenerator
	opts  Options
}

// New creates a niche service.
func New(store kv.Store, lex *lexicon.Lexicon, clock ritual.Clock, ids ritual.IDGenerator, opts Options) *Service {
	return &Service{store: store, lex: lex, clock: clock, ids: ids, opts: opts}
}

// RegisterOfferer registers inh with the given skills. Only consecrated
// inhabitants with at least one verified offer are accepted.
func (s *Service) RegisterOfferer(ctx context.Context, inh Inhabitant, skills []string) (Offerer, error) {
	if !inh.Consecrated || inh.VerifiedOffers <= 0 {
		return Offerer{}, ErrNotEligible
	}

	processed := make([]Skill, 0, len(skills))
	for _, sk := range skills {
		processed = append(processed, s.processSkill(sk))
	}

	now := s.clock.Now()
	o := Offerer{
		ID:            "OF-" + s.ids.Generate(),
		Timestamp:     now,
		Skills:        processed,
		Availability:  AvailabilityActive,
		ServiceHuella: serviceHuella(skills, now),
		Niche:         "nicho_" + majorityCategory(processed),
	}

	if _, err := kv.AppendBounded(ctx, s.store, offerersKey, o, 0); err != nil {
		return Offerer{}, fmt.Errorf("register offerer: %w", err)
	}
	slog.Info("offerer registered", "id", o.ID, "niche", o.Niche, "skills", len(o.Skills))
	return o, nil
}

// Offerers returns every registered offerer, oldest first.
func (s *Service) Offerers(ctx context.Context) ([]Offerer, error) {
	return kv.LoadList[Offerer](ctx, s.store, offerersKey)
}

// ActiveOfferers returns the offerers currently available.
func (s *Service) ActiveOfferers(ctx context.Context) ([]Offerer, error) {
	all, err := s.Offerers(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]Offerer, 0, len(all))
	for _, o := range all {
		if o.Availability == AvailabilityActive {
			active = append(active, o)
		}
	}
	return active, nil
}

// FindOfferers returns the active offerers whose compatibility with need is
// above the cut-off, most compatible first.
func (s *Service) FindOfferers(ctx context.Context, need string) ([]Compatible, error) {
	offerers, err := s.ActiveOfferers(ctx)
	if err != nil {
		return nil, err
	}

	category := s.lex.Categorize(need)
	keywords := s.keywords(need)

	found := []Compatible{}
	for _, o := range offerers {
		c := s.compatibility(category, keywords, o.Skills)
		if c <= s.opts.MinCompatibility {
			continue
		}
		found = append(found, Compatible{
			ID:             o.ID,
			ServiceHuella:  o.ServiceHuella,
			Compatibility:  c,
			RelevantSkills: relevantSkills(category, o.Skills),
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Compatibility > found[j].Compatibility
	})
	return found, nil
}

// CreateOffice opens a symbolic office at location under the consecration
// huella of its responsible inhabitant.
func (s *Service) CreateOffice(ctx context.Context, location, responsibleHuella string) (Office, error) {
	o := Office{
		ID:                "OSI-" + s.ids.Generate(),
		Location:          location,
		ResponsibleHuella: responsibleHuella,
		CreatedAt:         s.clock.Now(),
		Offerers:          []string{},
		Status:            OfficeActive,
	}
	if _, err := kv.AppendBounded(ctx, s.store, officesKey, o, 0); err != nil {
		return Office{}, fmt.Errorf("create office: %w", err)
	}
	return o, nil
}

// Offices returns every office, oldest first.
func (s *Service) Offices(ctx context.Context) ([]Office, error) {
	return kv.LoadList[Office](ctx, s.store, officesKey)
}

// ActivateOffice records an activation of kind at office id and returns the
// code and threshold URL under origin.
func (s *Service) ActivateOffice(ctx context.Context, id, kind, origin string) (Activation, error) {
	if !activationKinds[kind] {
		return Activation{}, fmt.Errorf("%w: %q", ErrUnknownActivation, kind)
	}

	offices, err := s.Offices(ctx)
	if err != nil {
		return Activation{}, err
	}
	idx := -1
	for i, o := range offices {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Activation{}, fmt.Errorf("%w: %s", ErrOfficeNotFound, id)
	}

	offices[idx].Activations++
	if err := kv.Save(ctx, s.store, officesKey, offices); err != nil {
		return Activation{}, fmt.Errorf("activate office: %w", err)
	}

	code := "ACT-" + s.ids.Generate()
	return Activation{
		Message:      "CO•RA te reconoce desde este espacio de servicio.",
		Code:         code,
		ThresholdURL: origin + "?activacion=" + url.QueryEscape(code),
	}, nil
}

// NicheMap groups the active offerers by niche.
func (s *Service) NicheMap(ctx context.Context) (Map, error) {
	offerers, err := s.Offerers(ctx)
	if err != nil {
		return Map{}, err
	}
	offices, err := s.Offices(ctx)
	if err != nil {
		return Map{}, err
	}

	m := Map{
		Timestamp:     s.clock.Now(),
		Niches:        map[string]*NicheSummary{},
		TotalOfferers: len(offerers),
	}
	for _, o := range offices {
		if o.Status == OfficeActive {
			m.ActiveOffices++
		}
	}
	for _, o := range offerers {
		if o.Availability != AvailabilityActive {
			continue
		}
		n, ok := m.Niches[o.Niche]
		if !ok {
			n = &NicheSummary{Skills: []string{}}
			m.Niches[o.Niche] = n
		}
		n.Offerers++
		for _, sk := range o.Skills {
			n.Skills = append(n.Skills, sk.Huella)
		}
		n.LastActivity = o.Timestamp
	}
	return m, nil
}

func (s *Service) processSkill(skill string) Skill {
	d := strings.TrimSpace(skill)
	return Skill{
		Description: d,
		Category:    s.lex.Categorize(d),
		Huella:      ritual.Fingerprint(d, 2, 4),
		Verified: utf8.RuneCountInString(d) > 10 &&
			len(strings.Split(d, " ")) >= 2 &&
			!lexicon.ContainsAny(d, s.lex.Blocklist),
	}
}

// keywords are the first few words of text longer than three runes.
func (s *Service) keywords(text string) []string {
	out := []string{}
	for _, w := range strings.Split(lexicon.Normalize(text), " ") {
		if len(out) == s.opts.MaxKeywords {
			break
		}
		if utf8.RuneCountInString(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

func (s *Service) compatibility(category string, keywords []string, skills []Skill) float64 {
	score := 0.0
	for _, sk := range skills {
		if sk.Category == category {
			score += s.opts.CategoryWeight
			break
		}
	}

	if len(keywords) > 0 {
		hits := 0
		for _, k := range keywords {
			for _, sk := range skills {
				if strings.Contains(lexicon.Normalize(sk.Description), k) {
					hits++
					break
				}
			}
		}
		score += float64(hits) / float64(len(keywords)) * s.opts.KeywordWeight
	}
	return min(roundCompat(score), 1.0)
}

func roundCompat(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func relevantSkills(category string, skills []Skill) []string {
	out := []string{}
	for _, sk := range skills {
		if len(out) == 2 {
			break
		}
		if sk.Category == category {
			out = append(out, sk.Huella)
		}
	}
	return out
}

// majorityCategory returns the most frequent category; ties go to the one
// seen first.
func majorityCategory(skills []Skill) string {
	if len(skills) == 0 {
		return "general"
	}
	counts := map[string]int{}
	order := []string{}
	for _, sk := range skills {
		if counts[sk.Category] == 0 {
			order = append(order, sk.Category)
		}
		counts[sk.Category]++
	}
	best := order[0]
	for _, c := range order[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// serviceHuella is HS-<first five runes of up to three skills>-<time tag>.
func serviceHuella(skills []string, at time.Time) string {
	parts := make([]string, 0, 3)
	for i, sk := range skills {
		if i == 3 {
			break
		}
		parts = append(parts, ritual.Head(sk, 5))
	}
	tag := ritual.Tail(strconv.FormatInt(at.UnixMilli(), 36), 4)
	return "HS-" + strings.Join(parts, "-") + "-" + tag
}
