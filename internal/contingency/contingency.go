// Package contingency runs the crisis protocol: when a contingency is
// activated, offerers whose skills resonate with it are convoked, mobile
// niches are deployed at its location and emergency donations open.
package contingency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/cora/internal/kv"
	"github.com/roach88/cora/internal/lexicon"
	"github.com/roach88/cora/internal/niches"
	"github.com/roach88/cora/internal/ritual"
)

const (
	contingenciesKey = "contingency/active"
	convocationsKey  = "contingency/convocations"
	mobileNichesKey  = "contingency/mobile_niches"
	needsKey         = "contingency/emergency_needs"
	donationsKey     = "contingency/donations"
)

// Contingency kinds with dedicated skills and niches.
const (
	KindNaturalDisaster   = "desastre_natural"
	KindCommunityCrisis   = "crisis_comunitaria"
	KindPersonalEmergency = "emergencia_personal"
)

// Statuses.
const (
	StatusActive   = "activa"
	StatusConvoked = "convocado"
	StatusPending  = "pendiente"
	StatusAccepted = "aceptada"
	StatusDeployed = "desplegado"
)

// DefaultUrgency is used when none is given.
const DefaultUrgency = "media"

// ErrConvocationNotFound is returned for an unknown convocation id.
var ErrConvocationNotFound = errors.New("contingency: convocation not found")

// Instructions are handed to every accepted responder.
var Instructions = []string{
	"Mantén la presencia consciente en todo momento",
	"Reconoce la dignidad de cada persona que atiendas",
	"Distribuye desde el corazón, no desde el protocolo",
	"Registra cada gesto como acto de servicio consciente",
	"Recuerda: acompañas, no sustituyes",
}

// Profile lists what a kind of contingency needs.
type Profile struct {
	Skills []string `yaml:"skills"`
	Niches []string `yaml:"niches"`
}

// Options configure the protocol.
type Options struct {
	// MinResonance is exclusive.
	MinResonance float64            `yaml:"min_resonance"`
	Profiles     map[string]Profile `yaml:"profiles"`
	Fallback     Profile            `yaml:"fallback"`
}

// DefaultOptions returns the three known contingency profiles.
func DefaultOptions() Options {
	return Options{
		MinResonance: 0.7,
		Profiles: map[string]Profile{
			KindNaturalDisaster: {
				Skills: []string{
					"logística", "distribución", "acompañamiento", "primeros auxilios",
					"coordinación", "comunicación", "traducción", "orientación",
				},
				Niches: []string{"distribucion_alimentos", "acompañamiento_emocional", "orientacion_legal"},
			},
			KindCommunityCrisis: {
				Skills: []string{
					"mediación", "escucha", "orientación legal", "acompañamiento",
					"gestión recursos", "comunicación", "organización comunitaria",
				},
				Niches: []string{"mediacion_conflictos", "apoyo_psicosocial", "gestion_recursos"},
			},
			KindPersonalEmergency: {
				Skills: []string{
					"escucha", "acompañamiento emocional", "orientación",
					"apoyo psicológico", "gestión crisis", "red de apoyo",
				},
				Niches: []string{"escucha_activa", "orientacion_crisis", "red_apoyo"},
			},
		},
		Fallback: Profile{
			Skills: []string{"acompañamiento", "apoyo"},
			Niches: []string{"acompañamiento_general"},
		},
	}
}

func (o Options) profile(kind string) Profile {
	if p, ok := o.Profiles[kind]; ok {
		return p
	}
	return o.Fallback
}

// Summons is an offerer convoked by a contingency.
type Summons struct {
	OffererID      string    `json:"offerer_id"`
	ServiceHuella  string    `json:"service_huella"`
	Resonance      float64   `json:"resonance"`
	RelevantSkills []string  `json:"relevant_skills"`
	ConvokedAt     time.Time `json:"convoked_at"`
	Status         string    `json:"status"`
}

// Contingency is an activated crisis.
type Contingency struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	Location           string    `json:"location"`
	ActivatedAt        time.Time `json:"activated_at"`
	Urgency            string    `json:"urgency"`
	Convoked           []Summons `json:"convoked"`
	MobileNiches       []string  `json:"mobile_niches"`
	DonationsActivated int       `json:"donations_activated"`
	Status             string    `json:"status"`
}

// Convocation is the notice an offerer sees and answers.
type Convocation struct {
	ID              string    `json:"id"`
	ContingencyID   string    `json:"contingency_id"`
	Kind            string    `json:"kind"`
	Location        string    `json:"location"`
	Urgency         string    `json:"urgency"`
	RequestedSkills []string  `json:"requested_skills"`
	Timestamp       time.Time `json:"timestamp"`
	Status          string    `json:"status"`

	RespondedBy   string     `json:"responded_by,omitempty"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
	AssignedNiche string     `json:"assigned_niche,omitempty"`
}

// MobileNiche is a distribution point deployed for a contingency.
type MobileNiche struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	ContingencyID string    `json:"contingency_id"`
	Location      string    `json:"location"`
	DeployedAt    time.Time `json:"deployed_at"`
	Resources     []string  `json:"resources"`
	Distributions int       `json:"distributions"`
	Responsible   string    `json:"responsible,omitempty"`
	Status        string    `json:"status"`
}

// DonationModule describes the relaxed rules of emergency donations.
type DonationModule struct {
	SimplifiedCriteria    bool `json:"simplified_criteria"`
	AcceleratedCheck      bool `json:"accelerated_check"`
	ImmediateDistribution bool `json:"immediate_distribution"`
	BasicTraceability     bool `json:"basic_traceability"`
}

// DonationActivation opens emergency donations for a contingency.
type DonationActivation struct {
	ContingencyID string         `json:"contingency_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Module        DonationModule `json:"module"`
	Received      int            `json:"received"`
	Distributed   int            `json:"distributed"`
}

// EmergencyNeed is a need registered under simplified verification.
type EmergencyNeed struct {
	ID                     string    `json:"id"`
	Need                   string    `json:"need"`
	Location               string    `json:"location"`
	Urgency                string    `json:"urgency"`
	Timestamp              time.Time `json:"timestamp"`
	SimplifiedVerification bool      `json:"simplified_verification"`
	Status                 string    `json:"status"`
	AssignedNiche          string    `json:"assigned_niche,omitempty"`
}

// Response is the answer to an accepted convocation.
type Response struct {
	Accepted      bool     `json:"accepted"`
	Message       string   `json:"message,omitempty"`
	AssignedNiche string   `json:"assigned_niche,omitempty"`
	Instructions  []string `json:"instructions,omitempty"`
}

// Stats summarise the protocol.
type Stats struct {
	ActiveContingencies int        `json:"active_contingencies"`
	MobileNiches        int        `json:"mobile_niches"`
	Convoked            int        `json:"convoked"`
	EmergencyNeeds      int        `json:"emergency_needs"`
	LastActivation      *time.Time `json:"last_activation,omitempty"`
}

// OffererSource supplies the offerers a contingency may convoke.
type OffererSource interface {
	ActiveOfferers(ctx context.Context) ([]niches.Offerer, error)
}

// Protocol runs contingencies over a shared store scope.
type Protocol struct {
	store    kv.Store
	offerers OffererSource
	clock    ritual.Clock
	ids      ritual.IDGenerator
	opts     Options
}

// New creates a protocol.
func New(store kv.Store, offerers OffererSource, clock ritual.Clock, ids ritual.IDGenerator, opts Options) *Protocol {
	return &Protocol{store: store, offerers: offerers, clock: clock, ids: ids, opts: opts}
}

// Activate starts a contingency of kind at location: resonant offerers are
// convoked, mobile niches deployed and emergency donations opened.
func (p *Protocol) Activate(ctx context.Context, kind, location, urgency string) (Contingency, error) {
	if urgency == "" {
		urgency = DefaultUrgency
	}
	now := p.clock.Now()
	profile := p.opts.profile(kind)

	c := Contingency{
		ID:           "CONT-" + p.ids.Generate(),
		Kind:         kind,
		Location:     location,
		ActivatedAt:  now,
		Urgency:      urgency,
		Convoked:     []Summons{},
		MobileNiches: []string{},
		Status:       StatusActive,
	}

	if err := p.convoke(ctx, &c, profile.Skills); err != nil {
		return Contingency{}, fmt.Errorf("activate contingency: %w", err)
	}
	if err := p.deploy(ctx, &c, profile.Niches); err != nil {
		return Contingency{}, fmt.Errorf("activate contingency: %w", err)
	}
	if err := p.openDonations(ctx, &c); err != nil {
		return Contingency{}, fmt.Errorf("activate contingency: %w", err)
	}

	if _, err := kv.AppendBounded(ctx, p.store, contingenciesKey, c, 0); err != nil {
		return Contingency{}, fmt.Errorf("activate contingency: %w", err)
	}
	slog.Info("contingency activated",
		"id", c.ID,
		"kind", kind,
		"convoked", len(c.Convoked),
		"niches", len(c.MobileNiches),
	)
	return c, nil
}

func (p *Protocol) convoke(ctx context.Context, c *Contingency, needed []string) error {
	offerers, err := p.offerers.ActiveOfferers(ctx)
	if err != nil {
		return err
	}

	for _, o := range offerers {
		r := Resonance(o.Skills, needed)
		if r <= p.opts.MinResonance {
			continue
		}
		s := Summons{
			OffererID:      o.ID,
			ServiceHuella:  o.ServiceHuella,
			Resonance:      r,
			RelevantSkills: relevantSkills(o.Skills, needed),
			ConvokedAt:     c.ActivatedAt,
			Status:         StatusConvoked,
		}
		c.Convoked = append(c.Convoked, s)

		conv := Convocation{
			ID:              "CONV-" + p.ids.Generate(),
			ContingencyID:   c.ID,
			Kind:            c.Kind,
			Location:        c.Location,
			Urgency:         c.Urgency,
			RequestedSkills: s.RelevantSkills,
			Timestamp:       s.ConvokedAt,
			Status:          StatusPending,
		}
		if _, err := kv.AppendBounded(ctx, p.store, convocationsKey, conv, 0); err != nil {
			return err
		}
	}
	return nil
}

func (p *Protocol) deploy(ctx context.Context, c *Contingency, types []string) error {
	deployed, err := p.MobileNiches(ctx)
	if err != nil {
		return err
	}
	for _, typ := range types {
		n := MobileNiche{
			ID:            "NM-" + p.ids.Generate(),
			Type:          typ,
			ContingencyID: c.ID,
			Location:      c.Location,
			DeployedAt:    c.ActivatedAt,
			Resources:     []string{},
			Status:        StatusDeployed,
		}
		deployed = append(deployed, n)
		c.MobileNiches = append(c.MobileNiches, n.ID)
	}
	return kv.Save(ctx, p.store, mobileNichesKey, deployed)
}

func (p *Protocol) openDonations(ctx context.Context, c *Contingency) error {
	a := DonationActivation{
		ContingencyID: c.ID,
		Timestamp:     c.ActivatedAt,
		Module: DonationModule{
			SimplifiedCriteria:    true,
			AcceleratedCheck:      true,
			ImmediateDistribution: true,
			BasicTraceability:     true,
		},
	}
	if _, err := kv.AppendBounded(ctx, p.store, donationsKey, a, 0); err != nil {
		return err
	}
	c.DonationsActivated = 1
	return nil
}

// RegisterEmergencyNeed records a need and assigns it to the first deployed
// mobile niche at the same location, if any.
func (p *Protocol) RegisterEmergencyNeed(ctx context.Context, need, location, urgency string) (EmergencyNeed, error) {
	if urgency == "" {
		urgency = DefaultUrgency
	}
	n := EmergencyNeed{
		ID:                     "NE-" + p.ids.Generate(),
		Need:                   need,
		Location:               location,
		Urgency:                urgency,
		Timestamp:              p.clock.Now(),
		SimplifiedVerification: true,
		Status:                 StatusActive,
	}

	deployed, err := p.MobileNiches(ctx)
	if err != nil {
		return EmergencyNeed{}, err
	}
	for i := range deployed {
		if deployed[i].Location == location && deployed[i].Status == StatusDeployed {
			n.AssignedNiche = deployed[i].ID
			deployed[i].Resources = append(deployed[i].Resources, n.ID)
			if err := kv.Save(ctx, p.store, mobileNichesKey, deployed); err != nil {
				return EmergencyNeed{}, fmt.Errorf("register emergency need: %w", err)
			}
			break
		}
	}

	if _, err := kv.AppendBounded(ctx, p.store, needsKey, n, 0); err != nil {
		return EmergencyNeed{}, fmt.Errorf("register emergency need: %w", err)
	}
	return n, nil
}

// Respond answers convocation id. Declining changes nothing. Accepting marks
// the convocation and assigns the responder to the first mobile niche of
// its contingency when that niche has no responsible yet.
func (p *Protocol) Respond(ctx context.Context, id string, accept bool, responderHuella string) (Response, error) {
	convs, err := p.Convocations(ctx)
	if err != nil {
		return Response{}, err
	}
	idx := -1
	for i := range convs {
		if convs[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Response{}, fmt.Errorf("%w: %s", ErrConvocationNotFound, id)
	}
	if !accept {
		return Response{Accepted: false}, nil
	}

	now := p.clock.Now()
	conv := &convs[idx]
	conv.Status = StatusAccepted
	conv.RespondedBy = responderHuella
	conv.RespondedAt = &now

	if err := p.assign(ctx, conv, responderHuella); err != nil {
		return Response{}, fmt.Errorf("respond: %w", err)
	}
	if err := kv.Save(ctx, p.store, convocationsKey, convs); err != nil {
		return Response{}, fmt.Errorf("respond: %w", err)
	}

	return Response{
		Accepted:      true,
		Message:       "Has sido asignado como brigada consciente.",
		AssignedNiche: conv.AssignedNiche,
		Instructions:  Instructions,
	}, nil
}

func (p *Protocol) assign(ctx context.Context, conv *Convocation, responder string) error {
	contingencies, err := p.Contingencies(ctx)
	if err != nil {
		return err
	}
	var first string
	for _, c := range contingencies {
		if c.ID == conv.ContingencyID && len(c.MobileNiches) > 0 {
			first = c.MobileNiches[0]
			break
		}
	}
	if first == "" {
		return nil
	}

	deployed, err := p.MobileNiches(ctx)
	if err != nil {
		return err
	}
	for i := range deployed {
		if deployed[i].ID == first && deployed[i].Responsible == "" {
			deployed[i].Responsible = responder
			conv.AssignedNiche = first
			return kv.Save(ctx, p.store, mobileNichesKey, deployed)
		}
	}
	return nil
}

// Contingencies returns every activated contingency, oldest first.
func (p *Protocol) Contingencies(ctx context.Context) ([]Contingency, error) {
	return kv.LoadList[Contingency](ctx, p.store, contingenciesKey)
}

// Convocations returns every convocation, oldest first.
func (p *Protocol) Convocations(ctx context.Context) ([]Convocation, error) {
	return kv.LoadList[Convocation](ctx, p.store, convocationsKey)
}

// MobileNiches returns every deployed mobile niche.
func (p *Protocol) MobileNiches(ctx context.Context) ([]MobileNiche, error) {
	return kv.LoadList[MobileNiche](ctx, p.store, mobileNichesKey)
}

// EmergencyNeeds returns every registered emergency need.
func (p *Protocol) EmergencyNeeds(ctx context.Context) ([]EmergencyNeed, error) {
	return kv.LoadList[EmergencyNeed](ctx, p.store, needsKey)
}

// Stats summarises the protocol.
func (p *Protocol) Stats(ctx context.Context) (Stats, error) {
	contingencies, err := p.Contingencies(ctx)
	if err != nil {
		return Stats{}, err
	}
	deployed, err := p.MobileNiches(ctx)
	if err != nil {
		return Stats{}, err
	}
	needs, err := p.EmergencyNeeds(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		MobileNiches:   len(deployed),
		EmergencyNeeds: len(needs),
	}
	for _, c := range contingencies {
		if c.Status == StatusActive {
			st.ActiveContingencies++
		}
		st.Convoked += len(c.Convoked)
		if st.LastActivation == nil || c.ActivatedAt.After(*st.LastActivation) {
			at := c.ActivatedAt
			st.LastActivation = &at
		}
	}
	return st, nil
}

// Resonance is the share of needed skills found in the offerer's skill
// descriptions, counting every skill and needed pair, capped at 1.
func Resonance(skills []niches.Skill, needed []string) float64 {
	if len(needed) == 0 {
		return 0
	}
	hits := 0
	for _, sk := range skills {
		for _, n := range needed {
			if lexicon.ContainsAny(sk.Description, []string{n}) {
				hits++
			}
		}
	}
	return min(float64(hits)/float64(len(needed)), 1.0)
}

func relevantSkills(skills []niches.Skill, needed []string) []string {
	out := []string{}
	for _, sk := range skills {
		if lexicon.ContainsAny(sk.Description, needed) {
			out = append(out, sk.Huella)
		}
	}
	return out
}
