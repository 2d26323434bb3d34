package ritual

import "time"

// Kind distinguishes what a visitor submitted.
type Kind string

const (
	// KindOffer is something the visitor can give.
	KindOffer Kind = "offer"

	// KindNeed is something the visitor asks for.
	KindNeed Kind = "need"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindOffer || k == KindNeed
}

// Opposite returns the kind a submission is matched against.
func (k Kind) Opposite() Kind {
	if k == KindOffer {
		return KindNeed
	}
	return KindOffer
}

// WritingPattern holds the synthetic typing statistics of a submission.
// None of these are measured; they are estimated from the text alone.
type WritingPattern struct {
	EstimatedSpeed      float64 `json:"estimated_speed"`
	ReflectivePauses    int     `json:"reflective_pauses"`
	ApparentCorrections int     `json:"apparent_corrections"`
	SyntacticComplexity float64 `json:"syntactic_complexity"`
}

// Entry is a scored offer or need submission.
//
// Entries are created by the verifier and appended to a registry only when
// Verified is true. They are never updated; eviction happens only through
// bounded-list truncation.
type Entry struct {
	// TextHash is the dedup hash of the submitted text.
	TextHash string `json:"text_hash"`

	// Score is the authenticity score in [0,1].
	Score float64 `json:"score"`

	// SubmittedAt is the wall-clock time of submission.
	SubmittedAt time.Time `json:"submitted_at"`

	// Kind is offer or need.
	Kind Kind `json:"kind"`

	// Verified is the only outcome surfaced to callers.
	Verified bool `json:"verified"`

	// DwellSeconds is the caller-supplied dwell time at submission.
	DwellSeconds int `json:"dwell_seconds"`

	// Pattern is the synthetic writing pattern.
	Pattern WritingPattern `json:"pattern"`

	// Fingerprint is the lossy privacy-preserving keyword trace
	// (first few long words of the text). Matching runs on this.
	Fingerprint string `json:"fingerprint"`

	// Huella identifies the verification without exposing content.
	// Empty when Verified is false.
	Huella string `json:"huella,omitempty"`
}

// Match records an offer that satisfied a need.
// Matches are never mutated.
type Match struct {
	OfferRef       string    `json:"offer_ref"`
	NeedRef        string    `json:"need_ref"`
	Overlap        int       `json:"overlap"`
	OverlapScore   float64   `json:"overlap_score"`
	OfferedAt      time.Time `json:"offered_at"`
	CreatedAt      time.Time `json:"created_at"`
	ConnectionCode string    `json:"connection_code"`
}

// Signal is an acknowledgment left by a visitor after a match.
type Signal struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// InhabitantState is the per-visitor aggregate derived from the registry.
// Consecrated and Sealed are one-way: once true they never revert.
type InhabitantState struct {
	Phase       Phase `json:"phase"`
	OffersCount int   `json:"offers_count"`
	NeedsCount  int   `json:"needs_count"`
	Matches     int   `json:"matches"`
	SignalsLeft int   `json:"signals_left"`
	Consecrated bool  `json:"consecrated"`
	Sealed      bool  `json:"sealed"`

	ConsecrationHuella string `json:"consecration_huella,omitempty"`
	SealHuella         string `json:"seal_huella,omitempty"`
}
