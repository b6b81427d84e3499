package domain

import "time"

// ============================================================
// Signals - pistas comportamentais extraídas de uma mensagem
// ============================================================

// Signals is the fixed set of behavioral cues detected in one utterance.
// It is recomputed for every message and never stored.
type Signals struct {
	WantsPromo bool `json:"wantsPromo"`
	WantsFast  bool `json:"wantsFast"`
	Indecisive bool `json:"indecisive"`
	Family     bool `json:"family"`
	AddOns     bool `json:"addOns"`
	BigSize    bool `json:"bigSize"`
}

// ============================================================
// Customer profile
// ============================================================

// Tag is a cumulative profile label.
type Tag string

const (
	TagPriceSensitive Tag = "preco_sensivel"
	TagIndecisive     Tag = "indeciso"
	TagFamily         Tag = "familia"
	TagOpenToAddOns   Tag = "aberto_a_adicionais"
	TagBigSize        Tag = "tamanho_grande"
	TagHighTicket     Tag = "ticket_alto"
	TagObjective      Tag = "objetivo"
)

// Segment is the coarse classification derived from the scores.
type Segment string

const (
	SegmentHighTicket Segment = "ticket_alto"
	SegmentIndecisive Segment = "indeciso"
	SegmentFast       Segment = "rapido_objetivo"
	SegmentNeutral    Segment = "neutro"
)

const (
	// DefaultScore is assigned to every score of a first-time customer.
	DefaultScore = 50
	MinScore     = 0
	MaxScore     = 100

	// SegmentThreshold is the score from which a segment applies.
	SegmentThreshold = 70
)

// Scores holds the three numeric profile scores, each in [0,100].
type Scores struct {
	Ticket     int `json:"score_ticket"`
	Speed      int `json:"score_speed"`
	Indecision int `json:"score_indecisao"`
}

// SegmentFor classifies scores. Ticket is checked before indecision, which
// is checked before speed.
func SegmentFor(s Scores) Segment {
	switch {
	case s.Ticket >= SegmentThreshold:
		return SegmentHighTicket
	case s.Indecision >= SegmentThreshold:
		return SegmentIndecisive
	case s.Speed >= SegmentThreshold:
		return SegmentFast
	default:
		return SegmentNeutral
	}
}

// TagSet is an insertion-ordered set of tags.
type TagSet []Tag

// Has reports whether t is present.
func (s TagSet) Has(t Tag) bool {
	for _, existing := range s {
		if existing == t {
			return true
		}
	}
	return false
}

// Add appends t unless it is already present.
func (s TagSet) Add(t Tag) TagSet {
	if s.Has(t) {
		return s
	}
	return append(s, t)
}

// Clone returns an independent copy.
func (s TagSet) Clone() TagSet {
	out := make(TagSet, len(s))
	copy(out, s)
	return out
}

// CustomerProfile is the durable record of a customer's inferred tags and scores.
// Phone is the sender identifier and never leaves the service in API payloads;
// AnonID is the stable pseudonymous id used instead.
type CustomerProfile struct {
	Phone             string    `json:"-"`
	AnonID            string    `json:"anon_id"`
	Tags              TagSet    `json:"tags"`
	Scores            Scores    `json:"scores"`
	Segment           Segment   `json:"segment"`
	LastInteractionAt time.Time `json:"last_interaction_at,omitempty"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// NewCustomerProfile builds a first-time profile: no tags, default scores.
func NewCustomerProfile(phone string) *CustomerProfile {
	return &CustomerProfile{
		Phone: phone,
		Tags:  TagSet{},
		Scores: Scores{
			Ticket:     DefaultScore,
			Speed:      DefaultScore,
			Indecision: DefaultScore,
		},
		Segment: SegmentNeutral,
	}
}

// StoredScores carries possibly-missing scores read from persistence.
type StoredScores struct {
	Ticket     *int
	Speed      *int
	Indecision *int
}

// RestoreCustomerProfile rebuilds a profile from persisted columns, filling
// any missing score with DefaultScore. The segment is always derived from the
// restored scores; a stored segment column is never read back.
func RestoreCustomerProfile(phone, anonID string, tags []string, scores StoredScores, lastInteraction time.Time) *CustomerProfile {
	p := NewCustomerProfile(phone)
	p.AnonID = anonID
	for _, t := range tags {
		if t != "" {
			p.Tags = p.Tags.Add(Tag(t))
		}
	}
	if scores.Ticket != nil {
		p.Scores.Ticket = *scores.Ticket
	}
	if scores.Speed != nil {
		p.Scores.Speed = *scores.Speed
	}
	if scores.Indecision != nil {
		p.Scores.Indecision = *scores.Indecision
	}
	p.Segment = SegmentFor(p.Scores)
	p.LastInteractionAt = lastInteraction
	return p
}

// HasInteracted reports whether a previous interaction timestamp is known.
func (p *CustomerProfile) HasInteracted() bool {
	return p != nil && !p.LastInteractionAt.IsZero()
}

// TagStrings returns the tags as plain strings, for persistence.
func (p *CustomerProfile) TagStrings() []string {
	out := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		out = append(out, string(t))
	}
	return out
}
