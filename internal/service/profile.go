package service

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
)

const anonIDLength = 10

// ProfileAggregator folds the signals of a new utterance into a customer
// profile. It is a pure transform; the caller owns persistence and must
// serialize concurrent updates for the same customer.
type ProfileAggregator struct {
	salt string
}

// NewProfileAggregator creates an aggregator bound to the anon-id salt.
func NewProfileAggregator(salt string) *ProfileAggregator {
	return &ProfileAggregator{salt: salt}
}

// Update returns a new profile; existing is never mutated. A nil existing
// profile behaves as a first-time customer.
func (a *ProfileAggregator) Update(phone, userText, historyText string, existing *domain.CustomerProfile) *domain.CustomerProfile {
	sig := DetectSignals(userText)
	sigHistory := DetectSignals(historyText)

	out := domain.NewCustomerProfile(phone)
	if existing != nil {
		out.Tags = existing.Tags.Clone()
		out.Scores = existing.Scores
		out.AnonID = existing.AnonID
		out.LastInteractionAt = existing.LastInteractionAt
		out.CreatedAt = existing.CreatedAt
	}

	// tags: either source counts, never removed
	tagRules := []struct {
		hit bool
		tag domain.Tag
	}{
		{sig.WantsPromo || sigHistory.WantsPromo, domain.TagPriceSensitive},
		{sig.Indecisive || sigHistory.Indecisive, domain.TagIndecisive},
		{sig.Family || sigHistory.Family, domain.TagFamily},
		{sig.AddOns || sigHistory.AddOns, domain.TagOpenToAddOns},
		{sig.BigSize || sigHistory.BigSize, domain.TagBigSize},
	}
	for _, r := range tagRules {
		if r.hit {
			out.Tags = out.Tags.Add(r.tag)
		}
	}

	// scores move only on the current utterance
	s := &out.Scores
	if sig.AddOns {
		s.Ticket += 10
	}
	if sig.BigSize {
		s.Ticket += 10
	}
	if sig.Family {
		s.Ticket += 8
	}
	if sig.WantsPromo {
		s.Ticket -= 5
	}
	if sig.WantsFast {
		s.Speed += 12
		s.Indecision -= 6
	}
	if sig.Indecisive {
		s.Speed -= 6
		s.Indecision += 12
	}
	s.Ticket = clampScore(s.Ticket)
	s.Speed = clampScore(s.Speed)
	s.Indecision = clampScore(s.Indecision)

	out.Segment = domain.SegmentFor(out.Scores)
	switch out.Segment {
	case domain.SegmentHighTicket:
		out.Tags = out.Tags.Add(domain.TagHighTicket)
	case domain.SegmentFast:
		out.Tags = out.Tags.Add(domain.TagObjective)
	}

	if out.AnonID == "" {
		out.AnonID = AnonID(phone, a.salt)
	}
	return out
}

// AnonID derives the stable pseudonymous id for a phone number.
func AnonID(phone, salt string) string {
	sum := sha256.Sum256([]byte(phone + salt))
	return hex.EncodeToString(sum[:])[:anonIDLength]
}

func clampScore(v int) int {
	if v < domain.MinScore {
		return domain.MinScore
	}
	if v > domain.MaxScore {
		return domain.MaxScore
	}
	return v
}
