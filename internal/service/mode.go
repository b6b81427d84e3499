package service

import (
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
)

// vipWindow is how recent the last interaction must be for VIP treatment.
const vipWindow = 24 * time.Hour

// SelectMode picks the ruleset for a conversation. Recency beats the day of
// the week; a customer without a profile is always BASE. The weekday is read
// in now's location, so callers pass now in the restaurant's time zone.
func SelectMode(customer *domain.CustomerProfile, now time.Time) domain.Mode {
	if customer == nil {
		return domain.ModeBase
	}
	if customer.HasInteracted() && now.Sub(customer.LastInteractionAt) <= vipWindow {
		return domain.ModeVIP
	}
	switch now.Weekday() {
	case time.Friday, time.Saturday:
		return domain.ModeEvent
	}
	return domain.ModeBase
}
