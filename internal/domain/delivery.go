package domain

// ============================================================
// Delivery quote
// ============================================================

// QuoteReason tags a failed quote. Callers branch on it.
type QuoteReason string

const (
	ReasonNoKey             QuoteReason = "NO_KEY"
	ReasonIncompleteAddress QuoteReason = "INCOMPLETE_ADDRESS"
	ReasonNoKM              QuoteReason = "NO_KM"
	ReasonQuoteFailed       QuoteReason = "QUOTE_FAILED"
)

// DeliveryQuote is the serviceability decision for one address.
// Produced fresh per request and never cached.
type DeliveryQuote struct {
	OK                 bool        `json:"ok"`
	Reason             QuoteReason `json:"reason,omitempty"`
	Within             *bool       `json:"within,omitempty"`
	Soft               *bool       `json:"soft,omitempty"`
	KM                 *float64    `json:"km,omitempty"`
	ETAMin             *int        `json:"etaMin,omitempty"`
	Fee                *float64    `json:"fee"`
	FormattedAddress   string      `json:"formatted,omitempty"`
	ServiceLimitKMHint float64     `json:"serviceLimitKmHint"`
}

// Serviceable reports whether the quote succeeded inside a fee tier.
func (q *DeliveryQuote) Serviceable() bool {
	return q != nil && q.OK && q.Within != nil && *q.Within
}

// DistanceResult is what the distance/geocode collaborator measured.
// KM may be NaN when the route could not be measured.
type DistanceResult struct {
	KM               float64 `json:"km"`
	ETAMinutes       int     `json:"etaMinutes"`
	FormattedAddress string  `json:"formattedAddress"`
}

// FeeTier charges Fee for any distance up to and including UpToKM.
type FeeTier struct {
	UpToKM float64
	Fee    float64
}

// DefaultFeeTiers is the distance-tier schedule, ascending. Anything past the
// last tier is not serviceable.
var DefaultFeeTiers = []FeeTier{
	{UpToKM: 2, Fee: 5},
	{UpToKM: 3, Fee: 8},
	{UpToKM: 6, Fee: 12},
	{UpToKM: 10, Fee: 15},
}
