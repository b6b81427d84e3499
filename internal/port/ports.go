// Package port defines the interfaces (ports) for external collaborators.
// Following hexagonal architecture, these ports decouple the decision core
// and the orchestrator from concrete adapters.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
)

// ProfileStore persists customer profiles keyed by phone.
// GetProfile returns *domain.ErrNotFound for an unknown customer.
type ProfileStore interface {
	GetProfile(ctx context.Context, phone string) (*domain.CustomerProfile, error)
	SaveProfile(ctx context.Context, profile *domain.CustomerProfile) error
}

// RuleOverrideStore is the key-value store holding persisted rule overrides.
// GetRuleOverride reports found=false for an absent key.
type RuleOverrideStore interface {
	GetRuleOverride(ctx context.Context, key string) (text string, found bool, err error)
	UpsertRuleOverride(ctx context.Context, key, text string) error
	DeleteRuleOverride(ctx context.Context, key string) error
}

// RuleSource exposes the bundled default rule resources.
type RuleSource interface {
	ModTime(name string) (time.Time, error)
	Read(name string) (string, error)
}

// DistanceLookup measures distance and travel time to an address.
type DistanceLookup interface {
	Lookup(ctx context.Context, address string) (*domain.DistanceResult, error)
}

// ReplyComposer turns a decided turn into the outgoing message text.
type ReplyComposer interface {
	Compose(ctx context.Context, turn *domain.TurnContext) (string, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
