// Package redisstore keeps rule overrides in Redis, so an operator can swap
// the assistant's rules across replicas without touching the main database.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("redisstore")

// DefaultPrefix namespaces the override keys.
const DefaultPrefix = "pizzaria:settings:"

// RuleStore is a RuleOverrideStore backed by plain Redis strings.
type RuleStore struct {
	client redis.UniversalClient
	prefix string
}

// Connect parses a redis:// URL, connects and pings.
func Connect(ctx context.Context, redisURL string) (*RuleStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRuleStore(client, DefaultPrefix), nil
}

// NewRuleStore wraps an existing client.
func NewRuleStore(client redis.UniversalClient, prefix string) *RuleStore {
	return &RuleStore{client: client, prefix: prefix}
}

func (s *RuleStore) key(k string) string { return s.prefix + k }

// GetRuleOverride returns the override stored under key, if any.
func (s *RuleStore) GetRuleOverride(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "Redis.GetRuleOverride")
	defer span.End()

	text, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return text, true, nil
}

// UpsertRuleOverride stores text under key without expiry.
func (s *RuleStore) UpsertRuleOverride(ctx context.Context, key, text string) error {
	ctx, span := tracer.Start(ctx, "Redis.UpsertRuleOverride")
	defer span.End()

	if err := s.client.Set(ctx, s.key(key), text, 0).Err(); err != nil {
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

// DeleteRuleOverride removes key.
func (s *RuleStore) DeleteRuleOverride(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "Redis.DeleteRuleOverride")
	defer span.End()

	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

// Ping reports whether Redis answers.
func (s *RuleStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RuleStore) Close() error {
	return s.client.Close()
}
