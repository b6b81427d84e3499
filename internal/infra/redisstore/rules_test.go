package redisstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/redisstore"

	"github.com/redis/go-redis/v9"
)

func TestRuleStore_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	s := redisstore.NewRuleStore(client, "test:")

	_, _, err := s.GetRuleOverride(context.Background(), "RULES_BASE")
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if ext.Service != "redis" {
		t.Errorf("expected service redis, got %q", ext.Service)
	}
}

// TestRuleStore_Redis runs against a real server when REDIS_URL is set.
func TestRuleStore_Redis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	s, err := redisstore.Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	key := "RULES_TEST_" + time.Now().Format("150405.000000")
	defer s.DeleteRuleOverride(ctx, key)

	if _, found, err := s.GetRuleOverride(ctx, key); err != nil || found {
		t.Fatalf("expected absent key, got found=%v err=%v", found, err)
	}
	if err := s.UpsertRuleOverride(ctx, key, "Promoção de quarta!"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	text, found, err := s.GetRuleOverride(ctx, key)
	if err != nil || !found || text != "Promoção de quarta!" {
		t.Fatalf("unexpected %q found=%v err=%v", text, found, err)
	}
	if err := s.DeleteRuleOverride(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := s.GetRuleOverride(ctx, key); found {
		t.Error("expected key gone")
	}
}
