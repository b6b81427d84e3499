// Package postgres implements the profile and rule-override stores directly
// on Postgres, for deployments that do not go through Supabase PostgREST.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/infra/resilience"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

// Schema creates the two tables the assistant needs. Same shape as the
// Supabase deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS customer_profiles (
	phone               TEXT PRIMARY KEY,
	anon_id             TEXT NOT NULL,
	tags                JSONB NOT NULL DEFAULT '[]'::jsonb,
	score_ticket        INTEGER,
	score_speed         INTEGER,
	score_indecisao     INTEGER,
	segment             TEXT NOT NULL DEFAULT 'neutro',
	last_interaction_at TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS app_settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store is a ProfileStore and RuleOverrideStore over database/sql + lib/pq.
type Store struct {
	db     *sql.DB
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// Open connects to dsn and pings the server.
func Open(ctx context.Context, dsn string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db, cb, cfg, logger), nil
}

// New wraps an existing *sql.DB.
func New(db *sql.DB, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Store {
	return &Store{db: db, cb: cb, cfg: cfg, logger: logger}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ============================================================
// ProfileStore
// ============================================================

// GetProfile loads the profile stored for phone.
func (s *Store) GetProfile(ctx context.Context, phone string) (*domain.CustomerProfile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProfile")
	defer span.End()

	var p *domain.CustomerProfile
	err := s.call(ctx, "customer_profiles", func() error {
		var (
			anonID        string
			rawTags       []byte
			ticket, speed sql.NullInt64
			indecision    sql.NullInt64
			last, created pq.NullTime
		)
		row := s.db.QueryRowContext(ctx, `
			SELECT anon_id, tags, score_ticket, score_speed, score_indecisao,
			       last_interaction_at, created_at
			FROM customer_profiles WHERE phone = $1`, phone)
		err := row.Scan(&anonID, &rawTags, &ticket, &speed, &indecision, &last, &created)
		if errors.Is(err, sql.ErrNoRows) {
			p = nil
			return nil
		}
		if err != nil {
			return err
		}

		var tags []string
		if len(rawTags) > 0 {
			if err := json.Unmarshal(rawTags, &tags); err != nil {
				return resilience.Permanent(fmt.Errorf("decode tags: %w", err))
			}
		}
		p = domain.RestoreCustomerProfile(phone, anonID, tags, domain.StoredScores{
			Ticket:     nullInt(ticket),
			Speed:      nullInt(speed),
			Indecision: nullInt(indecision),
		}, last.Time)
		if created.Valid {
			p.CreatedAt = created.Time
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: phone}
	}
	return p, nil
}

// SaveProfile upserts p on phone. created_at is only written on insert.
func (s *Store) SaveProfile(ctx context.Context, p *domain.CustomerProfile) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveProfile")
	defer span.End()

	tags, err := json.Marshal(p.TagStrings())
	if err != nil {
		return err
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	return s.call(ctx, "customer_profiles", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO customer_profiles
				(phone, anon_id, tags, score_ticket, score_speed, score_indecisao,
				 segment, last_interaction_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (phone) DO UPDATE SET
				anon_id = EXCLUDED.anon_id,
				tags = EXCLUDED.tags,
				score_ticket = EXCLUDED.score_ticket,
				score_speed = EXCLUDED.score_speed,
				score_indecisao = EXCLUDED.score_indecisao,
				segment = EXCLUDED.segment,
				last_interaction_at = EXCLUDED.last_interaction_at`,
			p.Phone, p.AnonID, tags,
			p.Scores.Ticket, p.Scores.Speed, p.Scores.Indecision,
			string(p.Segment), pq.NullTime{Time: p.LastInteractionAt, Valid: !p.LastInteractionAt.IsZero()},
			created,
		)
		return err
	})
}

// ============================================================
// RuleOverrideStore - app_settings
// ============================================================

// GetRuleOverride returns the override stored under key, if any.
func (s *Store) GetRuleOverride(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetRuleOverride")
	defer span.End()

	var (
		text  string
		found bool
	)
	err := s.call(ctx, "app_settings", func() error {
		err := s.db.QueryRowContext(ctx, `SELECT value FROM app_settings WHERE key = $1`, key).Scan(&text)
		if errors.Is(err, sql.ErrNoRows) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return text, found, nil
}

// UpsertRuleOverride stores text under key.
func (s *Store) UpsertRuleOverride(ctx context.Context, key, text string) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpsertRuleOverride")
	defer span.End()

	return s.call(ctx, "app_settings", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			key, text)
		return err
	})
}

// DeleteRuleOverride removes key. Absent keys are ignored.
func (s *Store) DeleteRuleOverride(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteRuleOverride")
	defer span.End()

	return s.call(ctx, "app_settings", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM app_settings WHERE key = $1`, key)
		return err
	})
}

func (s *Store) call(ctx context.Context, table string, fn func() error) error {
	return resilience.Call(ctx, s.cb, s.cfg, "postgres/"+table, func() error {
		err := fn()
		if err != nil && !retryable(err) {
			s.logger.Warn("postgres: query failed", zap.String("table", table), zap.Error(err))
			return resilience.Permanent(err)
		}
		return err
	})
}

// retryable reports whether err is a transient server condition: connection
// exceptions (08), insufficient resources (53), operator intervention (57)
// and serialization failures/deadlocks (40). Anything else from the server is
// a bug in the query and retrying cannot help.
func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return !resilience.IsPermanent(err)
	}
	switch code := string(pqErr.Code); {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"),
		strings.HasPrefix(code, "57"), strings.HasPrefix(code, "40"):
		return true
	default:
		return false
	}
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
