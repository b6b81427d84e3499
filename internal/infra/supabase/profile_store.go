package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/pizzaria-assistant-bfa-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Customer profiles - tabela customer_profiles (chave: phone)
// ============================================================

const profilesTable = "customer_profiles"

// profileRow mirrors the customer_profiles columns. Scores are pointers so
// rows written before a column existed decode as "missing".
type profileRow struct {
	Phone             string     `json:"phone"`
	AnonID            string     `json:"anon_id"`
	Tags              []string   `json:"tags"`
	ScoreTicket       *int       `json:"score_ticket"`
	ScoreSpeed        *int       `json:"score_speed"`
	ScoreIndecisao    *int       `json:"score_indecisao"`
	Segment           string     `json:"segment,omitempty"`
	LastInteractionAt *time.Time `json:"last_interaction_at"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
}

// GetProfile fetches the profile stored for phone.
func (c *Client) GetProfile(ctx context.Context, phone string) (*domain.CustomerProfile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()

	var rows []profileRow
	err := c.call(ctx, profilesTable, func() error {
		path := fmt.Sprintf("%s?phone=eq.%s&limit=1", profilesTable, url.QueryEscape(phone))
		body, err := c.doRequest(ctx, http.MethodGet, path, nil, "")
		if err != nil {
			return err
		}
		rows = nil
		if isEmpty(body) {
			return nil
		}
		return json.Unmarshal(body, &rows)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: phone}
	}

	p := rows[0].toDomain()
	span.SetAttributes(attribute.String("profile.segment", string(p.Segment)))
	return p, nil
}

// SaveProfile upserts the profile on phone.
func (c *Client) SaveProfile(ctx context.Context, p *domain.CustomerProfile) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveProfile")
	defer span.End()

	row := fromDomain(p)
	return c.call(ctx, profilesTable, func() error {
		_, err := c.doRequest(ctx, http.MethodPost, profilesTable+"?on_conflict=phone", row,
			"resolution=merge-duplicates,return=minimal")
		return err
	})
}

func (r profileRow) toDomain() *domain.CustomerProfile {
	var last time.Time
	if r.LastInteractionAt != nil {
		last = *r.LastInteractionAt
	}
	p := domain.RestoreCustomerProfile(r.Phone, r.AnonID, r.Tags, domain.StoredScores{
		Ticket:     r.ScoreTicket,
		Speed:      r.ScoreSpeed,
		Indecision: r.ScoreIndecisao,
	}, last)
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	return p
}

func fromDomain(p *domain.CustomerProfile) profileRow {
	ticket, speed, indecision := p.Scores.Ticket, p.Scores.Speed, p.Scores.Indecision
	row := profileRow{
		Phone:          p.Phone,
		AnonID:         p.AnonID,
		Tags:           p.TagStrings(),
		ScoreTicket:    &ticket,
		ScoreSpeed:     &speed,
		ScoreIndecisao: &indecision,
		Segment:        string(p.Segment),
	}
	if !p.LastInteractionAt.IsZero() {
		t := p.LastInteractionAt.UTC()
		row.LastInteractionAt = &t
	}
	if !p.CreatedAt.IsZero() {
		t := p.CreatedAt.UTC()
		row.CreatedAt = &t
	}
	return row
}
