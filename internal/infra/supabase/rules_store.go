package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// ============================================================
// Overrides de regras - tabela app_settings (key, value)
// ============================================================

const settingsTable = "app_settings"

type settingRow struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GetRuleOverride returns the override stored under key, if any.
func (c *Client) GetRuleOverride(ctx context.Context, key string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetRuleOverride")
	defer span.End()

	var rows []settingRow
	err := c.call(ctx, settingsTable, func() error {
		path := fmt.Sprintf("%s?key=eq.%s&select=key,value&limit=1", settingsTable, url.QueryEscape(key))
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
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Value, true, nil
}

// UpsertRuleOverride stores text under key, replacing any previous value.
func (c *Client) UpsertRuleOverride(ctx context.Context, key, text string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertRuleOverride")
	defer span.End()

	return c.call(ctx, settingsTable, func() error {
		_, err := c.doRequest(ctx, http.MethodPost, settingsTable+"?on_conflict=key",
			settingRow{Key: key, Value: text}, "resolution=merge-duplicates,return=minimal")
		return err
	})
}

// DeleteRuleOverride removes the override under key. Deleting an absent
// key is not an error.
func (c *Client) DeleteRuleOverride(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteRuleOverride")
	defer span.End()

	return c.call(ctx, settingsTable, func() error {
		path := fmt.Sprintf("%s?key=eq.%s", settingsTable, url.QueryEscape(key))
		_, err := c.doRequest(ctx, http.MethodDelete, path, nil, "return=minimal")
		return err
	})
}
