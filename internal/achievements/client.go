// Package achievements notifies the achievements service that a user's
// reward totals changed so it can evaluate unlocks.
package achievements

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/fastprodman/survivor/internal/config"
)

type Evaluator interface {
	EvaluateUnlocks(ctx context.Context, userID int64) error
}

// Nop is used when no achievements endpoint is configured.
type Nop struct{}

func (Nop) EvaluateUnlocks(context.Context, int64) error { return nil }

type Client struct {
	url  string
	http *http.Client
}

// New returns Nop when cfg.URL is empty.
func New(cfg config.AchievementsConfig) Evaluator {
	if cfg.URL == "" {
		return Nop{}
	}

	return &Client{
		url:  cfg.URL,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type evaluateRequest struct {
	UserID int64 `json:"user_id"`
}

func (c *Client) EvaluateUnlocks(ctx context.Context, userID int64) error {
	body, err := json.Marshal(evaluateRequest{UserID: userID})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("evaluate unlocks for %d: %w", userID, err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("evaluate unlocks for %d: status %d", userID, resp.StatusCode)
	}

	return nil
}
