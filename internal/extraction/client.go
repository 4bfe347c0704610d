// Package extraction talks to the LLM extraction service that turns free-text
// vendor emails into loosely typed rebate candidate records. The service is a
// black box: one attempt per email, and any failure to produce structured
// output degrades to an empty candidate list so the pipeline proceeds with
// zero items.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"rebatedesk/internal/config"
	"rebatedesk/internal/events"
)

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *limiter
	obs        events.Observer
}

func NewClient(cfg config.Config, obs events.Observer) *Client {
	if obs == nil {
		obs = events.Discard
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.ExtractionTimeoutMs) * time.Millisecond},
		limiter:    newLimiter(cfg.ExtractionRateLimitRPS),
		obs:        obs,
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type extractionEnvelope struct {
	RebateItems []any `json:"rebate_items"`
}

// ExtractCandidates asks the service for every rebate item mentioned in the
// email. The returned error covers only request construction and context
// cancellation; service-side failures (HTTP errors, invalid JSON, wrong
// envelope shape) resolve to an empty list plus an observer event.
func (c *Client) ExtractCandidates(ctx context.Context, subject, body string) ([]any, error) {
	if strings.TrimSpace(c.cfg.ExtractionAPIKey) == "" {
		return nil, errors.New("missing EXTRACTION_API_KEY")
	}

	payload, err := json.Marshal(chatRequest{
		Model:          c.cfg.ExtractionModel,
		Messages:       []chatMessage{{Role: "user", Content: buildPrompt(subject, body)}},
		Temperature:    0.1,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	c.limiter.waitTurn()

	url := strings.TrimRight(c.cfg.ExtractionAPIBaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ExtractionAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return c.degrade(fmt.Sprintf("extraction request failed: %v", err))
	}
	responseBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return c.degrade(fmt.Sprintf("reading extraction response failed: %v", readErr))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.degrade(fmt.Sprintf("extraction service status %d: %s", resp.StatusCode, truncate(string(responseBody), 200)))
	}

	var chat chatResponse
	if err := json.Unmarshal(responseBody, &chat); err != nil || len(chat.Choices) == 0 {
		return c.degrade("extraction service returned an unreadable completion")
	}

	var envelope extractionEnvelope
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &envelope); err != nil {
		return c.degrade("extraction service returned invalid JSON content")
	}
	if envelope.RebateItems == nil {
		return c.degrade("extraction response did not contain the expected 'rebate_items' list")
	}

	return envelope.RebateItems, nil
}

func (c *Client) degrade(message string) ([]any, error) {
	c.obs.Observe(events.Event{
		Stage:     events.StageExtract,
		Level:     events.LevelError,
		ItemIndex: -1,
		Message:   message,
	})
	return []any{}, nil
}

func buildPrompt(subject, body string) string {
	return fmt.Sprintf(`Extract all individual rebate items mentioned in this email and return the information as a JSON object.
The root object MUST contain a single key named 'rebate_items' whose value is a JSON array.
Each object in the array represents one product-subsidiary combination for which a rebate is proposed.
If no rebate items are found, the array should be empty. Use null for any field that is not found or unclear.

For each item extract:
manufacturer_product_code: string. The code the vendor uses for the product.
product_id: string. Our internal identifier for the product, if mentioned.
product_name: string. The name or description of the product.
subsidiary: string, exactly one of "NL", "BE", "DE"; null if unclear.
start_date: date string formatted "YYYY-MM-DD"; resolve ranges like "Q3 2025" to the period start; null if unclear.
end_date: date string formatted "YYYY-MM-DD"; resolve ranges to the period end; null if unclear.
campaign_promotion_related: boolean, whether the rebate is tied to a promotional campaign; null if unclear.
rebate_compensation_factor: float. The absolute per-unit amount (5 euros is 5.0, "€10,50" is 10.5). Percentages are not absolute amounts: use null.
max_spq: integer. Maximum quantity eligible for the rebate, if given as a number; otherwise null.

Email Subject: %s
Email Body: %s`, subject, body)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// limiter spaces requests out so the extraction API quota is respected even
// when many emails are processed back to back.
type limiter struct {
	mu            sync.Mutex
	nextAllowedAt time.Time
	interval      time.Duration
}

func newLimiter(requestsPerSecond int) *limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &limiter{interval: time.Second / time.Duration(requestsPerSecond)}
}

func (l *limiter) waitTurn() {
	l.mu.Lock()
	now := time.Now()
	scheduled := now
	if l.nextAllowedAt.After(now) {
		scheduled = l.nextAllowedAt
	}
	l.nextAllowedAt = scheduled.Add(l.interval)
	l.mu.Unlock()

	if sleep := time.Until(scheduled); sleep > 0 {
		time.Sleep(sleep)
	}
}
