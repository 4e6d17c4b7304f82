// Package enrichment asks an external text-generation service for a short
// insight about the entities in an answer. Callers treat every failure as
// "no insight".
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apphttp "pm-intelligence/internal/common/http"
	"pm-intelligence/internal/common/logger"
	"pm-intelligence/internal/common/metrics"
)

var (
	ErrEnrichmentTimeout = errors.New("ENRICHMENT_TIMEOUT")
	ErrEnrichmentFailed  = errors.New("ENRICHMENT_FAILED")
	ErrNotConfigured     = errors.New("enrichment endpoint not configured")
)

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
}

type Client struct {
	config Config
	http   *apphttp.Client
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) *Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 200
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	return &Client{
		config: cfg,
		// deadlines come from the caller's context
		http:   apphttp.NewClient(0, apphttp.WithHeader("Accept", "application/json")),
		logger: logger.ForComponent(log, "enrichment"),
	}
}

type generateResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Enrich returns an insight for description, or "" when the service has
// nothing to add.
func (c *Client) Enrich(ctx context.Context, description string) (string, error) {
	if c.config.BaseURL == "" {
		return "", ErrNotConfigured
	}
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	body, _ := json.Marshal(map[string]interface{}{
		"prompt":      buildPrompt(description),
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
	})

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				metrics.EnrichmentCalls.WithLabelValues("timeout").Inc()
				return "", ErrEnrichmentTimeout
			}
		}

		req, err := http.NewRequest(http.MethodPost, strings.TrimRight(c.config.BaseURL, "/")+"/api/ai/generate", bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrEnrichmentFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.http.DoWithContext(ctx, req)
		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			status := resp.StatusCode
			resp.Body.Close()
			resp = nil
			lastErr = fmt.Errorf("status %d", status)
			if !apphttp.Retryable(status) {
				break
			}
		}
		if ctx.Err() != nil {
			metrics.EnrichmentCalls.WithLabelValues("timeout").Inc()
			return "", ErrEnrichmentTimeout
		}
	}

	if lastErr != nil || resp == nil {
		metrics.EnrichmentCalls.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrEnrichmentFailed, lastErr)
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.EnrichmentCalls.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: decode error: %v", ErrEnrichmentFailed, err)
	}
	metrics.EnrichmentCalls.WithLabelValues("ok").Inc()

	text := strings.TrimSpace(out.Text)
	c.logger.Debug("enrichment completed", map[string]interface{}{
		"chars":      len(text),
		"confidence": out.Confidence,
	})
	return text, nil
}

func buildPrompt(description string) string {
	parts := []string{
		"You are a private-markets analyst. Using ONLY the facts below, add one or two sentences of context a reader would find useful.",
		"\nFacts:",
		description,
		"\nInstructions:",
		"- Do not invent figures, dates or relationships",
		"- If the facts are insufficient, reply with an empty answer",
		"\nInsight:",
	}
	return strings.Join(parts, "\n")
}
