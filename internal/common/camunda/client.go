// Package camunda connects job workers to a Zeebe gateway.
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"pm-intelligence/internal/common/config"
	apperrors "pm-intelligence/internal/common/errors"
	"pm-intelligence/internal/common/logger"
)

// Client wraps the Zeebe gRPC client with retries on transient failures.
type Client struct {
	client zbc.Client
	config *ClientConfig
	logger logger.Logger
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RetryConfig            *RetryConfig
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
}

// ConfigFrom maps the camunda section of the application config.
func ConfigFrom(cfg config.CamundaConfig) *ClientConfig {
	return &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: cfg.Plaintext,
		ConnectionTimeout:      config.GetDuration(cfg.Timeout, 10*time.Second),
		RetryConfig:            DefaultRetryConfig,
	}
}

// NewClient dials the gateway and waits for a topology response, retrying
// while the broker is unreachable.
func NewClient(ctx context.Context, cfg *ClientConfig, log logger.Logger) (*Client, error) {
	if cfg.GatewayAddress == "" {
		return nil, apperrors.NewConfigurationError("camunda broker address is empty")
	}
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig
	}
	if cfg.ConnectionTimeout <= 0 {
		cfg.ConnectionTimeout = 10 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := &Client{
		client: zeebeClient,
		config: cfg,
		logger: logger.ForComponent(log, "camunda"),
	}
	if err := c.HealthCheck(ctx); err != nil {
		zeebeClient.Close()
		return nil, err
	}

	c.logger.Info("connected to zeebe gateway", map[string]interface{}{
		"address": cfg.GatewayAddress,
	})
	return c, nil
}

// Zeebe exposes the raw client for opening job workers.
func (c *Client) Zeebe() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the gateway for its topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.ExecuteWithRetry(ctx, "topology", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
		defer cancel()
		_, err := c.client.NewTopologyCommand().Send(ctx)
		return err
	})
}

// ExecuteWithRetry runs command with exponential backoff. Only transient
// errors are retried; everything else is mapped to a StandardError at once.
func (c *Client) ExecuteWithRetry(ctx context.Context, operation string, command func(context.Context) error) error {
	rc := c.config.RetryConfig
	for attempt := 0; ; attempt++ {
		err := command(ctx)
		if err == nil {
			return nil
		}
		if !isRetryableZeebeError(err) || attempt >= rc.MaxRetries {
			return mapZeebeError(err, operation, attempt)
		}

		delay := backoff(rc, attempt)
		c.logger.Warn("zeebe command failed, retrying", map[string]interface{}{
			"operation": operation,
			"attempt":   attempt + 1,
			"delay":     delay.String(),
			"error":     err.Error(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("operation %s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err())
		}
	}
}

func backoff(rc *RetryConfig, attempt int) time.Duration {
	delay := rc.BaseDelay * time.Duration(1<<attempt)
	if delay > rc.MaxDelay {
		return rc.MaxDelay
	}
	return delay
}

var retryablePhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"deadline exceeded",
	"unavailable",
	"unreachable",
	"broken pipe",
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func mapZeebeError(err error, operation string, attempt int) error {
	msg := err.Error()
	lower := strings.ToLower(msg)

	prefix := fmt.Sprintf("zeebe operation '%s' failed", operation)
	if attempt > 0 {
		prefix += fmt.Sprintf(" after %d attempts", attempt+1)
	}
	wrapped := fmt.Errorf("%s: %w", prefix, err)

	switch {
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline exceeded"):
		return apperrors.NewTimeoutError("zeebe", wrapped)
	case strings.Contains(lower, "not found"):
		return apperrors.NewResourceNotFoundError("zeebe", wrapped.Error())
	case strings.Contains(lower, "permission denied") || strings.Contains(lower, "unauthenticated"):
		return apperrors.NewAuthenticationError(wrapped.Error())
	default:
		return apperrors.NewExternalServiceError("zeebe", wrapped)
	}
}
