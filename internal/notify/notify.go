// Package notify delivers captured leads to a CRM webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sitescore/internal/orchestrate"
)

const defaultTimeout = 10 * time.Second

// Client posts lead payloads to a webhook URL.
type Client struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// New creates a webhook client for the given endpoint.
func New(webhookURL string, opts ...Option) (*Client, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("notify: webhook URL is required")
	}
	webhookURL = strings.TrimSuffix(webhookURL, "/")

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	httpClient.Timeout = timeout

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

type leadPayload struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	URL         string `json:"url"`
	ReportTier  string `json:"reportTier"`
	Source      string `json:"source"`
	SubmittedAt string `json:"submittedAt"`
}

// NotifyLead posts the lead to the webhook. The response body is discarded;
// any non-2xx status is an error.
func (c *Client) NotifyLead(ctx context.Context, lead orchestrate.Lead) error {
	payload := leadPayload{
		Email:       lead.Email,
		FirstName:   lead.FirstName,
		LastName:    lead.LastName,
		URL:         lead.URL,
		ReportTier:  string(lead.Tier),
		Source:      "sitescore",
		SubmittedAt: lead.SubmittedAt.UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal lead: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post lead: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<14))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned %s", resp.Status)
	}
	c.logger.Debug("lead delivered", "email", lead.Email, "url", lead.URL)
	return nil
}

// Nop is a no-op notifier for deployments without a webhook configured.
type Nop struct{}

func (Nop) NotifyLead(ctx context.Context, lead orchestrate.Lead) error { return nil }
