package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// WebhookConfig configures HTTP delivery of alarm notifications.
type WebhookConfig struct {
	URL        string
	TimeoutS   float64
	VerifyTLS  bool
	AuthHeader string
}

// Webhook delivers a notification payload over HTTP POST. An AuthHeader
// that does not already start with "Bearer " is automatically prefixed,
// matching the bootstrap wiring's auto-fix behavior.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
}

// NewWebhook builds a Webhook notifier from cfg.
func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.AuthHeader != "" && !strings.HasPrefix(cfg.AuthHeader, "Bearer ") {
		cfg.AuthHeader = "Bearer " + cfg.AuthHeader
	}
	transport := http.DefaultTransport
	if !cfg.VerifyTLS {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec // operator opt-in via config
	}
	return &Webhook{
		cfg: cfg,
		client: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutS * float64(time.Second)),
			Transport: transport,
		},
	}
}

// Notify POSTs payload as JSON to the configured URL. A non-2xx response or
// transport error is returned for the caller to retry.
func (w *Webhook) Notify(ctx context.Context, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.cfg.AuthHeader != "" {
		req.Header.Set("Authorization", w.cfg.AuthHeader)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
