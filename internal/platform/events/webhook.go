package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SignPayload computes the hex-encoded HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload under secret.
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(SignPayload(payload, secret)), []byte(signature))
}

type WebhookOption func(*WebhookPublisher)

func WithHTTPClient(c *http.Client) WebhookOption {
	return func(p *WebhookPublisher) { p.client = c }
}

// WithRetryDelays sets the wait before each retry. The number of delays is the
// number of retries.
func WithRetryDelays(d ...time.Duration) WebhookOption {
	return func(p *WebhookPublisher) { p.retryDelays = d }
}

// WebhookPublisher POSTs each event as signed JSON to a single endpoint.
type WebhookPublisher struct {
	url         string
	secret      string
	client      *http.Client
	retryDelays []time.Duration
}

func NewWebhookPublisher(rawURL, secret string, opts ...WebhookOption) (*WebhookPublisher, error) {
	if err := validateWebhookURL(rawURL); err != nil {
		return nil, err
	}
	p := &WebhookPublisher{
		url:         rawURL,
		secret:      secret,
		client:      &http.Client{Timeout: 10 * time.Second},
		retryDelays: []time.Duration{time.Second, 5 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func validateWebhookURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("webhook url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("webhook url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

func (p *WebhookPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	sig := SignPayload(payload, p.secret)

	err = p.deliver(ctx, ev, payload, sig)
	for _, d := range p.retryDelays {
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("webhook %s: %w", ev.Type, ctx.Err())
		case <-time.After(d):
		}
		err = p.deliver(ctx, ev, payload, sig)
	}
	if err != nil {
		return fmt.Errorf("webhook %s: %w", ev.Type, err)
	}
	return nil
}

func (p *WebhookPublisher) deliver(ctx context.Context, ev Event, payload []byte, sig string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", "sha256="+sig)
	req.Header.Set("X-Webhook-Event", ev.Type)
	req.Header.Set("X-Webhook-Timestamp", time.Now().UTC().Format(time.RFC3339))

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return nil
}

func (p *WebhookPublisher) Close() error { return nil }
