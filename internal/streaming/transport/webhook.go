package transport

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"auditstream/internal/streaming/models"
)

// Header names are part of the delivery wire contract and must not change.
const (
	// HeaderEventType carries the event-type tag, only when one is present.
	HeaderEventType = "X-Gitlab-Audit-Event-Type"
	// HeaderStreamingToken carries the lowercase hex HMAC-SHA256 of the exact
	// body bytes, keyed by the destination's verification token.
	HeaderStreamingToken = "X-Gitlab-Event-Streaming-Token"
)

// Webhook delivers payloads with a single HTTP POST per attempt.
type Webhook struct {
	client            *http.Client
	logger            *slog.Logger
	allowLocalNetwork bool
}

// WebhookOption configures the webhook transport.
type WebhookOption func(*Webhook)

// WithWebhookLogger sets a logger for failed deliveries.
func WithWebhookLogger(logger *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = logger }
}

// WithWebhookClient overrides the HTTP client. The default client carries the
// fixed delivery timeout shared by all webhook destinations.
func WithWebhookClient(client *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = client }
}

// WithLocalNetworkAllowed disables the private-address guard. Meant for
// installations that legitimately stream to in-network sinks, and for tests.
func WithLocalNetworkAllowed(allowed bool) WebhookOption {
	return func(w *Webhook) { w.allowLocalNetwork = allowed }
}

// NewWebhook constructs the webhook transport.
func NewWebhook(opts ...WebhookOption) *Webhook {
	w := &Webhook{
		client: &http.Client{Timeout: deliverTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Webhook) Kind() models.DestinationKind { return models.KindWebhook }

// Deliver POSTs the payload to the destination URL. Any network error,
// malformed URL, or rejected target address becomes a failed outcome; nothing
// is retried and nothing propagates.
func (w *Webhook) Deliver(ctx context.Context, dest models.Destination, _ *models.AuditEvent, payload []byte, eventType string) models.DeliveryOutcome {
	if err := w.checkURL(ctx, dest.Config.URL); err != nil {
		return w.failed(ctx, dest, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest.Config.URL, bytes.NewReader(payload))
	if err != nil {
		return w.failed(ctx, dest, 0, fmt.Errorf("build webhook request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range dest.Headers {
		req.Header.Set(k, v)
	}
	if eventType != "" {
		req.Header.Set(HeaderEventType, eventType)
	}
	if dest.Config.VerificationToken != "" {
		req.Header.Set(HeaderStreamingToken, Sign(dest.Config.VerificationToken, payload))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return w.failed(ctx, dest, 0, fmt.Errorf("webhook delivery: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return w.failed(ctx, dest, resp.StatusCode, fmt.Errorf("webhook delivery: destination responded %d", resp.StatusCode))
	}
	return models.SuccessfulOutcome(dest, resp.StatusCode)
}

// Sign computes the streaming-token signature for a body: the lowercase hex
// HMAC-SHA256 digest of the exact bytes sent, keyed by the shared secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// checkURL rejects malformed URLs, non-HTTP schemes, and targets resolving to
// loopback, private, or link-local addresses before any request is made.
func (w *Webhook) checkURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse destination url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("destination url scheme %q not allowed", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("destination url has no host")
	}
	if w.allowLocalNetwork {
		return nil
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, u.Hostname())
	if err != nil {
		return fmt.Errorf("resolve destination host: %w", err)
	}
	for _, addr := range addrs {
		ip := addr.IP
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return fmt.Errorf("destination host resolves to blocked address %s", ip)
		}
	}
	return nil
}

func (w *Webhook) failed(ctx context.Context, dest models.Destination, status int, err error) models.DeliveryOutcome {
	w.logger.ErrorContext(ctx, "webhook delivery failed",
		"destination_id", dest.ID,
		"destination_name", dest.Name,
		"status", status,
		"error", err,
	)
	return models.FailedOutcome(dest, status, err)
}
