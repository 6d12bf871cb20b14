package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"auditstream/internal/streaming/models"
)

const (
	// defaultLogWriteEndpoint is the cloud logging write API.
	defaultLogWriteEndpoint = "https://logging.googleapis.com/v2/entries:write"
	// logServiceAudience is the audience claim for self-signed service
	// account tokens addressed to the logging service.
	logServiceAudience = "https://logging.googleapis.com/"
)

// CloudLog delivers payloads as single structured log entries to a cloud
// logging API, authenticated per destination with a service-account key.
type CloudLog struct {
	client   *http.Client
	logger   *slog.Logger
	endpoint string
	now      func() time.Time
}

// CloudLogOption configures the structured-log transport.
type CloudLogOption func(*CloudLog)

// WithCloudLogLogger sets a logger for failed writes.
func WithCloudLogLogger(logger *slog.Logger) CloudLogOption {
	return func(c *CloudLog) { c.logger = logger }
}

// WithCloudLogClient overrides the HTTP client.
func WithCloudLogClient(client *http.Client) CloudLogOption {
	return func(c *CloudLog) { c.client = client }
}

// WithCloudLogEndpoint overrides the write endpoint. Meant for tests.
func WithCloudLogEndpoint(endpoint string) CloudLogOption {
	return func(c *CloudLog) { c.endpoint = endpoint }
}

// NewCloudLog constructs the structured-log transport.
func NewCloudLog(opts ...CloudLogOption) *CloudLog {
	c := &CloudLog{
		client:   &http.Client{Timeout: deliverTimeout},
		logger:   slog.Default(),
		endpoint: defaultLogWriteEndpoint,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CloudLog) Kind() models.DestinationKind { return models.KindStructuredLog }

// logEntry is one entry of the entries:write envelope.
type logEntry struct {
	LogName     string          `json:"logName"`
	Resource    logResource     `json:"resource"`
	Severity    string          `json:"severity"`
	JSONPayload json.RawMessage `json:"jsonPayload"`
}

type logResource struct {
	Type string `json:"type"`
}

type writeRequest struct {
	Entries []logEntry `json:"entries"`
}

// Deliver writes one INFO entry with the payload as jsonPayload to the
// destination's configured log path. API and auth errors become failed
// outcomes; nothing propagates.
func (c *CloudLog) Deliver(ctx context.Context, dest models.Destination, _ *models.AuditEvent, payload []byte, eventType string) models.DeliveryOutcome {
	body, err := json.Marshal(writeRequest{
		Entries: []logEntry{{
			LogName:     LogName(dest.Config.GoogleProjectIDName, dest.Config.LogIDName),
			Resource:    logResource{Type: "global"},
			Severity:    "INFO",
			JSONPayload: json.RawMessage(payload),
		}},
	})
	if err != nil {
		return c.failed(ctx, dest, 0, fmt.Errorf("build log entry: %w", err))
	}

	token, err := c.bearerToken(dest)
	if err != nil {
		return c.failed(ctx, dest, 0, fmt.Errorf("structured log auth: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return c.failed(ctx, dest, 0, fmt.Errorf("build log write request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return c.failed(ctx, dest, 0, fmt.Errorf("structured log delivery: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.failed(ctx, dest, resp.StatusCode, fmt.Errorf("structured log delivery: service responded %d", resp.StatusCode))
	}
	return models.SuccessfulOutcome(dest, resp.StatusCode)
}

// LogName builds the fully qualified log path.
func LogName(project, logID string) string {
	return fmt.Sprintf("projects/%s/logs/%s", project, logID)
}

// bearerToken builds a self-signed RS256 service-account JWT accepted by the
// logging service, from the client email and private key held on the
// destination. One token per attempt; no caching, so credential rotation on
// the destination takes effect immediately.
func (c *CloudLog) bearerToken(dest models.Destination) (string, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(dest.Config.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	now := c.now()
	claims := jwt.MapClaims{
		"iss": dest.Config.ClientEmail,
		"sub": dest.Config.ClientEmail,
		"aud": logServiceAudience,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}

func (c *CloudLog) failed(ctx context.Context, dest models.Destination, status int, err error) models.DeliveryOutcome {
	c.logger.ErrorContext(ctx, "structured log delivery failed",
		"destination_id", dest.ID,
		"destination_name", dest.Name,
		"log_name", LogName(dest.Config.GoogleProjectIDName, dest.Config.LogIDName),
		"status", status,
		"error", err,
	)
	return models.FailedOutcome(dest, status, err)
}
