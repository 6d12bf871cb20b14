package httptransport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"auditstream/internal/streaming/models"
	"auditstream/pkg/testutil"
)

type fakeStreamer struct {
	eventType string
	event     *models.AuditEvent
	outcomes  []models.DeliveryOutcome
}

func (f *fakeStreamer) Stream(_ context.Context, eventType string, event *models.AuditEvent) []models.DeliveryOutcome {
	f.eventType = eventType
	f.event = event
	return f.outcomes
}

func (f *fakeStreamer) Streamable(context.Context, string, *models.AuditEvent) bool {
	return len(f.outcomes) > 0
}

func newTestRouter(streamer Streamer, checks ...HealthCheck) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(NewHandler(streamer, logger, checks...))
}

func TestIngestAcceptsEvent(t *testing.T) {
	streamer := &fakeStreamer{outcomes: []models.DeliveryOutcome{
		{Success: true}, {Success: false},
	}}
	router := newTestRouter(streamer)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/events", map[string]any{
		"event_type": "project_archived",
		"event": map[string]any{
			"entity_type": "Group",
			"entity_id":   "42",
			"entity_path": "acme/payments",
			"author":      "auditor",
		},
	})
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]any](t, rr)
	require.Equal(t, true, (*resp)["streamed"])
	require.Equal(t, float64(2), (*resp)["deliveries"])
	require.Equal(t, "project_archived", streamer.eventType)
	require.Equal(t, "acme/payments", streamer.event.EntityPath)
}

func TestIngestAcceptsEventWithoutDestinations(t *testing.T) {
	streamer := &fakeStreamer{}
	router := newTestRouter(streamer)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/events", map[string]any{
		"event_type": "user_created",
		"event":      map[string]any{"entity_type": "User", "entity_id": "7", "author": "admin"},
	})
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]any](t, rr)
	require.Equal(t, false, (*resp)["streamed"])
}

func TestIngestFillsRequestScopedDefaults(t *testing.T) {
	streamer := &fakeStreamer{}
	router := newTestRouter(streamer)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/events", map[string]any{
		"event_type": "user_created",
		"event":      map[string]any{"entity_type": "User", "entity_id": "7", "author": "admin"},
	})
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.False(t, streamer.event.Timestamp.IsZero())
	require.Equal(t, "203.0.113.9", streamer.event.IPAddress)
}

func TestIngestRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(&fakeStreamer{})

	req := testutil.NewRequestWithBody(t, http.MethodPost, "/v1/events", "{not json")
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestIngestRejectsMissingFields(t *testing.T) {
	router := newTestRouter(&fakeStreamer{})

	cases := []map[string]any{
		{"event": map[string]any{"entity_type": "User", "entity_id": "7"}},
		{"event_type": "user_created"},
		{"event_type": "user_created", "event": map[string]any{"entity_id": "7"}},
	}
	for _, body := range cases {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/events", body)
		rr := testutil.DoRequest(router, req)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	}
}

func TestHealthReportsDependencies(t *testing.T) {
	healthy := HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }}
	router := newTestRouter(&fakeStreamer{}, healthy)

	req := testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil)
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code)

	broken := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}
	router = newTestRouter(&fakeStreamer{}, healthy, broken)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]string](t, rr)
	require.Equal(t, "degraded", (*resp)["status"])
	require.Contains(t, (*resp)["redis"], "connection refused")
}

func TestIngestLogsUserAgent(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	router := NewRouter(NewHandler(&fakeStreamer{}, logger))

	req := testutil.NewJSONRequest(t, http.MethodPost, "/v1/events", map[string]any{
		"event_type": "user_created",
		"event":      map[string]any{"entity_type": "User", "entity_id": "7", "author": "admin"},
	})
	req.Header.Set("User-Agent", "audit-cli/1.0")
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Contains(t, logs.String(), `"user_agent":"audit-cli/1.0"`)
}

func TestUnknownRouteReturnsUniformEnvelope(t *testing.T) {
	router := newTestRouter(&fakeStreamer{})

	req := testutil.NewJSONRequest(t, http.MethodGet, "/v1/nope", nil)
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
	resp := testutil.UnmarshalResponse[map[string]string](t, rr)
	require.Equal(t, "not_found", (*resp)["error"])
}

func TestRequestIDEchoedOnResponse(t *testing.T) {
	router := newTestRouter(&fakeStreamer{})

	req := testutil.NewJSONRequest(t, http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rr := testutil.DoRequest(router, req)

	require.Equal(t, "req-123", rr.Header().Get("X-Request-Id"))
}
