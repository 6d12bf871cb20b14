package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"auditstream/internal/streaming/models"
	"auditstream/pkg/platform/httputil"
	"auditstream/pkg/requestcontext"
)

// maxIngestBody bounds the accepted request size. Details can be large but
// anything beyond the payload ceiling would be elided anyway.
const maxIngestBody = 32 << 20

// Streamer is the dispatcher surface the ingest endpoint needs.
type Streamer interface {
	Stream(ctx context.Context, eventType string, event *models.AuditEvent) []models.DeliveryOutcome
	Streamable(ctx context.Context, eventType string, event *models.AuditEvent) bool
}

// HealthCheck probes one backing dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler wires streaming endpoints to the dispatcher.
type Handler struct {
	streamer Streamer
	logger   *slog.Logger
	checks   []HealthCheck
}

// NewHandler constructs the HTTP handler with its dependencies.
func NewHandler(streamer Streamer, logger *slog.Logger, checks ...HealthCheck) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{streamer: streamer, logger: logger, checks: checks}
}

// ingestRequest mirrors the inbox topic's message shape so producers can use
// either entry point interchangeably.
type ingestRequest struct {
	EventType string             `json:"event_type"`
	Event     *models.AuditEvent `json:"event"`
}

type ingestResponse struct {
	Streamed   bool `json:"streamed"`
	Deliveries int  `json:"deliveries"`
}

// HandleIngest handles POST /v1/events requests.
//
// Destination failures are reflected in logs and metrics, never in the
// response status: the event was accepted regardless of how many sinks
// took it.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req ingestRequest
	body := http.MaxBytesReader(w, r.Body, maxIngestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "malformed request body")
		return
	}
	if req.EventType == "" {
		httputil.WriteBadRequest(w, "event_type is required")
		return
	}
	if req.Event == nil {
		httputil.WriteBadRequest(w, "event is required")
		return
	}
	if req.Event.EntityType == "" || req.Event.EntityID == "" {
		httputil.WriteBadRequest(w, "event.entity_type and event.entity_id are required")
		return
	}

	if req.Event.Timestamp.IsZero() {
		req.Event.Timestamp = requestcontext.Now(ctx)
	}
	if req.Event.IPAddress == "" {
		req.Event.IPAddress = requestcontext.ClientIP(ctx)
	}

	outcomes := h.streamer.Stream(ctx, req.EventType, req.Event)

	h.logger.InfoContext(ctx, "audit event ingested",
		"request_id", requestID,
		"event_type", req.EventType,
		"entity_type", req.Event.EntityType,
		"user_agent", requestcontext.UserAgent(ctx),
		"deliveries", len(outcomes),
	)

	httputil.WriteJSON(w, http.StatusAccepted, ingestResponse{
		Streamed:   len(outcomes) > 0,
		Deliveries: len(outcomes),
	})
}

// HandleHealth handles GET /healthz requests, probing each registered
// dependency in turn.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := map[string]string{"status": "ok"}
	healthy := true
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			healthy = false
			status[check.Name] = err.Error()
			h.logger.WarnContext(ctx, "health check failed",
				"component", check.Name,
				"error", err,
			)
		}
	}
	if !healthy {
		status["status"] = "degraded"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}
