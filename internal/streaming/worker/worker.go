// Package worker consumes audit events from the internal inbox topic and
// hands them to the dispatcher.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"auditstream/internal/platform/kafka/consumer"
	"auditstream/internal/streaming/models"
)

// Dispatcher is the streaming entry point the worker feeds.
type Dispatcher interface {
	Stream(ctx context.Context, eventType string, event *models.AuditEvent) []models.DeliveryOutcome
}

// inboxMessage is the wire format produced onto the inbox topic.
type inboxMessage struct {
	EventType string             `json:"event_type"`
	Event     *models.AuditEvent `json:"event"`
}

// Handler decodes inbox messages and streams them. Malformed messages are
// logged and dropped so a poison record never stalls the partition.
type Handler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewHandler creates an inbox handler.
func NewHandler(dispatcher Dispatcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{dispatcher: dispatcher, logger: logger}
}

// Handle implements consumer.Handler.
func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var in inboxMessage
	if err := json.Unmarshal(msg.Value, &in); err != nil {
		h.logger.WarnContext(ctx, "dropping malformed inbox message",
			"topic", msg.Topic,
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}
	if in.EventType == "" || in.Event == nil {
		h.logger.WarnContext(ctx, "dropping incomplete inbox message",
			"topic", msg.Topic,
			"key", string(msg.Key),
		)
		return nil
	}

	outcomes := h.dispatcher.Stream(ctx, in.EventType, in.Event)
	h.logger.InfoContext(ctx, "streamed inbox event",
		"event_type", in.EventType,
		"deliveries", len(outcomes),
	)
	return nil
}
