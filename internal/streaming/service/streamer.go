package service

import (
	"context"
	"log/slog"

	"auditstream/internal/streaming/models"
	"auditstream/internal/streaming/registry"
)

// consolidatedStrategy is the replacement dispatch path: one streamer per
// scope, each loading its destinations once and looping over the kinds
// internally. Eligible destinations across both scopes are delivered in a
// single bounded-parallel fan-out.
type consolidatedStrategy struct {
	streamers []*scopeStreamer
	d         *deliverer
}

func newConsolidatedStrategy(store DestinationStore, d *deliverer, logger *slog.Logger) *consolidatedStrategy {
	return &consolidatedStrategy{
		d: d,
		streamers: []*scopeStreamer{
			{scope: models.ScopeGroup, store: store, logger: logger},
			{scope: models.ScopeInstance, store: store, logger: logger},
		},
	}
}

func (c *consolidatedStrategy) name() string { return "consolidated" }

func (c *consolidatedStrategy) stream(ctx context.Context, eventType string, event *models.AuditEvent) []models.DeliveryOutcome {
	var dests []models.Destination
	for _, streamer := range c.streamers {
		dests = append(dests, streamer.destinations(ctx, eventType, event)...)
	}
	return c.d.deliverAll(ctx, dests, eventType, event)
}

func (c *consolidatedStrategy) streamable(ctx context.Context, eventType string, event *models.AuditEvent) bool {
	for _, streamer := range c.streamers {
		if len(streamer.destinations(ctx, eventType, event)) > 0 {
			return true
		}
	}
	return false
}

// scopeStreamer resolves the eligible destinations of every kind within one
// scope.
type scopeStreamer struct {
	scope  models.DestinationScope
	store  DestinationStore
	logger *slog.Logger
}

func (s *scopeStreamer) destinations(ctx context.Context, eventType string, event *models.AuditEvent) []models.Destination {
	var (
		all []models.Destination
		err error
	)
	switch s.scope {
	case models.ScopeGroup:
		root := event.RootNamespacePath()
		if root == "" {
			return nil
		}
		all, err = s.store.ListGroup(ctx, root)
	case models.ScopeInstance:
		all, err = s.store.ListInstance(ctx)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "loading destinations failed",
			"scope", s.scope,
			"event_type", eventType,
			"error", err,
		)
		return nil
	}

	var eligible []models.Destination
	for _, kind := range models.Kinds() {
		eligible = append(eligible, registry.EligibleOfKind(s.scope, kind, eventType, event, all)...)
	}
	return eligible
}
