package service

import (
	"context"
	"log/slog"

	"auditstream/internal/streaming/models"
	"auditstream/internal/streaming/registry"
)

// legacyStrategy is the original dispatch path: a fixed list of per
// (scope, kind) strategies, each of which loads destinations for its scope
// and delivers only to its own kind.
type legacyStrategy struct {
	store  DestinationStore
	d      *deliverer
	logger *slog.Logger
	pairs  []scopeKind
}

type scopeKind struct {
	scope models.DestinationScope
	kind  models.DestinationKind
}

func newLegacyStrategy(store DestinationStore, d *deliverer, logger *slog.Logger) *legacyStrategy {
	l := &legacyStrategy{store: store, d: d, logger: logger}
	for _, scope := range []models.DestinationScope{models.ScopeGroup, models.ScopeInstance} {
		for _, kind := range models.Kinds() {
			l.pairs = append(l.pairs, scopeKind{scope: scope, kind: kind})
		}
	}
	return l
}

func (l *legacyStrategy) name() string { return "legacy" }

func (l *legacyStrategy) stream(ctx context.Context, eventType string, event *models.AuditEvent) []models.DeliveryOutcome {
	var outcomes []models.DeliveryOutcome
	for _, pair := range l.pairs {
		dests := l.destinationsFor(ctx, pair, eventType, event)
		outcomes = append(outcomes, l.d.deliverAll(ctx, dests, eventType, event)...)
	}
	return outcomes
}

func (l *legacyStrategy) streamable(ctx context.Context, eventType string, event *models.AuditEvent) bool {
	for _, pair := range l.pairs {
		if len(l.destinationsFor(ctx, pair, eventType, event)) > 0 {
			return true
		}
	}
	return false
}

// destinationsFor loads the scope's destinations and narrows them to the
// pair's kind. A load failure disables that pair for this call only.
func (l *legacyStrategy) destinationsFor(ctx context.Context, pair scopeKind, eventType string, event *models.AuditEvent) []models.Destination {
	var (
		dests []models.Destination
		err   error
	)
	switch pair.scope {
	case models.ScopeGroup:
		root := event.RootNamespacePath()
		if root == "" {
			return nil
		}
		dests, err = l.store.ListGroup(ctx, root)
	case models.ScopeInstance:
		dests, err = l.store.ListInstance(ctx)
	}
	if err != nil {
		l.logger.ErrorContext(ctx, "loading destinations failed",
			"scope", pair.scope,
			"kind", pair.kind,
			"event_type", eventType,
			"error", err,
		)
		return nil
	}
	return registry.EligibleOfKind(pair.scope, pair.kind, eventType, event, dests)
}
