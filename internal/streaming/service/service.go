package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"auditstream/internal/streaming/encoder"
	"auditstream/internal/streaming/metrics"
	"auditstream/internal/streaming/models"
	"auditstream/internal/streaming/transport"
	"auditstream/pkg/platform/sentinel"
)

// ConsolidatedStreamingFlag switches dispatch from the legacy per-kind
// strategy list to the consolidated scope streamers. It is re-read on every
// public call, so a live flip takes effect without a restart.
const ConsolidatedStreamingFlag = "consolidated_streaming"

const (
	defaultMaxInFlight     = 8
	defaultDeliveryTimeout = 30 * time.Second
)

// DestinationStore loads configured destinations by scope.
type DestinationStore interface {
	ListGroup(ctx context.Context, groupPath string) ([]models.Destination, error)
	ListInstance(ctx context.Context) ([]models.Destination, error)
}

// FlagChecker reports whether a named feature flag is enabled.
type FlagChecker interface {
	Enabled(ctx context.Context, name string) bool
}

// dispatchStrategy is one complete dispatch implementation. Both the legacy
// and consolidated paths satisfy it; Stream and Streamable pick one per call.
type dispatchStrategy interface {
	name() string
	stream(ctx context.Context, eventType string, event *models.AuditEvent) []models.DeliveryOutcome
	streamable(ctx context.Context, eventType string, event *models.AuditEvent) bool
}

// Service fans audit events out to every eligible external destination.
type Service struct {
	flags        FlagChecker
	logger       *slog.Logger
	metrics      *metrics.Metrics
	legacy       dispatchStrategy
	consolidated dispatchStrategy
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics enables delivery metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates the dispatcher with both implementation paths wired to the
// same store and transports.
func New(store DestinationStore, transports *transport.Set, flags FlagChecker, opts ...Option) *Service {
	s := &Service{
		flags:  flags,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	d := &deliverer{
		transports:  transports,
		logger:      s.logger,
		metrics:     s.metrics,
		timeout:     defaultDeliveryTimeout,
		maxInFlight: defaultMaxInFlight,
	}
	s.legacy = newLegacyStrategy(store, d, s.logger)
	s.consolidated = newConsolidatedStrategy(store, d, s.logger)
	return s
}

// Stream delivers the event to every eligible destination and reports the
// per-destination outcomes. Destination failures never propagate to the
// caller; each is recorded in its outcome and logged.
func (s *Service) Stream(ctx context.Context, eventType string, event *models.AuditEvent) []models.DeliveryOutcome {
	strategy := s.strategyFor(ctx)
	s.metrics.IncStreamCall(strategy.name())
	outcomes := strategy.stream(ctx, eventType, event)
	s.metrics.ObserveEligibleDestinations(len(outcomes))
	return outcomes
}

// Streamable reports whether at least one destination would receive the
// event, using the same implementation path Stream would pick right now.
func (s *Service) Streamable(ctx context.Context, eventType string, event *models.AuditEvent) bool {
	return s.strategyFor(ctx).streamable(ctx, eventType, event)
}

// strategyFor resolves the active path exactly once per public call.
func (s *Service) strategyFor(ctx context.Context) dispatchStrategy {
	if s.flags.Enabled(ctx, ConsolidatedStreamingFlag) {
		return s.consolidated
	}
	return s.legacy
}

// deliverer performs the actual deliveries shared by both strategies.
type deliverer struct {
	transports  *transport.Set
	logger      *slog.Logger
	metrics     *metrics.Metrics
	timeout     time.Duration
	maxInFlight int
}

// deliverAll fans out to the given destinations with bounded parallelism.
// Outcomes are returned in destination order.
func (d *deliverer) deliverAll(ctx context.Context, dests []models.Destination, eventType string, event *models.AuditEvent) []models.DeliveryOutcome {
	if len(dests) == 0 {
		return nil
	}
	outcomes := make([]models.DeliveryOutcome, len(dests))
	var g errgroup.Group
	g.SetLimit(d.maxInFlight)
	for i, dest := range dests {
		g.Go(func() error {
			outcomes[i] = d.deliverOne(ctx, dest, eventType, event)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// deliverOne encodes the event for a single destination and hands it to the
// transport for its kind. Every failure mode, including a transport panic,
// is contained in the returned outcome.
func (d *deliverer) deliverOne(ctx context.Context, dest models.Destination, eventType string, event *models.AuditEvent) (outcome models.DeliveryOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			outcome = models.FailedOutcome(dest, 0, fmt.Errorf("transport panic: %v", r))
		}
		d.metrics.ObserveDelivery(dest.Kind, outcome.Success, start)
		if !outcome.Success {
			d.logger.ErrorContext(ctx, "audit event delivery failed",
				"destination_id", dest.ID,
				"destination_name", dest.Name,
				"destination_kind", dest.Kind,
				"event_type", eventType,
				"status_code", outcome.StatusCode,
				"error", outcome.Err,
			)
		}
	}()

	t, ok := d.transports.For(dest.Kind)
	if !ok {
		return models.FailedOutcome(dest, 0, fmt.Errorf("transport for kind %q: %w", dest.Kind, sentinel.ErrNotFound))
	}

	// Resolve a stream-only event's identifier before encoding so the id in
	// the payload body and the id transports use for addressing (object keys)
	// are the same value. The shared event is never touched.
	if event.ID == nil {
		id := uuid.New()
		withID := *event
		withID.ID = &id
		event = &withID
	}

	payload, truncated, err := encoder.Encode(event, eventType)
	if err != nil {
		return models.FailedOutcome(dest, 0, fmt.Errorf("encoding payload: %w", err))
	}
	if truncated {
		d.metrics.IncTruncatedPayload()
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return t.Deliver(ctx, dest, event, payload, eventType)
}
