// Package transport implements one delivery mechanism per destination kind.
//
// Every transport is symmetric: take a destination plus the encoded payload,
// perform exactly one delivery attempt, and return an outcome. Transports
// never retry, never panic across the boundary, and convert every
// library-specific error into a failed outcome so the dispatcher can treat
// all kinds uniformly.
package transport

import (
	"context"
	"time"

	"auditstream/internal/streaming/models"
)

// deliverTimeout bounds a single delivery attempt for transports that do not
// carry their own client timeout.
const deliverTimeout = 30 * time.Second

// Transport performs single delivery attempts for one destination kind.
// The event is read-only context for destination-specific envelopes (object
// keys, log names); the payload bytes are the body actually delivered.
type Transport interface {
	Kind() models.DestinationKind
	Deliver(ctx context.Context, dest models.Destination, event *models.AuditEvent, payload []byte, eventType string) models.DeliveryOutcome
}

// Set is the closed registry of transports keyed by destination kind.
// Adding a destination kind means registering one more implementation here;
// orchestration code never grows kind conditionals.
type Set struct {
	byKind map[models.DestinationKind]Transport
}

// NewSet builds a Set from the given transports. A later transport with the
// same kind replaces an earlier one.
func NewSet(transports ...Transport) *Set {
	s := &Set{byKind: make(map[models.DestinationKind]Transport, len(transports))}
	for _, t := range transports {
		s.byKind[t.Kind()] = t
	}
	return s
}

// For returns the transport for a kind.
func (s *Set) For(kind models.DestinationKind) (Transport, bool) {
	t, ok := s.byKind[kind]
	return t, ok
}
