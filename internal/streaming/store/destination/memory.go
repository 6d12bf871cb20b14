package destination

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"auditstream/internal/streaming/models"
)

// InMemory is a destination store for tests and single-node development.
// Reads return deep-enough copies that a dispatch snapshot is isolated from
// later configuration changes.
type InMemory struct {
	mu    sync.RWMutex
	dests map[uuid.UUID]models.Destination
}

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{dests: make(map[uuid.UUID]models.Destination)}
}

// Put inserts or replaces a destination.
func (s *InMemory) Put(d models.Destination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dests[d.ID] = d
}

// Delete removes a destination.
func (s *InMemory) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dests, id)
}

// ListGroup returns the destinations owned by the given root namespace.
func (s *InMemory) ListGroup(_ context.Context, groupPath string) ([]models.Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Destination
	for _, d := range s.dests {
		if d.Scope == models.ScopeGroup && d.GroupPath == groupPath {
			out = append(out, snapshot(d))
		}
	}
	return out, nil
}

// ListInstance returns every instance-level destination.
func (s *InMemory) ListInstance(_ context.Context) ([]models.Destination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Destination
	for _, d := range s.dests {
		if d.Scope == models.ScopeInstance {
			out = append(out, snapshot(d))
		}
	}
	return out, nil
}

// snapshot copies the mutable parts of a destination so callers cannot see
// later writes through shared slices or maps.
func snapshot(d models.Destination) models.Destination {
	if len(d.EventTypeFilters) > 0 {
		filters := make([]string, len(d.EventTypeFilters))
		copy(filters, d.EventTypeFilters)
		d.EventTypeFilters = filters
	}
	if d.NamespaceFilter != nil {
		filter := *d.NamespaceFilter
		d.NamespaceFilter = &filter
	}
	if len(d.Headers) > 0 {
		headers := make(map[string]string, len(d.Headers))
		for k, v := range d.Headers {
			headers[k] = v
		}
		d.Headers = headers
	}
	return d
}
