package destination

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"auditstream/internal/streaming/models"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) newDestination(scope models.DestinationScope, groupPath string) models.Destination {
	return models.Destination{
		ID:        uuid.New(),
		Name:      "sink",
		Scope:     scope,
		Kind:      models.KindWebhook,
		GroupPath: groupPath,
		Active:    true,
		Headers:   map[string]string{"X-Trace": "on"},
		Config:    models.DestinationConfig{URL: "https://sink.example.com"},
	}
}

func (s *InMemorySuite) TestScopedListing() {
	groupDest := s.newDestination(models.ScopeGroup, "acme")
	otherGroupDest := s.newDestination(models.ScopeGroup, "umbrella")
	instanceDest := s.newDestination(models.ScopeInstance, "")
	s.store.Put(groupDest)
	s.store.Put(otherGroupDest)
	s.store.Put(instanceDest)

	s.Run("group listing is keyed by root namespace", func() {
		got, err := s.store.ListGroup(s.ctx, "acme")
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(groupDest.ID, got[0].ID)
	})

	s.Run("instance listing excludes group destinations", func() {
		got, err := s.store.ListInstance(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(instanceDest.ID, got[0].ID)
	})

	s.Run("unknown group lists nothing", func() {
		got, err := s.store.ListGroup(s.ctx, "nobody")
		s.Require().NoError(err)
		s.Empty(got)
	})
}

func (s *InMemorySuite) TestSnapshotIsolation() {
	dest := s.newDestination(models.ScopeInstance, "")
	dest.EventTypeFilters = []string{"login"}
	s.store.Put(dest)

	got, err := s.store.ListInstance(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(got, 1)

	// Mutating the snapshot must not leak back into the store.
	got[0].Headers["X-Trace"] = "tampered"
	got[0].EventTypeFilters[0] = "tampered"

	again, err := s.store.ListInstance(s.ctx)
	s.Require().NoError(err)
	s.Equal("on", again[0].Headers["X-Trace"])
	s.Equal([]string{"login"}, again[0].EventTypeFilters)
}

func (s *InMemorySuite) TestDelete() {
	dest := s.newDestination(models.ScopeInstance, "")
	s.store.Put(dest)
	s.store.Delete(dest.ID)

	got, err := s.store.ListInstance(s.ctx)
	s.Require().NoError(err)
	s.Empty(got)
}
