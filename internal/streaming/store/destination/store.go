// Package destination loads external-sink configuration for dispatch.
//
// The streaming engine only ever reads destinations. Each dispatch takes one
// consistent snapshot per scope; no locks are held across the fan-out, so
// configuration management can change records between events and the very
// next dispatch observes it.
package destination

import (
	"context"

	"auditstream/internal/streaming/models"
)

// Store is the read surface the dispatcher depends on. Secret tokens are
// returned decrypted, ready to hand to transports.
type Store interface {
	// ListGroup returns every destination, active or not, owned by the given
	// root namespace.
	ListGroup(ctx context.Context, groupPath string) ([]models.Destination, error)
	// ListInstance returns every instance-level destination.
	ListInstance(ctx context.Context) ([]models.Destination, error)
}

// Schema is the destination configuration DDL. Configuration management owns
// migrations in production; integration tests apply this directly.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_destinations (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	scope TEXT NOT NULL CHECK (scope IN ('group', 'instance')),
	kind TEXT NOT NULL CHECK (kind IN ('webhook', 'object_storage', 'structured_log')),
	group_path TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	config JSONB NOT NULL DEFAULT '{}'::jsonb,
	secret_token TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_destinations_scope_group
	ON audit_destinations (scope, group_path);

CREATE TABLE IF NOT EXISTS audit_destination_event_type_filters (
	destination_id UUID NOT NULL REFERENCES audit_destinations (id) ON DELETE CASCADE,
	event_type TEXT NOT NULL,
	PRIMARY KEY (destination_id, event_type)
);

CREATE TABLE IF NOT EXISTS audit_destination_namespace_filters (
	destination_id UUID PRIMARY KEY REFERENCES audit_destinations (id) ON DELETE CASCADE,
	namespace_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_destination_headers (
	destination_id UUID NOT NULL REFERENCES audit_destinations (id) ON DELETE CASCADE,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (destination_id, key)
);
`
