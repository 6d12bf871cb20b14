package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent is an immutable fact describing one tracked action.
//
// Invariants:
//   - Never mutated after construction; the streaming engine only reads it,
//     so one event can be fanned out to many destinations concurrently.
//   - ID is nil for stream-only events that were never persisted. The payload
//     encoder substitutes a fresh UUID so every delivered payload still
//     carries a unique identifier.
//   - EntityPath is the materialized path of the owning namespace
//     (e.g. "acme/payments"). It is empty for entities that have no
//     namespace, such as instance-scope or pure user events; those bypass
//     namespace filtering entirely.
type AuditEvent struct {
	ID         *uuid.UUID     `json:"id,omitempty"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	EntityPath string         `json:"entity_path,omitempty"`
	Author     string         `json:"author"`
	IPAddress  string         `json:"ip_address,omitempty"`
	Timestamp  time.Time      `json:"created_at"`
	Details    map[string]any `json:"details,omitempty"`
}

// RootNamespacePath returns the top-level segment of the entity's namespace
// path. Group-scoped destinations are owned by root namespaces, so this is
// the lookup key for group-level destination configuration.
func (e *AuditEvent) RootNamespacePath() string {
	if e.EntityPath == "" {
		return ""
	}
	for i := 0; i < len(e.EntityPath); i++ {
		if e.EntityPath[i] == '/' {
			return e.EntityPath[:i]
		}
	}
	return e.EntityPath
}
