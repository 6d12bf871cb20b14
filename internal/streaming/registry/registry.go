// Package registry decides which configured destinations are eligible to
// receive a given audit event. It is pure read logic over configuration
// state: no I/O, no caching across calls, safe to evaluate once per dispatch
// while configuration changes underneath between events.
package registry

import "auditstream/internal/streaming/models"

// Eligible filters the destination snapshot down to those that should
// receive the event.
//
// Per destination, in order:
//  1. must be active
//  2. the event type must pass the destination's allow-list (an empty list
//     allows everything)
//  3. group scope only: the event's entity must sit at or strictly below the
//     destination's namespace filter; entities without a namespace bypass
//     this, and a filter whose namespace no longer resolves excludes the
//     destination rather than failing the dispatch
//
// The namespace step never inspects the destination kind, so extending the
// filter to storage or log destinations is purely a configuration change.
func Eligible(scope models.DestinationScope, eventType string, event *models.AuditEvent, dests []models.Destination) []models.Destination {
	var eligible []models.Destination
	for _, d := range dests {
		if d.Scope != scope {
			continue
		}
		if !d.Active {
			continue
		}
		if !d.AllowsEventType(eventType) {
			continue
		}
		if scope == models.ScopeGroup && !d.MatchesNamespace(event.EntityPath) {
			continue
		}
		eligible = append(eligible, d)
	}
	return eligible
}

// EligibleOfKind is Eligible narrowed to one destination kind. The legacy
// per-(scope, kind) strategies enumerate with this.
func EligibleOfKind(scope models.DestinationScope, kind models.DestinationKind, eventType string, event *models.AuditEvent, dests []models.Destination) []models.Destination {
	var eligible []models.Destination
	for _, d := range Eligible(scope, eventType, event, dests) {
		if d.Kind == kind {
			eligible = append(eligible, d)
		}
	}
	return eligible
}
