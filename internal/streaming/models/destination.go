package models

import (
	"strings"

	"github.com/google/uuid"
)

// DestinationScope distinguishes who owns a destination.
type DestinationScope string

const (
	// ScopeGroup destinations belong to a root-level namespace and only
	// receive events from that namespace hierarchy.
	ScopeGroup DestinationScope = "group"
	// ScopeInstance destinations receive events from the whole installation.
	ScopeInstance DestinationScope = "instance"
)

// DestinationKind is the closed set of supported transport variants.
// Adding a kind means adding one constant plus one Transport implementation;
// the dispatcher never switches on kinds itself.
type DestinationKind string

const (
	KindWebhook       DestinationKind = "webhook"
	KindObjectStorage DestinationKind = "object_storage"
	KindStructuredLog DestinationKind = "structured_log"
)

// Kinds lists every supported destination kind. The consolidated streamers
// iterate this slice so new kinds are picked up without touching them.
func Kinds() []DestinationKind {
	return []DestinationKind{KindWebhook, KindObjectStorage, KindStructuredLog}
}

// NamespaceFilter restricts delivery to events whose entity lives at the
// filter path or strictly below it. Only meaningful on group-scoped
// destinations today, but it is carried on the common struct so any kind can
// grow one without reworking eligibility.
type NamespaceFilter struct {
	Path string
}

// DestinationConfig holds the kind-specific connection settings. Exactly one
// subset is populated depending on Destination.Kind; the zero value of the
// rest is ignored.
type DestinationConfig struct {
	// Webhook.
	URL string
	// VerificationToken enables HMAC signing of the request body when set.
	VerificationToken string

	// Object storage. SecretAccessKey is the destination secret.
	BucketName      string
	AWSRegion       string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint overrides the service endpoint for S3-compatible stores.
	Endpoint string

	// Structured log. PrivateKey is the destination secret (PEM encoded).
	GoogleProjectIDName string
	LogIDName           string
	ClientEmail         string
	PrivateKey          string
}

// Destination is the read-only configuration for one external sink.
//
// The engine never writes destinations; configuration management owns their
// lifecycle. Secrets arrive already decrypted by the store and are passed
// explicitly into transports, never read from ambient state, and must never
// be logged.
type Destination struct {
	ID               uuid.UUID
	Name             string
	Scope            DestinationScope
	Kind             DestinationKind
	GroupPath        string
	Active           bool
	EventTypeFilters []string
	NamespaceFilter  *NamespaceFilter
	Headers          map[string]string
	Config           DestinationConfig
}

// AllowsEventType reports whether this destination accepts the given event
// type. An empty filter list means every event type is allowed.
func (d *Destination) AllowsEventType(eventType string) bool {
	if len(d.EventTypeFilters) == 0 {
		return true
	}
	for _, f := range d.EventTypeFilters {
		if f == eventType {
			return true
		}
	}
	return false
}

// MatchesNamespace reports whether an entity at entityPath may receive
// deliveries under this destination's namespace filter.
//
// Rules, in order:
//   - no filter configured: everything matches
//   - entity has no namespace path (instance or user scope): bypasses the filter
//   - filter path empty (e.g. referenced namespace was deleted): nothing
//     matches; the destination is excluded rather than the dispatch failing
//   - otherwise the entity path must equal the filter path or be strictly
//     below it
func (d *Destination) MatchesNamespace(entityPath string) bool {
	if d.NamespaceFilter == nil {
		return true
	}
	if entityPath == "" {
		return true
	}
	filter := strings.Trim(d.NamespaceFilter.Path, "/")
	if filter == "" {
		return false
	}
	entity := strings.Trim(entityPath, "/")
	return entity == filter || strings.HasPrefix(entity, filter+"/")
}
