// Package encoder turns an audit event plus an event-type tag into a
// size-bounded, transport-agnostic JSON payload.
package encoder

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"auditstream/internal/streaming/models"
)

// MaxPayloadBytes is the hard ceiling on an encoded payload. It is checked
// as a post-condition after every encode pass; a hostile or enormous details
// map can never produce a larger body.
const MaxPayloadBytes = 25 << 20

// maxStringLeaf is the length string leaves are cut to on the first elision
// pass. Large enough to keep useful context, small enough that a payload
// dominated by a few huge strings fits after one pass.
const maxStringLeaf = 4096

const truncationSuffix = "...(truncated)"

// payload is the wire representation: the event's public fields plus the
// injected event_type and id.
type payload struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	EntityPath string         `json:"entity_path,omitempty"`
	Author     string         `json:"author"`
	IPAddress  string         `json:"ip_address,omitempty"`
	CreatedAt  string         `json:"created_at"`
	Details    map[string]any `json:"details,omitempty"`
	Truncated  bool           `json:"truncated,omitempty"`
}

// Encode serializes the event with the injected event_type and id fields.
// Stream-only events (nil ID) get a fresh random UUID so every delivered
// payload carries a unique identifier. The returned flag reports whether any
// elision was applied.
//
// Encode never mutates the event and is safe to call concurrently over the
// same event from multiple fan-out branches. The result is always valid
// UTF-8 JSON of at most MaxPayloadBytes.
func Encode(event *models.AuditEvent, eventType string) ([]byte, bool, error) {
	p := payload{
		EventType:  eventType,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		EntityPath: event.EntityPath,
		Author:     event.Author,
		IPAddress:  event.IPAddress,
		CreatedAt:  event.Timestamp.Format(time.RFC3339Nano),
		Details:    event.Details,
	}
	if event.ID != nil {
		p.ID = event.ID.String()
	} else {
		p.ID = uuid.NewString()
	}

	buf, err := json.Marshal(p)
	if err == nil && len(buf) <= MaxPayloadBytes {
		return buf, false, nil
	}
	buf, err = elide(p, err != nil)
	if err != nil {
		return nil, false, err
	}
	return buf, true, nil
}

// elide shrinks the payload until it fits the ceiling: first the largest
// detail string leaves are cut down, then whole top-level detail keys are
// dropped largest-first, then details is removed entirely, and finally the
// envelope's own string fields are cut. The details map is deep-copied before
// any modification so the shared event stays untouched.
func elide(p payload, unserializable bool) ([]byte, error) {
	p.Truncated = true
	if unserializable {
		// Something in details cannot be marshalled at all; the event
		// envelope itself is plain strings, so dropping details resolves it.
		p.Details = nil
	} else {
		p.Details = copyDetails(p.Details)

		truncateStringLeaves(p.Details)
		buf, err := json.Marshal(p)
		if err == nil && len(buf) <= MaxPayloadBytes {
			return buf, nil
		}

		// Drop whole top-level keys largest-first until the accounted
		// overage is covered, then verify with a single re-encode. Sizes are
		// exact encoded sizes of the values, so the estimate only errs on
		// the safe side.
		overage := len(buf) - MaxPayloadBytes
		for _, entry := range entriesBySizeDesc(p.Details) {
			if overage <= 0 {
				break
			}
			delete(p.Details, entry.key)
			overage -= entry.size
		}
		buf, err = json.Marshal(p)
		if err == nil && len(buf) <= MaxPayloadBytes {
			return buf, nil
		}
		p.Details = nil
	}

	buf, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode audit event payload: %w", err)
	}
	if len(buf) <= MaxPayloadBytes {
		return buf, nil
	}

	// With details gone the envelope itself is oversized; cut its string
	// fields the same way detail leaves are cut.
	p.EventType = cutString(p.EventType)
	p.EntityType = cutString(p.EntityType)
	p.EntityID = cutString(p.EntityID)
	p.EntityPath = cutString(p.EntityPath)
	p.Author = cutString(p.Author)
	p.IPAddress = cutString(p.IPAddress)
	buf, err = json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode audit event payload: %w", err)
	}
	if len(buf) > MaxPayloadBytes {
		return nil, fmt.Errorf("encoded payload is %d bytes after elision, ceiling is %d", len(buf), MaxPayloadBytes)
	}
	return buf, nil
}

func copyDetails(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyDetails(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

// truncateStringLeaves walks the (already copied) details tree and cuts every
// string leaf longer than maxStringLeaf, keeping the cut on a rune boundary.
func truncateStringLeaves(m map[string]any) {
	for k, v := range m {
		m[k] = truncateValue(v)
	}
}

func truncateValue(v any) any {
	switch t := v.(type) {
	case string:
		return cutString(t)
	case map[string]any:
		truncateStringLeaves(t)
		return t
	case []any:
		for i, e := range t {
			t[i] = truncateValue(e)
		}
		return t
	default:
		return v
	}
}

// cutString caps a string at maxStringLeaf, marking the cut.
func cutString(s string) string {
	if len(s) <= maxStringLeaf {
		return s
	}
	return cutAtRune(s, maxStringLeaf) + truncationSuffix
}

func cutAtRune(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

type sizedKey struct {
	key  string
	size int
}

// entriesBySizeDesc orders top-level detail keys by their encoded size,
// largest first, with the key name as a deterministic tie-breaker.
func entriesBySizeDesc(m map[string]any) []sizedKey {
	entries := make([]sizedKey, 0, len(m))
	for k, v := range m {
		buf, err := json.Marshal(v)
		size := len(buf)
		if err != nil {
			// Unserializable values go first so they are dropped early.
			size = MaxPayloadBytes
		}
		entries = append(entries, sizedKey{key: k, size: size})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].size != entries[j].size {
			return entries[i].size > entries[j].size
		}
		return entries[i].key < entries[j].key
	})
	return entries
}
