package destination

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"auditstream/internal/streaming/models"
	pstrings "auditstream/pkg/platform/strings"
	"auditstream/pkg/secrets"
)

// Postgres loads destination configuration written by the configuration
// management layer. Each List call reads one consistent snapshot; secret
// tokens are decrypted on the way out and slotted into the kind-specific
// config field, so transports never touch the secret store.
type Postgres struct {
	db     *sql.DB
	box    *secrets.Box
	logger *slog.Logger
}

// NewPostgres creates the store. The box must hold the same master key the
// configuration layer encrypts secret tokens with.
func NewPostgres(db *sql.DB, box *secrets.Box, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{db: db, box: box, logger: logger}
}

// destConfig mirrors the non-secret config JSONB column.
type destConfig struct {
	URL                 string `json:"url,omitempty"`
	BucketName          string `json:"bucket_name,omitempty"`
	AWSRegion           string `json:"aws_region,omitempty"`
	AccessKeyID         string `json:"access_key_id,omitempty"`
	Endpoint            string `json:"endpoint,omitempty"`
	GoogleProjectIDName string `json:"google_project_id_name,omitempty"`
	LogIDName           string `json:"log_id_name,omitempty"`
	ClientEmail         string `json:"client_email,omitempty"`
}

// ListGroup returns the destinations owned by the given root namespace.
func (s *Postgres) ListGroup(ctx context.Context, groupPath string) ([]models.Destination, error) {
	const predicate = `d.scope = 'group' AND d.group_path = $1`
	return s.list(ctx, predicate, groupPath)
}

// ListInstance returns every instance-level destination.
func (s *Postgres) ListInstance(ctx context.Context) ([]models.Destination, error) {
	const predicate = `d.scope = 'instance'`
	return s.list(ctx, predicate)
}

func (s *Postgres) list(ctx context.Context, predicate string, args ...any) ([]models.Destination, error) {
	query := fmt.Sprintf(`
		SELECT d.id, d.name, d.scope, d.kind, d.group_path, d.active, d.config, d.secret_token
		FROM audit_destinations d
		WHERE %s
		ORDER BY d.created_at
	`, predicate)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query destinations: %w", err)
	}
	defer rows.Close()

	byID := make(map[uuid.UUID]*models.Destination)
	var order []uuid.UUID
	for rows.Next() {
		var (
			d           models.Destination
			configJSON  []byte
			secretToken string
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Scope, &d.Kind, &d.GroupPath, &d.Active, &configJSON, &secretToken); err != nil {
			return nil, fmt.Errorf("scan destination: %w", err)
		}

		var cfg destConfig
		if err := json.Unmarshal(configJSON, &cfg); err != nil {
			// Malformed configuration excludes the destination; it must not
			// fail the whole dispatch.
			s.logger.WarnContext(ctx, "skipping destination with malformed config",
				"destination_id", d.ID, "error", err)
			continue
		}
		d.Config = models.DestinationConfig{
			URL:                 cfg.URL,
			BucketName:          cfg.BucketName,
			AWSRegion:           cfg.AWSRegion,
			AccessKeyID:         cfg.AccessKeyID,
			Endpoint:            cfg.Endpoint,
			GoogleProjectIDName: cfg.GoogleProjectIDName,
			LogIDName:           cfg.LogIDName,
			ClientEmail:         cfg.ClientEmail,
		}

		if secretToken != "" {
			plaintext, err := s.box.Decrypt(secretToken)
			if err != nil {
				s.logger.WarnContext(ctx, "skipping destination with undecryptable secret",
					"destination_id", d.ID, "error", err)
				continue
			}
			applySecret(&d, plaintext)
		}

		byID[d.ID] = &d
		order = append(order, d.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate destinations: %w", err)
	}
	if len(byID) == 0 {
		return nil, nil
	}

	if err := s.loadEventTypeFilters(ctx, predicate, args, byID); err != nil {
		return nil, err
	}
	if err := s.loadNamespaceFilters(ctx, predicate, args, byID); err != nil {
		return nil, err
	}
	if err := s.loadHeaders(ctx, predicate, args, byID); err != nil {
		return nil, err
	}

	out := make([]models.Destination, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, nil
}

// applySecret routes the decrypted secret token into the slot its kind uses.
func applySecret(d *models.Destination, plaintext string) {
	switch d.Kind {
	case models.KindWebhook:
		d.Config.VerificationToken = plaintext
	case models.KindObjectStorage:
		d.Config.SecretAccessKey = plaintext
	case models.KindStructuredLog:
		d.Config.PrivateKey = plaintext
	}
}

func (s *Postgres) loadEventTypeFilters(ctx context.Context, predicate string, args []any, byID map[uuid.UUID]*models.Destination) error {
	query := fmt.Sprintf(`
		SELECT f.destination_id, f.event_type
		FROM audit_destination_event_type_filters f
		JOIN audit_destinations d ON d.id = f.destination_id
		WHERE %s
	`, predicate)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query event type filters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id        uuid.UUID
			eventType string
		)
		if err := rows.Scan(&id, &eventType); err != nil {
			return fmt.Errorf("scan event type filter: %w", err)
		}
		if d, ok := byID[id]; ok {
			d.EventTypeFilters = append(d.EventTypeFilters, eventType)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, d := range byID {
		d.EventTypeFilters = pstrings.DedupeAndTrim(d.EventTypeFilters)
	}
	return nil
}

func (s *Postgres) loadNamespaceFilters(ctx context.Context, predicate string, args []any, byID map[uuid.UUID]*models.Destination) error {
	query := fmt.Sprintf(`
		SELECT f.destination_id, f.namespace_path
		FROM audit_destination_namespace_filters f
		JOIN audit_destinations d ON d.id = f.destination_id
		WHERE %s
	`, predicate)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query namespace filters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   uuid.UUID
			path string
		)
		if err := rows.Scan(&id, &path); err != nil {
			return fmt.Errorf("scan namespace filter: %w", err)
		}
		if d, ok := byID[id]; ok {
			d.NamespaceFilter = &models.NamespaceFilter{Path: path}
		}
	}
	return rows.Err()
}

func (s *Postgres) loadHeaders(ctx context.Context, predicate string, args []any, byID map[uuid.UUID]*models.Destination) error {
	query := fmt.Sprintf(`
		SELECT h.destination_id, h.key, h.value
		FROM audit_destination_headers h
		JOIN audit_destinations d ON d.id = h.destination_id
		WHERE %s
	`, predicate)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query headers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id         uuid.UUID
			key, value string
		)
		if err := rows.Scan(&id, &key, &value); err != nil {
			return fmt.Errorf("scan header: %w", err)
		}
		if d, ok := byID[id]; ok {
			if d.Headers == nil {
				d.Headers = make(map[string]string)
			}
			d.Headers[key] = value
		}
	}
	return rows.Err()
}
