package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"auditstream/internal/streaming/models"
)

// ObjectUploader is the slice of the S3 client the transport needs.
type ObjectUploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// UploaderFactory builds an uploader from one destination's credentials.
// Credentials live on the destination record, never in ambient configuration.
type UploaderFactory func(dest models.Destination) ObjectUploader

// ObjectStore uploads each payload as one JSON object to an S3-compatible
// bucket, partitioned by entity bucket and year/month.
type ObjectStore struct {
	newUploader UploaderFactory
	logger      *slog.Logger
	now         func() time.Time
}

// ObjectStoreOption configures the object-storage transport.
type ObjectStoreOption func(*ObjectStore)

// WithObjectStoreLogger sets a logger for failed uploads.
func WithObjectStoreLogger(logger *slog.Logger) ObjectStoreOption {
	return func(o *ObjectStore) { o.logger = logger }
}

// WithUploaderFactory overrides how per-destination S3 clients are built.
func WithUploaderFactory(factory UploaderFactory) ObjectStoreOption {
	return func(o *ObjectStore) { o.newUploader = factory }
}

// WithObjectStoreClock overrides the clock used for object key partitioning.
func WithObjectStoreClock(now func() time.Time) ObjectStoreOption {
	return func(o *ObjectStore) { o.now = now }
}

// NewObjectStore constructs the object-storage transport.
func NewObjectStore(opts ...ObjectStoreOption) *ObjectStore {
	o := &ObjectStore{
		newUploader: defaultUploaderFactory,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func defaultUploaderFactory(dest models.Destination) ObjectUploader {
	options := s3.Options{
		Region: dest.Config.AWSRegion,
		Credentials: credentials.NewStaticCredentialsProvider(
			dest.Config.AccessKeyID,
			dest.Config.SecretAccessKey,
			"",
		),
	}
	if dest.Config.Endpoint != "" {
		options.BaseEndpoint = aws.String(dest.Config.Endpoint)
		options.UsePathStyle = true
	}
	return s3.New(options)
}

func (o *ObjectStore) Kind() models.DestinationKind { return models.KindObjectStorage }

// Deliver uploads the payload under a unique, chronologically navigable key.
// Storage-service errors become failed outcomes; nothing propagates.
func (o *ObjectStore) Deliver(ctx context.Context, dest models.Destination, event *models.AuditEvent, payload []byte, eventType string) models.DeliveryOutcome {
	id := uuid.NewString()
	if event.ID != nil {
		id = event.ID.String()
	}
	key := ObjectKey(o.now().UTC(), event.EntityType, eventType, id)

	_, err := o.newUploader(dest).PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(dest.Config.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "object storage delivery failed",
			"destination_id", dest.ID,
			"destination_name", dest.Name,
			"bucket", dest.Config.BucketName,
			"key", key,
			"error", err,
		)
		return models.FailedOutcome(dest, 0, fmt.Errorf("object storage delivery: %w", err))
	}
	return models.SuccessfulOutcome(dest, 0)
}

// ObjectKey builds the storage key:
//
//	{entity_bucket}/{YYYY}/{MM}/{event_type}_{id}_{epoch_millis}.json
//
// The epoch-millis component guarantees key uniqueness per event even when
// the same event is re-emitted, and the date prefix keeps the bucket
// browsable chronologically.
func ObjectKey(now time.Time, entityType, eventType, id string) string {
	return fmt.Sprintf("%s/%s/%s_%s_%d.json",
		entityBucket(entityType), now.Format("2006/01"), eventType, id, now.UnixMilli())
}

// entityBucket maps an entity type to its top-level key partition:
// "instance", "user", or the sanitized entity type.
func entityBucket(entityType string) string {
	switch strings.ToLower(entityType) {
	case "instance":
		return "instance"
	case "user":
		return "user"
	default:
		return sanitizeBucket(entityType)
	}
}

// sanitizeBucket lower-cases the entity type and replaces every
// non-alphanumeric rune with an underscore.
func sanitizeBucket(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
