package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditstream/internal/streaming/models"
)

type fakeUploader struct {
	input *s3.PutObjectInput
	err   error
}

func (f *fakeUploader) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func storageDestination() models.Destination {
	return models.Destination{
		ID:     uuid.New(),
		Name:   "archive",
		Scope:  models.ScopeInstance,
		Kind:   models.KindObjectStorage,
		Active: true,
		Config: models.DestinationConfig{
			BucketName:      "audit-archive",
			AWSRegion:       "eu-west-1",
			AccessKeyID:     "AKIA-TEST",
			SecretAccessKey: "secret",
		},
	}
}

func TestObjectStoreDeliverUploadsJSONObject(t *testing.T) {
	uploader := &fakeUploader{}
	now := time.Date(2026, 7, 3, 12, 0, 0, 0, time.UTC)
	o := NewObjectStore(
		WithUploaderFactory(func(models.Destination) ObjectUploader { return uploader }),
		WithObjectStoreClock(func() time.Time { return now }),
	)

	id := uuid.New()
	event := &models.AuditEvent{ID: &id, EntityType: "Group", EntityID: "9"}
	payload := []byte(`{"id":"x"}`)

	outcome := o.Deliver(context.Background(), storageDestination(), event, payload, "member_added")

	require.True(t, outcome.Success)
	require.NotNil(t, uploader.input)
	assert.Equal(t, "audit-archive", *uploader.input.Bucket)
	assert.Equal(t, "application/json", *uploader.input.ContentType)
	assert.Equal(t,
		fmt.Sprintf("group/2026/07/member_added_%s_%d.json", id, now.UnixMilli()),
		*uploader.input.Key)

	body, err := io.ReadAll(uploader.input.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, body)
}

func TestObjectStoreDeliverFailsOnServiceError(t *testing.T) {
	uploader := &fakeUploader{err: errors.New("access denied")}
	o := NewObjectStore(WithUploaderFactory(func(models.Destination) ObjectUploader { return uploader }))

	event := &models.AuditEvent{EntityType: "Project"}
	outcome := o.Deliver(context.Background(), storageDestination(), event, []byte(`{}`), "x")

	require.False(t, outcome.Success)
	assert.Error(t, outcome.Err)
}

func TestObjectStoreSubstitutesIDForStreamOnlyEvents(t *testing.T) {
	uploader := &fakeUploader{}
	o := NewObjectStore(WithUploaderFactory(func(models.Destination) ObjectUploader { return uploader }))

	event := &models.AuditEvent{EntityType: "Project"}
	outcome := o.Deliver(context.Background(), storageDestination(), event, []byte(`{}`), "x")

	require.True(t, outcome.Success)
	require.NotNil(t, uploader.input.Key)
	assert.Contains(t, *uploader.input.Key, "x_")
	assert.Contains(t, *uploader.input.Key, ".json")
}

func TestObjectKeyPartitions(t *testing.T) {
	now := time.Date(2026, 11, 30, 23, 59, 0, 0, time.UTC)

	t.Run("instance entity", func(t *testing.T) {
		key := ObjectKey(now, "Instance", "settings_changed", "id-1")
		assert.Equal(t, fmt.Sprintf("instance/2026/11/settings_changed_id-1_%d.json", now.UnixMilli()), key)
	})

	t.Run("user entity", func(t *testing.T) {
		key := ObjectKey(now, "User", "login", "id-2")
		assert.Equal(t, fmt.Sprintf("user/2026/11/login_id-2_%d.json", now.UnixMilli()), key)
	})

	t.Run("sanitized entity type", func(t *testing.T) {
		key := ObjectKey(now, "Ci::Pipeline", "pipeline_run", "id-3")
		assert.Equal(t, fmt.Sprintf("ci__pipeline/2026/11/pipeline_run_id-3_%d.json", now.UnixMilli()), key)
	})
}
