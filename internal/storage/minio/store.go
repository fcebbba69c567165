// Package minio keeps client state as one object per key in an S3-compatible
// bucket. Changes made elsewhere arrive through bucket notifications.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/baghaven/storefront/internal/logger"
	"github.com/baghaven/storefront/internal/model"
)

// writerMeta is the user metadata entry carrying the id of the Store that
// last wrote an object.
const writerMeta = "Writer"

// Internal adapter interface to enable mocking without a real MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListenBucketNotification(ctx context.Context, bucketName, prefix, suffix string, events []string) <-chan notification.Info
}

// Wrapper to adapt *minio.Client to minioAPI.
type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}
func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}
func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}
func (w minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}
func (w minioClientWrapper) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return w.c.RemoveObject(ctx, bucketName, objectName, opts)
}
func (w minioClientWrapper) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return w.c.StatObject(ctx, bucketName, objectName, opts)
}
func (w minioClientWrapper) ListenBucketNotification(ctx context.Context, bucketName, prefix, suffix string, events []string) <-chan notification.Info {
	return w.c.ListenBucketNotification(ctx, bucketName, prefix, suffix, events)
}

var (
	_ model.Store   = (*Store)(nil)
	_ model.Watcher = (*Store)(nil)
)

// Store is an object-storage backed model.Store.
type Store struct {
	api    minioAPI
	bucket string
	prefix string
	writer uuid.UUID
	logger *logger.Logger

	mu sync.Mutex
	// ownDeletes counts removals issued by this Store that have not yet
	// come back as notifications. Delete events carry no metadata.
	ownDeletes map[string]int
}

// NewMinioClient builds a *minio.Client from connection parameters.
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

// NewStore creates a Store using a real *minio.Client instance.
func NewStore(ctx context.Context, client *minio.Client, bucket, profile string, logger *logger.Logger) (*Store, error) {
	return NewStoreWithAPI(ctx, minioClientWrapper{c: client}, bucket, profile, logger)
}

// NewStoreWithAPI allows injecting a mockable API (used in tests).
func NewStoreWithAPI(ctx context.Context, api minioAPI, bucket, profile string, logger *logger.Logger) (*Store, error) {
	s := &Store{
		api:        api,
		bucket:     bucket,
		prefix:     profile + "/",
		writer:     uuid.New(),
		logger:     logger,
		ownDeletes: make(map[string]int),
	}

	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return s, nil
}

// ensureBucketExists creates the bucket if it doesn't exist
func (s *Store) ensureBucketExists(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Writer returns the id stamped into the metadata of objects this Store writes.
func (s *Store) Writer() uuid.UUID {
	return s.writer
}

func (s *Store) object(key string) string {
	return s.prefix + key
}

// Get returns the value for key.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	rc, err := s.api.GetObject(ctx, s.bucket, s.object(key), minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get object: %w", err)
	}
	defer rc.Close()

	// minio.Object defers the request until the first read.
	data, err := io.ReadAll(rc)
	if err != nil {
		if isNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read object: %w", err)
	}
	return string(data), true, nil
}

// Set uploads value as the object for key. An object already holding value
// is not rewritten, so no notification goes out for it.
func (s *Store) Set(ctx context.Context, key, value string) error {
	current, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if ok && current == value {
		return nil
	}

	_, err = s.api.PutObject(ctx, s.bucket, s.object(key), bytes.NewReader([]byte(value)), int64(len(value)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{writerMeta: s.writer.String()},
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Delete removes the objects for keys. Missing keys are skipped.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		exists, err := s.exists(ctx, key)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}

		s.mu.Lock()
		s.ownDeletes[key]++
		s.mu.Unlock()

		if err := s.api.RemoveObject(ctx, s.bucket, s.object(key), minio.RemoveObjectOptions{}); err != nil {
			s.mu.Lock()
			s.ownDeletes[key]--
			s.mu.Unlock()
			return fmt.Errorf("failed to delete object: %w", err)
		}
	}
	return nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.StatObject(ctx, s.bucket, s.object(key), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

func isNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

var watchedEvents = []string{
	string(notification.ObjectCreatedAll),
	string(notification.ObjectRemovedAll),
}

// Watch reports keys of this profile changed by other writers until ctx is done.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	infos := s.api.ListenBucketNotification(ctx, s.bucket, s.prefix, "", watchedEvents)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case info, ok := <-infos:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return nil
			}
			if info.Err != nil {
				return fmt.Errorf("failed to receive bucket notification: %w", info.Err)
			}
			for _, ev := range info.Records {
				key, ok := s.keyOf(ev.S3.Object.Key)
				if !ok || s.own(ev, key) {
					continue
				}
				fn(key)
			}
		}
	}
}

func (s *Store) keyOf(objectKey string) (string, bool) {
	// Notification object keys are URL-encoded.
	name, err := url.QueryUnescape(objectKey)
	if err != nil {
		name = objectKey
	}
	key, ok := strings.CutPrefix(name, s.prefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}

func (s *Store) own(ev notification.Event, key string) bool {
	if strings.HasPrefix(ev.EventName, "s3:ObjectRemoved") {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.ownDeletes[key] > 0 {
			s.ownDeletes[key]--
			return true
		}
		return false
	}
	for k, v := range ev.S3.Object.UserMetadata {
		if strings.EqualFold(strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-"), writerMeta) {
			return v == s.writer.String()
		}
	}
	return false
}
