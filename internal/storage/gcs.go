package storage

import (
	"context"
	"errors"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// bucket операции бакета, которые использует GCSStore
type bucket interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	SignedURL(key string, expires time.Time) (string, error)
}

// GCSStore blob storage на Google Cloud Storage
type GCSStore struct {
	bucket bucket
	close  func() error
	ttl    time.Duration
	now    func() time.Time
}

func NewGCSStore(ctx context.Context, bucketName, credentialsFile string, ttl time.Duration) (*GCSStore, error) {
	if bucketName == "" {
		return nil, errors.New("GCS_BUCKET is not set")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	store := newGCSStore(gcsBucket{handle: client.Bucket(bucketName)}, ttl)
	store.close = client.Close
	return store, nil
}

func newGCSStore(b bucket, ttl time.Duration) *GCSStore {
	return &GCSStore{
		bucket: b,
		close:  func() error { return nil },
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if !ValidKey(key) {
		return "", ErrInvalidKey
	}

	if err := s.bucket.Upload(ctx, key, contentType, r); err != nil {
		return "", err
	}

	return s.SignedURL(ctx, key)
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Delete(ctx, key)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrBlobNotFound
	}
	return err
}

func (s *GCSStore) SignedURL(ctx context.Context, key string) (string, error) {
	if !ValidKey(key) {
		return "", ErrInvalidKey
	}
	return s.bucket.SignedURL(key, s.now().Add(s.ttl))
}

func (s *GCSStore) Close() error {
	return s.close()
}

// gcsBucket bucket поверх клиента cloud.google.com/go/storage
type gcsBucket struct {
	handle *gcs.BucketHandle
}

func (b gcsBucket) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	// Отмена контекста до Close отменяет загрузку целиком
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := b.handle.Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		cancel()
		w.Close()
		return err
	}
	return w.Close()
}

func (b gcsBucket) Delete(ctx context.Context, key string) error {
	return b.handle.Object(key).Delete(ctx)
}

func (b gcsBucket) SignedURL(key string, expires time.Time) (string, error) {
	return b.handle.SignedURL(key, &gcs.SignedURLOptions{
		Scheme:  gcs.SigningSchemeV4,
		Method:  "GET",
		Expires: expires,
	})
}
