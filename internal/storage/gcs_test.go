package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBucket бакет в памяти; uploadErr ломает загрузку
type memBucket struct {
	objects   map[string]string
	types     map[string]string
	uploadErr error
	expires   time.Time
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string]string), types: make(map[string]string)}
}

func (b *memBucket) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	if b.uploadErr != nil {
		return b.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[key] = string(data)
	b.types[key] = contentType
	return nil
}

func (b *memBucket) Delete(ctx context.Context, key string) error {
	if _, ok := b.objects[key]; !ok {
		return gcs.ErrObjectNotExist
	}
	delete(b.objects, key)
	return nil
}

func (b *memBucket) SignedURL(key string, expires time.Time) (string, error) {
	b.expires = expires
	return "https://storage.test/" + key + "?X-Goog-Signature=1", nil
}

func newTestGCS(b bucket) *GCSStore {
	s := newGCSStore(b, 15*time.Minute)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestGCSStorePutDelete(t *testing.T) {
	b := newMemBucket()
	s := newTestGCS(b)
	ctx := context.Background()

	link, err := s.Put(ctx, "groups/g/avatar.png", strings.NewReader("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.test/groups/g/avatar.png?X-Goog-Signature=1", link)
	assert.Equal(t, "img", b.objects["groups/g/avatar.png"])
	assert.Equal(t, "image/png", b.types["groups/g/avatar.png"])
	assert.Equal(t, time.Date(2024, 5, 1, 12, 15, 0, 0, time.UTC), b.expires)

	require.NoError(t, s.Delete(ctx, "groups/g/avatar.png"))
	assert.ErrorIs(t, s.Delete(ctx, "groups/g/avatar.png"), ErrBlobNotFound)
}

func TestGCSStoreRejectsInvalidKeys(t *testing.T) {
	b := newMemBucket()
	s := newTestGCS(b)

	_, err := s.Put(context.Background(), "../escape", strings.NewReader("x"), "text/plain")
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.Empty(t, b.objects)

	_, err = s.SignedURL(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestGCSStoreUploadFailure(t *testing.T) {
	b := newMemBucket()
	b.uploadErr = errors.New("quota exceeded")
	s := newTestGCS(b)

	_, err := s.Put(context.Background(), "groups/g/c/uploads/x_a.txt", strings.NewReader("a"), "text/plain")
	assert.EqualError(t, err, "quota exceeded")
	assert.False(t, errors.Is(err, ErrBlobNotFound))
	assert.Empty(t, b.objects)
}
