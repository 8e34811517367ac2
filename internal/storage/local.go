package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidKey       = errors.New("invalid blob key")
	ErrInvalidSignature = errors.New("invalid or expired signature")
)

// LocalStore хранит объекты в каталоге на диске и выдаёт HMAC-подписанные ссылки,
// которые обслуживает сам сервер (GET /blobs/*key).
type LocalStore struct {
	dir        string
	baseURL    string
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

func NewLocalStore(dir, baseURL string, signingKey []byte, ttl time.Duration) (*LocalStore, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("blob signing key is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{
		dir:        dir,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: signingKey,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

// Put пишет во временный файл и переименовывает его, чтобы объект не появлялся частично
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	dst, err := s.path(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}

	return s.SignedURL(ctx, key)
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrBlobNotFound
		}
		return err
	}
	return nil
}

func (s *LocalStore) SignedURL(ctx context.Context, key string) (string, error) {
	if _, err := s.path(key); err != nil {
		return "", err
	}
	expires := s.now().Add(s.ttl).Unix()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.sign(key, expires))

	return fmt.Sprintf("%s/%s?%s", s.baseURL, key, q.Encode()), nil
}

// Open проверяет подпись и открывает объект на чтение
func (s *LocalStore) Open(key, expires, sig string) (*os.File, error) {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().Unix() > exp {
		return nil, ErrInvalidSignature
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(key, exp))) {
		return nil, ErrInvalidSignature
	}

	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return f, err
}

func (s *LocalStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
