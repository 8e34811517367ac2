// Package storage хранит вложения и аватары групп во внешнем blob storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore клиент blob storage. Каждая операция выполняется целиком или не выполняется.
type BlobStore interface {
	// Put загружает данные по ключу и возвращает временную подписанную ссылку
	Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Delete удаляет объект; ErrBlobNotFound, если его нет
	Delete(ctx context.Context, key string) error
	// SignedURL временная ссылка на существующий объект
	SignedURL(ctx context.Context, key string) (string, error)
}

const maxFilenameLen = 128

// SanitizeFilename оставляет только базовое имя файла из безопасных символов
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}

	clean := strings.Trim(b.String(), "._")
	if len(clean) > maxFilenameLen {
		clean = clean[len(clean)-maxFilenameLen:]
	}
	if clean == "" {
		return "file"
	}
	return clean
}

// AttachmentKey ключ вложения: groups/<group>/<channel>/uploads/<random>_<filename>
func AttachmentKey(groupID, channelID uuid.UUID, filename string) string {
	return fmt.Sprintf("groups/%s/%s/uploads/%s_%s",
		groupID, channelID, strings.ReplaceAll(uuid.NewString(), "-", ""), SanitizeFilename(filename))
}

// AvatarKey ключ аватара группы
func AvatarKey(groupID uuid.UUID, filename string) string {
	return fmt.Sprintf("groups/%s/%s_%s",
		groupID, strings.ReplaceAll(uuid.NewString(), "-", ""), SanitizeFilename(filename))
}

// ValidKey отсекает пустые и выходящие за пределы хранилища ключи
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
