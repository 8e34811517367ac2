package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/thereayou/guildchat/internal/storage"
)

// BlobHandler раздаёт объекты локального хранилища по подписанным ссылкам
type BlobHandler struct {
	store *storage.LocalStore
}

func NewBlobHandler(store *storage.LocalStore) *BlobHandler {
	return &BlobHandler{store: store}
}

// Serve GET /blobs/*key?expires=&sig=
func (h *BlobHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	f, err := h.store.Open(key, c.Query("expires"), c.Query("sig"))
	switch {
	case errors.Is(err, storage.ErrInvalidSignature), errors.Is(err, storage.ErrInvalidKey):
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid or expired link"})
		return
	case errors.Is(err, storage.ErrBlobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	case err != nil:
		log.Printf("Failed to open blob %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if mt, err := mimetype.DetectReader(f); err == nil {
		c.Header("Content-Type", mt.String())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}
