package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/guildchat/internal/services"
)

// Память под multipart; остальное gin/net/http сбрасывает во временные файлы
const multipartMemory = 8 << 20

var errBodyTooLarge = errors.New("request body too large")

// parseMultipart ограничивает тело запроса и разбирает форму
func parseMultipart(c *gin.Context, maxBytes int64) error {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}

	err := c.Request.ParseMultipartForm(multipartMemory)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return err
}

// openFiles открывает загруженные файлы поля (field и field[]). Возвращает функцию закрытия.
func openFiles(c *gin.Context, field string) ([]services.Attachment, func(), error) {
	var headers []*multipart.FileHeader
	if form := c.Request.MultipartForm; form != nil {
		headers = append(headers, form.File[field]...)
		headers = append(headers, form.File[field+"[]"]...)
	}

	var closers []io.Closer
	closeAll := func() {
		for _, f := range closers {
			f.Close()
		}
	}

	attachments := make([]services.Attachment, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, f)

		attachments = append(attachments, services.Attachment{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        f,
		})
	}

	return attachments, closeAll, nil
}

// writeUploadError ответ на ошибку разбора формы
func writeUploadError(c *gin.Context, err error) {
	if errors.Is(err, errBodyTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == "multipart/form-data"
}
