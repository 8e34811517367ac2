package dto

import (
	"time"

	"github.com/google/uuid"
)

// Текст, которым заменяется содержимое удалённого сообщения
const DeletedMessageContent = "This message was deleted."

// CreateMessageRequest JSON-вариант отправки сообщения (без вложений)
type CreateMessageRequest struct {
	Content string  `json:"content"`
	ReplyTo *string `json:"reply_to"`
}

// MessageResponse структура для исходящих сообщений
type MessageResponse struct {
	ID             uuid.UUID  `json:"id"`
	ChannelID      uuid.UUID  `json:"channel"`
	AuthorID       uuid.UUID  `json:"author"`
	Content        string     `json:"content"`
	Attachments    []string   `json:"attachments"`
	AttachmentURLs []string   `json:"attachment_urls"`
	ReplyTo        *uuid.UUID `json:"reply_to"`
	CreatedAt      time.Time  `json:"created_at"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	IsDeleted      bool       `json:"is_deleted"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

type MessagePage struct {
	Messages   []MessageResponse `json:"messages"`
	NextCursor *string           `json:"next_cursor"`
}
