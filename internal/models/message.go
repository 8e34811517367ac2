package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message запись сообщения канала.
// Порядок истории задаётся парой (CreatedAt, Seq): Seq монотонно растёт с каждой вставкой
// и разрешает совпадения времени.
type Message struct {
	Seq         int64                       `gorm:"primaryKey;autoIncrement"`
	ID          uuid.UUID                   `gorm:"type:uuid;uniqueIndex;not null"`
	ChannelID   uuid.UUID                   `gorm:"type:uuid;not null;index:idx_message_channel_order,priority:1"`
	Channel     *Channel                    `gorm:"constraint:OnDelete:CASCADE"`
	AuthorID    uuid.UUID                   `gorm:"type:uuid;not null"`
	Content     string                      `gorm:"not null;default:''"`
	Attachments datatypes.JSONSlice[string] `gorm:"not null"`
	ReplyToID   *uuid.UUID                  `gorm:"type:uuid;index"`
	CreatedAt   time.Time                   `gorm:"not null;index:idx_message_channel_order,priority:2,sort:desc"`
	EditedAt    *time.Time
	DeletedAt   *time.Time
	IsDeleted   bool `gorm:"not null;default:false;index"`
}

// Точность хранимого времени. Postgres хранит микросекунды, курсоры должны совпадать с ней.
const TimestampPrecision = time.Microsecond

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	m.CreatedAt = m.CreatedAt.UTC().Truncate(TimestampPrecision)
	if m.Attachments == nil {
		m.Attachments = datatypes.JSONSlice[string]{}
	}
	return nil
}

// AttachmentKeys ключи вложений в blob storage, включая удалённые сообщения
func (m *Message) AttachmentKeys() []string {
	keys := make([]string, len(m.Attachments))
	copy(keys, m.Attachments)
	return keys
}
