package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cursor граница страницы истории: (CreatedAt, Seq).
// Seq == 0 означает границу только по времени.
type Cursor struct {
	CreatedAt time.Time
	Seq       int64
}

// CursorOf ключ упорядочивания сообщения
func CursorOf(m *models.Message) Cursor {
	return Cursor{CreatedAt: m.CreatedAt, Seq: m.Seq}
}

// InsertMessage сохраняет сообщение, удерживая строку канала до конца транзакции.
// Если канал уже удалён, возвращает ErrNotFound и ничего не пишет.
func (d *Database) InsertMessage(ctx context.Context, message *models.Message) error {
	return translate(d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var channel models.Channel
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id").
			First(&channel, "id = ?", message.ChannelID).Error
		if err != nil {
			return err
		}

		return tx.Create(message).Error
	}))
}

func (d *Database) GetMessage(ctx context.Context, channelID, id uuid.UUID) (*models.Message, error) {
	var message models.Message
	err := d.db.WithContext(ctx).
		Where("channel_id = ? AND id = ?", channelID, id).
		First(&message).Error
	if err != nil {
		return nil, translate(err)
	}
	return &message, nil
}

// ListMessages возвращает до limit сообщений канала строго старше курсора,
// от новых к старым. Удалённые (soft) сообщения остаются в выборке.
func (d *Database) ListMessages(ctx context.Context, channelID uuid.UUID, limit int, before *Cursor) ([]models.Message, error) {
	var messages []models.Message

	query := d.db.WithContext(ctx).Where("channel_id = ?", channelID)

	if before != nil {
		at := before.CreatedAt.UTC().Truncate(models.TimestampPrecision)
		if before.Seq > 0 {
			query = query.Where("(created_at < ?) OR (created_at = ? AND seq < ?)", at, at, before.Seq)
		} else {
			query = query.Where("created_at < ?", at)
		}
	}

	err := query.
		Order("created_at DESC").
		Order("seq DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// SoftDeleteMessage помечает сообщение удалённым. Повторный вызов не меняет deleted_at.
func (d *Database) SoftDeleteMessage(ctx context.Context, channelID, id uuid.UUID, at time.Time) (*models.Message, error) {
	err := d.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("channel_id = ? AND id = ? AND is_deleted = ?", channelID, id, false).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": at.UTC().Truncate(models.TimestampPrecision),
		}).Error
	if err != nil {
		return nil, err
	}

	return d.GetMessage(ctx, channelID, id)
}

// HardDeleteMessage удаляет запись навсегда и возвращает её для освобождения вложений.
// Ответы на удалённое сообщение теряют ссылку reply_to.
func (d *Database) HardDeleteMessage(ctx context.Context, channelID, id uuid.UUID) (*models.Message, error) {
	var message models.Message

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("channel_id = ? AND id = ?", channelID, id).First(&message).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Message{}).
			Where("reply_to_id = ?", message.ID).
			Update("reply_to_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Message{}, "seq = ?", message.Seq).Error
	})
	if err != nil {
		return nil, translate(err)
	}

	return &message, nil
}

// attachmentKeys собирает ключи вложений сообщений, отобранных scope
func attachmentKeys(tx *gorm.DB, scope func(*gorm.DB) *gorm.DB) ([]string, error) {
	var messages []models.Message
	if err := scope(tx.Model(&models.Message{})).Select("attachments").Find(&messages).Error; err != nil {
		return nil, err
	}

	keys := make([]string, 0)
	for _, m := range messages {
		keys = append(keys, m.Attachments...)
	}
	return keys, nil
}
