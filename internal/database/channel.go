package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *Database) CreateChannel(ctx context.Context, channel *models.Channel) error {
	return translate(d.db.WithContext(ctx).Create(channel).Error)
}

func (d *Database) GetChannel(ctx context.Context, groupID, channelID uuid.UUID) (*models.Channel, error) {
	var channel models.Channel
	err := d.db.WithContext(ctx).
		Where("group_id = ? AND id = ?", groupID, channelID).
		First(&channel).Error
	if err != nil {
		return nil, translate(err)
	}
	return &channel, nil
}

// GetChannelByID канал без привязки к группе (для подписок websocket)
func (d *Database) GetChannelByID(ctx context.Context, channelID uuid.UUID) (*models.Channel, error) {
	var channel models.Channel
	if err := d.db.WithContext(ctx).First(&channel, "id = ?", channelID).Error; err != nil {
		return nil, translate(err)
	}
	return &channel, nil
}

func (d *Database) ListChannels(ctx context.Context, groupID uuid.UUID) ([]models.Channel, error) {
	var channels []models.Channel
	err := d.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("position ASC").
		Order("name_key ASC").
		Find(&channels).Error
	return channels, err
}

// ChannelNameTaken проверка занятости имени до записи.
// Окончательную гарантию даёт уникальный индекс (group_id, name_key).
func (d *Database) ChannelNameTaken(ctx context.Context, groupID uuid.UUID, name string, except uuid.UUID) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Channel{}).
		Where("group_id = ? AND name_key = ? AND id <> ?", groupID, models.ChannelNameKey(name), except).
		Count(&count).Error
	return count > 0, err
}

func (d *Database) UpdateChannel(ctx context.Context, channel *models.Channel) error {
	return translate(d.db.WithContext(ctx).Save(channel).Error)
}

// DeleteChannel удаляет канал вместе с сообщениями и возвращает ключи их вложений
func (d *Database) DeleteChannel(ctx context.Context, groupID, channelID uuid.UUID) ([]string, error) {
	var keys []string

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Блокировка канала ждёт идущие вставки сообщений и не пускает новые
		var channel models.Channel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("group_id = ? AND id = ?", groupID, channelID).
			First(&channel).Error
		if err != nil {
			return err
		}

		keys, err = attachmentKeys(tx, func(q *gorm.DB) *gorm.DB {
			return q.Where("channel_id = ?", channel.ID)
		})
		if err != nil {
			return err
		}

		if err := tx.Delete(&models.Message{}, "channel_id = ?", channel.ID).Error; err != nil {
			return err
		}

		return tx.Delete(&channel).Error
	})
	if err != nil {
		return nil, translate(err)
	}

	return keys, nil
}
