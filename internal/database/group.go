package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateGroup создаёт группу и членство создателя (Owner) одной транзакцией
func (d *Database) CreateGroup(ctx context.Context, group *models.Group, owner *models.Membership) error {
	return translate(d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}

		owner.GroupID = group.ID
		owner.Role = models.RoleOwner
		return tx.Create(owner).Error
	}))
}

func (d *Database) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := d.db.WithContext(ctx).First(&group, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &group, nil
}

func (d *Database) GetUserGroups(ctx context.Context, userID uuid.UUID) ([]models.Group, error) {
	var groups []models.Group
	err := d.db.WithContext(ctx).
		Joins("JOIN memberships m ON m.group_id = groups.id").
		Where("m.user_id = ?", userID).
		Order("groups.created_at ASC").
		Find(&groups).Error
	return groups, err
}

func (d *Database) UpdateGroup(ctx context.Context, group *models.Group) error {
	return translate(d.db.WithContext(ctx).Save(group).Error)
}

// DeleteGroup каскадно удаляет каналы, сообщения и участников группы.
// Возвращает ключи вложений удалённых сообщений.
func (d *Database) DeleteGroup(ctx context.Context, id uuid.UUID) ([]string, error) {
	var keys []string

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&group, "id = ?", id).Error; err != nil {
			return err
		}

		// Каналы блокируются, чтобы параллельные вставки сообщений закончились до выборки ключей
		var locked []models.Channel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("group_id = ?", id).
			Find(&locked).Error
		if err != nil {
			return err
		}

		channelIDs := tx.Model(&models.Channel{}).Select("id").Where("group_id = ?", id)

		keys, err = attachmentKeys(tx, func(q *gorm.DB) *gorm.DB {
			return q.Where("channel_id IN (?)", channelIDs)
		})
		if err != nil {
			return err
		}

		if err := tx.Where("channel_id IN (?)", channelIDs).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Channel{}, "group_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Membership{}, "group_id = ?", id).Error; err != nil {
			return err
		}

		return tx.Delete(&group).Error
	})
	if err != nil {
		return nil, translate(err)
	}

	return keys, nil
}
