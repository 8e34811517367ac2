package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/thereayou/guildchat/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateMembership вставляет членство. Нарушение уникальности (user, group) даёт ErrDuplicate.
func (d *Database) CreateMembership(ctx context.Context, membership *models.Membership) error {
	return translate(d.db.WithContext(ctx).Create(membership).Error)
}

func (d *Database) GetMembership(ctx context.Context, userID, groupID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		First(&membership).Error
	if err != nil {
		return nil, translate(err)
	}
	return &membership, nil
}

func (d *Database) GetMembershipByID(ctx context.Context, groupID, id uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := d.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ? AND id = ?", groupID, id).
		First(&membership).Error
	if err != nil {
		return nil, translate(err)
	}
	return &membership, nil
}

func (d *Database) ListMemberships(ctx context.Context, groupID uuid.UUID) ([]models.Membership, error) {
	var memberships []models.Membership
	err := d.db.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("created_at ASC").
		Find(&memberships).Error
	return memberships, err
}

// MembershipChange вычисляет изменения колонок по свежим записям действующего лица и цели,
// прочитанным внутри транзакции. Ошибка отменяет запись.
type MembershipChange func(actor, target *models.Membership) (map[string]interface{}, error)

// UpdateMembership меняет только колонки, возвращённые change. Записи перечитываются под
// блокировкой группы, поэтому изменения, сделанные после проверки прав, не теряются.
// Если цель перестаёт быть владельцем, в группе должен остаться другой владелец.
func (d *Database) UpdateMembership(ctx context.Context, groupID, actorID, targetID uuid.UUID, change MembershipChange) (*models.Membership, error) {
	var updated models.Membership

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, target, err := lockMemberships(tx, groupID, actorID, targetID)
		if err != nil {
			return err
		}

		changes, err := change(actor, target)
		if err != nil {
			return err
		}

		if len(changes) > 0 {
			if role, ok := changes["role"]; ok && target.Role == models.RoleOwner && role != models.RoleOwner {
				if err := ensureOtherOwner(tx, target); err != nil {
					return err
				}
			}

			res := tx.Model(&models.Membership{}).Where("id = ?", target.ID).Updates(changes)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}

		return tx.Preload("User").First(&updated, "id = ?", target.ID).Error
	})
	if err != nil {
		return nil, translate(err)
	}

	return &updated, nil
}

// DeleteMembership удаляет участника после проверки check на свежих записях;
// последнего владельца удалить нельзя
func (d *Database) DeleteMembership(ctx context.Context, groupID, actorID, targetID uuid.UUID, check func(actor, target *models.Membership) error) error {
	return translate(d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, target, err := lockMemberships(tx, groupID, actorID, targetID)
		if err != nil {
			return err
		}

		if check != nil {
			if err := check(actor, target); err != nil {
				return err
			}
		}

		if target.Role == models.RoleOwner {
			if err := ensureOtherOwner(tx, target); err != nil {
				return err
			}
		}

		res := tx.Delete(&models.Membership{}, "id = ?", target.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}

// lockMemberships блокирует строку группы и читает действующее лицо и цель.
// Все изменения ролей и состава группы проходят через эту блокировку, поэтому
// проверка последнего владельца не гоняется с параллельной транзакцией.
func lockMemberships(tx *gorm.DB, groupID, actorID, targetID uuid.UUID) (*models.Membership, *models.Membership, error) {
	var group models.Group
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&group, "id = ?", groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotMember
	}
	if err != nil {
		return nil, nil, err
	}

	var actor models.Membership
	err = tx.Where("group_id = ? AND id = ?", groupID, actorID).First(&actor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotMember
	}
	if err != nil {
		return nil, nil, err
	}

	if targetID == actorID {
		return &actor, &actor, nil
	}

	var target models.Membership
	if err := tx.Where("group_id = ? AND id = ?", groupID, targetID).First(&target).Error; err != nil {
		return nil, nil, err
	}
	return &actor, &target, nil
}

// ensureOtherOwner вызывается под блокировкой группы из lockMemberships
func ensureOtherOwner(tx *gorm.DB, membership *models.Membership) error {
	var others int64
	err := tx.Model(&models.Membership{}).
		Where("group_id = ? AND role = ? AND id <> ?", membership.GroupID, models.RoleOwner, membership.ID).
		Count(&others).Error
	if err != nil {
		return err
	}
	if others == 0 {
		return ErrLastOwner
	}
	return nil
}
